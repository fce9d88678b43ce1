package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"yunsou/model"
	"yunsou/service"
)

var authService *service.AuthService

// SetAuthService 设置认证服务
func SetAuthService(s *service.AuthService) {
	authService = s
}

// AuthMiddleware 认证中间件，令牌无效直接拒绝
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, "缺少认证令牌"))
			c.Abort()
			return
		}

		user, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, "无效的认证令牌: "+err.Error()))
			c.Abort()
			return
		}

		setCurrentUser(c, user)
		c.Next()
	}
}

// OptionalAuthMiddleware 可选认证中间件，带有效令牌则识别用户，否则按匿名放行
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		if user, err := authService.ValidateToken(token); err == nil {
			setCurrentUser(c, user)
		}
		c.Next()
	}
}

// RequirePermission 权限检查中间件，需要先经过认证中间件
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range GetCurrentPermissions(c) {
			if p == permission {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, model.NewErrorResponse(403, "权限不足"))
		c.Abort()
	}
}

// RequireMember 会员检查中间件
func RequireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetCurrentUser(c)
		if user == nil {
			c.JSON(http.StatusForbidden, model.NewErrorResponse(403, "需要认证"))
			c.Abort()
			return
		}
		if !user.IsMember() {
			c.JSON(http.StatusForbidden, model.NewErrorResponse(403, "需要会员权限"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetCurrentUser 获取当前用户，未认证时返回nil
func GetCurrentUser(c *gin.Context) *model.User {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	return user.(*model.User)
}

// GetCurrentUserID 获取当前用户ID，未认证时返回空串
func GetCurrentUserID(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	return userID.(string)
}

// GetCurrentPermissions 获取当前用户权限列表
func GetCurrentPermissions(c *gin.Context) []string {
	permissions, exists := c.Get("permissions")
	if !exists {
		return nil
	}
	return permissions.([]string)
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return token, token != ""
}

func setCurrentUser(c *gin.Context, user *model.User) {
	c.Set("user", user)
	c.Set("user_id", user.ID)
	c.Set("permissions", user.GetUserPermissions())
}
