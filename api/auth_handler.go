package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"yunsou/model"
	"yunsou/service"
	jsonutil "yunsou/util/json"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, "请求参数错误: "+err.Error()))
		return
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, err.Error()))
		return
	}

	response := model.NewSuccessResponse(gin.H{
		"user":    user,
		"message": "注册成功",
	})
	jsonData, _ := jsonutil.Marshal(response)
	c.Data(http.StatusOK, "application/json", jsonData)
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, "请求参数错误: "+err.Error()))
		return
	}

	response, err := h.authService.Login(&req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, err.Error()))
		return
	}

	jsonData, _ := jsonutil.Marshal(model.NewSuccessResponse(response))
	c.Data(http.StatusOK, "application/json", jsonData)
}

// Logout 用户登出
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, "缺少认证令牌"))
		return
	}

	if err := h.authService.Logout(token); err != nil {
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(500, "登出失败: "+err.Error()))
		return
	}

	response := model.NewSuccessResponse(gin.H{
		"message": "登出成功",
	})
	jsonData, _ := jsonutil.Marshal(response)
	c.Data(http.StatusOK, "application/json", jsonData)
}

// RefreshToken 刷新令牌，旧令牌随即作废
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, "缺少认证令牌"))
		return
	}

	response, err := h.authService.RefreshToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, err.Error()))
		return
	}

	jsonData, _ := jsonutil.Marshal(model.NewSuccessResponse(response))
	c.Data(http.StatusOK, "application/json", jsonData)
}

// GetProfile 获取用户资料
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user := GetCurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, "需要认证"))
		return
	}

	response := model.NewSuccessResponse(gin.H{
		"user":        user,
		"permissions": user.GetUserPermissions(),
	})
	jsonData, _ := jsonutil.Marshal(response)
	c.Data(http.StatusOK, "application/json", jsonData)
}

// ChangePassword 修改密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := GetCurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, "需要认证"))
		return
	}

	var req model.PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, "请求参数错误: "+err.Error()))
		return
	}

	if err := h.authService.ChangePassword(user.ID, &req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, err.Error()))
		return
	}

	response := model.NewSuccessResponse(gin.H{
		"message": "密码修改成功",
	})
	jsonData, _ := jsonutil.Marshal(response)
	c.Data(http.StatusOK, "application/json", jsonData)
}

// UpgradeMembership 升级会员
func (h *AuthHandler) UpgradeMembership(c *gin.Context) {
	user := GetCurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, "需要认证"))
		return
	}

	upgraded, err := h.authService.UpgradeMembership(user.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, err.Error()))
		return
	}

	response := model.NewSuccessResponse(gin.H{
		"user":    upgraded,
		"message": "会员升级成功",
	})
	jsonData, _ := jsonutil.Marshal(response)
	c.Data(http.StatusOK, "application/json", jsonData)
}
