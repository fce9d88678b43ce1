package api

import (
	"github.com/gin-gonic/gin"
	"yunsou/config"
	"yunsou/model"
	"yunsou/service"
	"yunsou/util"
)

// SetupRouter 设置路由
func SetupRouter(searchSvc *service.SearchService) *gin.Engine {
	SetSearchService(searchSvc)

	authSvc := service.NewAuthService()
	SetAuthService(authSvc)
	authHandler := NewAuthHandler(authSvc)

	historySvc := service.NewHistoryService()
	SetHistoryService(historySvc)

	authEnabled := config.AppConfig == nil || config.AppConfig.AuthEnabled

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(util.GzipMiddleware())

	api := r.Group("/api")
	{
		// 搜索接口，GET和POST都支持，认证可选
		api.POST("/search", OptionalAuthMiddleware(), SearchHandler)
		api.GET("/search", OptionalAuthMiddleware(), SearchHandler)

		if authEnabled {
			auth := api.Group("/auth")
			{
				auth.POST("/register", authHandler.Register)
				auth.POST("/login", authHandler.Login)
				auth.POST("/logout", AuthMiddleware(), authHandler.Logout)
				auth.POST("/refresh", authHandler.RefreshToken)
			}

			user := api.Group("/user")
			user.Use(AuthMiddleware())
			{
				user.GET("/profile", authHandler.GetProfile)
				user.POST("/change-password", authHandler.ChangePassword)
				user.POST("/upgrade-membership", authHandler.UpgradeMembership)
			}

			// 高级搜索要求会员
			api.POST("/search/advanced", AuthMiddleware(), RequireMember(), SearchHandler)
			api.GET("/search/advanced", AuthMiddleware(), RequireMember(), SearchHandler)

			api.GET("/search/history", AuthMiddleware(), RequirePermission(model.PermissionHistory), SearchHistoryHandler)
			api.DELETE("/search/history", AuthMiddleware(), RequirePermission(model.PermissionHistory), ClearSearchHistoryHandler)
		} else {
			// 认证关闭时高级搜索直接放行
			api.POST("/search/advanced", SearchHandler)
			api.GET("/search/advanced", SearchHandler)
		}

		api.GET("/health", healthHandler(searchSvc))
	}

	return r
}

// healthHandler 健康检查，顺带暴露插件与缓存概况
func healthHandler(searchSvc *service.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"status": "ok",
		}

		if config.AppConfig != nil {
			response["channels"] = config.AppConfig.DefaultChannels
			response["channels_count"] = len(config.AppConfig.DefaultChannels)
			response["auth_enabled"] = config.AppConfig.AuthEnabled
		}

		if searchSvc != nil {
			if pm := searchSvc.GetPluginManager(); pm != nil {
				plugins := pm.GetPlugins()
				names := make([]string, 0, len(plugins))
				for _, p := range plugins {
					names = append(names, p.Name())
				}
				response["plugin_count"] = len(plugins)
				response["plugins"] = names
			}

			tgStats, pluginStats := searchSvc.CacheStats()
			response["cache"] = gin.H{
				"tg":     tgStats,
				"plugin": pluginStats,
			}
		}

		c.JSON(200, response)
	}
}
