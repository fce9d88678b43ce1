package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"yunsou/util/log"
)

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// LoggerMiddleware 访问日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		log.WithFields(map[string]interface{}{
			"ip":      c.ClientIP(),
			"method":  c.Request.Method,
			"uri":     c.Request.RequestURI,
			"status":  c.Writer.Status(),
			"latency": time.Since(startTime).String(),
		}).Info("request")
	}
}
