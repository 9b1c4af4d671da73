package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"easypay/pkg/config"
)

// SecurityHeaders 添加安全相关的 HTTP 头，支付数据一律不缓存
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// Cors 处理跨域请求，允许的来源读取 app.cors_origins（逗号分隔，* 表示全部）
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed := allowOrigin(origin, config.GetString("app.cors_origins", "*")); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			c.Header("Vary", "Origin")
		}

		// 预检请求
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func allowOrigin(origin, setting string) string {
	for _, o := range strings.Split(setting, ",") {
		o = strings.TrimSpace(o)
		switch {
		case o == "*":
			return "*"
		case o != "" && o == origin:
			return origin
		}
	}
	return ""
}
