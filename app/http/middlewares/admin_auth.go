package middlewares

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"easypay/pkg/app"
	"easypay/pkg/jwt"
	"easypay/pkg/logger"
	"easypay/pkg/response"
)

// AdminAuth 管理后台鉴权，要求 HS256 签名且 role 为 admin 的 Bearer Token
func AdminAuth() gin.HandlerFunc {
	return AdminAuthWith(jwt.NewJWT())
}

// AdminAuthWith 使用指定的 JWT 配置
func AdminAuthWith(j *jwt.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := j.ParserToken(c)
		if err != nil {
			logger.Warn("Admin",
				zap.String("action", "auth_failed"),
				zap.String("ip", app.ClientIP(c)),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Abort401(c, "토큰이 만료되었습니다")
				return
			}
			response.Abort401(c)
			return
		}

		if claims.Role != jwt.RoleAdmin {
			response.Abort403(c)
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
