package config

import "easypay/pkg/config"

func init() {
	config.Add("jwt", func() map[string]interface{} {
		return map[string]interface{}{
			// 管理后台 API 使用的 HS256 签名密钥
			"secret": config.Env("JWT_SECRET", ""),
			"issuer": config.Env("JWT_ISSUER", "easypay-admin"),
			// 签发的 token 有效期（分钟），easypayctl token 命令使用
			"expire_minutes": config.Env("JWT_EXPIRE_MINUTES", 120),
		}
	})
}
