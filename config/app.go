// Package config 站点配置信息
package config

import "easypay/pkg/config"

func init() {
	config.Add("app", func() map[string]interface{} {
		return map[string]interface{}{

			// 应用名称
			"name": config.Env("APP_NAME", "EasyPay"),

			// 当前环境，用以区分多环境，一般为 local, stage, production, testing
			"env": config.Env("APP_ENV", "production"),

			// 是否进入调试模式
			"debug": config.Env("APP_DEBUG", false),

			// 应用服务端口
			"port": config.Env("APP_PORT", "3000"),

			// 设置时区，日志记录和结算日期会使用到
			"timezone": config.Env("TIMEZONE", "Asia/Seoul"),

			// 限流格式为每小时请求数
			"api_rate_limit":   config.Env("API_RATE_LIMIT", "1000-H"),
			"admin_rate_limit": config.Env("ADMIN_RATE_LIMIT", "600-M"),

			// 允许跨域的来源，逗号分隔
			"cors_origins": config.Env("CORS_ORIGINS", "*"),
		}
	})
}
