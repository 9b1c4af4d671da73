package config

import "easypay/pkg/config"

func init() {
	config.Add("easypay", func() map[string]interface{} {
		return map[string]interface{}{
			// 加盟店 ID，测试环境默认 T0021792
			"mall_id": config.Env("EASYPAY_MALL_ID", "T0021792"),

			// API 地址，包含 testpgapi 时视为测试环境
			"api_url": config.Env("EASYPAY_API_URL", "https://testpgapi.easypay.co.kr"),

			// 生产环境 msgAuthValue 的 HMAC 密钥
			"secret_key": config.Env("EASYPAY_SECRET_KEY", ""),

			// 请求超时（秒）
			"timeout": config.Env("EASYPAY_TIMEOUT", 30),

			// 默认结算方式：11=信用卡, 21=账户转账, 31=手机
			"pay_method": config.Env("EASYPAY_PAY_METHOD", "11"),

			// 支付完成后 EasyPay 回调地址
			"return_url": config.Env("EASYPAY_RETURN_URL", "http://localhost:3000/v1/payments/callback"),
		}
	})
}
