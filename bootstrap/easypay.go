package bootstrap

import (
	"time"

	"go.uber.org/zap"

	"easypay/pkg/config"
	"easypay/pkg/easypay"
	"easypay/pkg/logger"
)

// SetupEasyPay 根据 easypay.* 配置创建 PG 客户端，配置不完整时 panic
func SetupEasyPay() *easypay.Client {
	client, err := easypay.NewClient(easypay.Config{
		MallID:    config.GetString("easypay.mall_id"),
		APIURL:    config.GetString("easypay.api_url"),
		SecretKey: config.GetString("easypay.secret_key"),
		Timeout:   time.Duration(config.GetInt("easypay.timeout", 30)) * time.Second,
	})
	if err != nil {
		logger.Error("EasyPay", zap.String("action", "setup"), zap.Error(err))
		panic(err)
	}
	return client
}
