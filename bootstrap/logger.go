package bootstrap

import (
	"easypay/pkg/config"
	"easypay/pkg/logger"
)

// SetupLogger 初始化 Logger，配置项见 config/log.go
//
// 本地环境同时输出到终端；daily 类型按日期切分文件。
func SetupLogger() {
	logger.InitLogger(
		config.GetString("log.filename"),
		config.GetInt("log.max_size"),
		config.GetInt("log.max_backup"),
		config.GetInt("log.max_age"),
		config.GetBool("log.compress"),
		config.GetString("log.type"),
		config.GetString("log.level"),
	)
}
