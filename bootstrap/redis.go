package bootstrap

import (
	"fmt"

	"easypay/pkg/config"
	"easypay/pkg/logger"
	"easypay/pkg/redis"
)

// SetupRedis 初始化 Redis，redis.enabled 关闭时限流使用内存存储，事件同步派发
func SetupRedis() {
	if !config.GetBool("redis.enabled") {
		logger.InfoString("Redis", "Setup", "Redis 未启用")
		return
	}

	redis.InitRedis(
		fmt.Sprintf("%v:%v", config.GetString("redis.host"), config.GetString("redis.port")),
		config.GetString("redis.username"),
		config.GetString("redis.password"),
		config.GetInt("redis.database"),
		config.GetInt("redis.queue_database"),
	)
}
