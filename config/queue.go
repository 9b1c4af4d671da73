package config

import "easypay/pkg/config"

func init() {
	config.Add("queue", func() map[string]interface{} {
		return map[string]interface{}{
			// 是否通过 Redis 队列延迟派发支付事件，关闭时同步派发
			"async_events": config.Env("QUEUE_ASYNC_EVENTS", false),
			"rate_limit":   config.Env("QUEUE_RATE_LIMIT", 200),
			"rate_burst":   config.Env("QUEUE_RATE_BURST", 50),
			"worker_count": config.Env("QUEUE_WORKER_COUNT", 4),
			"retry_times":  config.Env("QUEUE_RETRY_TIMES", 3),
			"retry_delay":  config.Env("QUEUE_RETRY_DELAY", 1),
		}
	})
}
