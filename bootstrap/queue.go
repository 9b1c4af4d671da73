package bootstrap

import (
	"time"

	"easypay/pkg/config"
	"easypay/pkg/events"
	"easypay/pkg/logger"
	"easypay/pkg/queue"
	"easypay/pkg/redis"
)

// SetupQueue 开启事件延迟派发并启动 worker
//
// queue.async_events 关闭或 Redis 不可用时返回 nil，事件同步派发。
func SetupQueue(bus *events.Bus) (*queue.Worker, *queue.EventQueue) {
	if !config.GetBool("queue.async_events") {
		return nil, nil
	}
	if redis.Manager == nil {
		logger.ErrorString("Queue", "Setup", "Redis manager not initialized, events dispatch synchronously")
		return nil, nil
	}

	eventQueue, err := queue.NewEventQueue()
	if err != nil {
		logger.ErrorString("Queue", "Setup", err.Error())
		return nil, nil
	}

	worker := queue.NewWorker(eventQueue, bus, eventQueue.Metrics(), queue.WorkerConfig{
		WorkerCount:     config.GetInt("queue.worker_count", 4),
		MaxRetries:      config.GetInt("queue.retry_times", 3),
		RetryInterval:   time.Duration(config.GetInt("queue.retry_delay", 1)) * time.Second,
		ShutdownTimeout: 30 * time.Second,
	})
	bus.SetDeferrer(eventQueue)
	worker.Start()

	logger.InfoString("Queue", "Setup", "事件队列启动成功，key: "+eventQueue.Key())
	return worker, eventQueue
}
