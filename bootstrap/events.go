package bootstrap

import (
	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"easypay/pkg/config"
	"easypay/pkg/events"
	"easypay/pkg/logger"
)

// SetupEvents 创建事件总线并注册监听者，返回关闭函数
//
// 审计日志始终开启；kafka.enabled 时把事件发布到 kafka.topic，生产者创建失败只记录日志。
func SetupEvents() (*events.Bus, func()) {
	bus := events.NewBus()
	bus.SubscribeAll("audit", events.AuditListener)

	var producer sarama.SyncProducer
	if config.GetBool("kafka.enabled") {
		p, err := events.NewKafkaProducer()
		if err != nil {
			logger.Error("Kafka", zap.String("action", "setup"), zap.Error(err))
		} else {
			producer = p
			topic := config.GetString("kafka.topic")
			bus.SubscribeAll("kafka", events.KafkaListener(producer, topic))
			logger.Info("Kafka", zap.String("action", "setup"), zap.String("topic", topic))
		}
	}

	return bus, func() {
		if producer != nil {
			logger.LogIf(producer.Close())
		}
	}
}
