package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"easypay/pkg/config"
	"easypay/pkg/logger"
)

// AuditListener 以 info 级别记录每个事件，不包含 authorization_id
func AuditListener(ctx context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("event_id", e.ID),
	}
	if p := e.Payment; p != nil {
		fields = append(fields,
			zap.Uint64("payment_id", p.ID),
			zap.String("order_no", p.OrderNo),
			zap.String("transaction_id", p.TransactionID),
			zap.String("status", string(p.Status)),
			zap.Int64("amount", p.Amount),
		)
	}
	switch e.Kind {
	case KindFailed:
		fields = append(fields, zap.String("stage", e.Stage), zap.String("error_code", e.ErrorCode), zap.String("error_message", e.ErrorMessage))
	case KindCancelled:
		fields = append(fields, zap.String("cancel_type", string(e.CancelType)), zap.Int64("cancel_amount", e.CancelAmount))
	case KindApproved:
		if e.Approval != nil {
			fields = append(fields, zap.String("card_issuer", e.Approval.CardIssuer), zap.String("card_number", e.Approval.MaskedCardNumber))
		}
	}
	logger.Info("Audit", fields...)
	return nil
}

// KafkaMessage 发送到 Kafka 的事件格式
type KafkaMessage struct {
	Kind          Kind      `json:"kind"`
	OrderNo       string    `json:"order_no"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// KafkaListener 把事件发布到 Kafka，消息以订单号为 key，同一订单的事件落在同一分区
func KafkaListener(producer sarama.SyncProducer, topic string) Listener {
	return func(ctx context.Context, e Event) error {
		if e.Payment == nil {
			return nil
		}
		data, err := json.Marshal(KafkaMessage{
			Kind:          e.Kind,
			OrderNo:       e.Payment.OrderNo,
			Status:        string(e.Payment.Status),
			Amount:        e.Payment.Amount,
			TransactionID: e.Payment.TransactionID,
			OccurredAt:    e.OccurredAt,
		})
		if err != nil {
			return fmt.Errorf("marshal kafka message: %w", err)
		}

		partition, offset, err := producer.SendMessage(&sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(e.Payment.OrderNo),
			Value: sarama.ByteEncoder(data),
		})
		if err != nil {
			return fmt.Errorf("send kafka message: %w", err)
		}

		logger.Debug("Kafka",
			zap.String("topic", topic),
			zap.String("kind", string(e.Kind)),
			zap.Int32("partition", partition),
			zap.Int64("offset", offset),
		)
		return nil
	}
}

// NewKafkaProducer 根据 kafka.* 配置创建同步生产者
func NewKafkaProducer() (sarama.SyncProducer, error) {
	brokers := strings.Split(config.GetString("kafka.brokers"), ",")

	cfg := sarama.NewConfig()
	cfg.ClientID = config.GetString("kafka.client_id", "easypay")
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}
