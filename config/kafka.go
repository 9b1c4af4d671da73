package config

import "easypay/pkg/config"

func init() {
	config.Add("kafka", func() map[string]interface{} {
		return map[string]interface{}{
			"enabled":   config.Env("KAFKA_ENABLED", false),
			"brokers":   config.Env("KAFKA_BROKERS", "127.0.0.1:9092"),
			"topic":     config.Env("KAFKA_PAYMENT_TOPIC", "easypay.payment-events"),
			"client_id": config.Env("KAFKA_CLIENT_ID", "easypay"),
		}
	})
}
