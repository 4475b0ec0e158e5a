package app

import (
	"time"

	"github.com/segmentio/kafka-go"

	"ridedispatch/internal/config"
)

// NewNotificationWriter returns a producer for the notification topic, or
// nil when no brokers are configured. Messages are hashed by key so a
// recipient's notifications keep their order.
func NewNotificationWriter(cfg config.KafkaConfig) *kafka.Writer {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}
