package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-booking/internal/logger"

	"github.com/segmentio/kafka-go"
)

// PaymentEvent is the relay message on the payment-events topic. Only the
// reference is used; the pushed status is never trusted, reconciliation
// re-verifies against the provider.
type PaymentEvent struct {
	Reference string `json:"reference"`
	Status    string `json:"status,omitempty"`
}

type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

// Start consumes payment events until the context is cancelled, invoking
// the handler with each event's reference.
func (c *Consumer) Start(ctx context.Context, handler func(reference string)) {
	c.log.Info("KAFKA", "Payment events consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var event PaymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal payment event: %v", err))
			continue
		}
		if event.Reference == "" {
			c.log.Warn("KAFKA", "Payment event without reference, skipping")
			continue
		}

		c.log.LogKafka("RECEIVE", c.reader.Config().Topic, event.Reference)
		handler(event.Reference)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
