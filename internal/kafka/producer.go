package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

// Producer streams booking lifecycle events to downstream services
// (notifications, analytics). In mock mode every publish is a logged no-op.
type Producer struct {
	created *kafka.Writer
	paid    *kafka.Writer
	closed  *kafka.Writer
	mock    bool
	log     *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	p := &Producer{mock: cfg.MockMode || !cfg.Enabled, log: log}
	if p.mock {
		log.Warn("KAFKA", "Producer running in mock mode, events will not be published")
		return p
	}

	p.created = newWriter(cfg.Brokers, cfg.Topics.BookingCreated)
	p.paid = newWriter(cfg.Brokers, cfg.Topics.BookingPaid)
	p.closed = newWriter(cfg.Brokers, cfg.Topics.BookingClosed)
	return p
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
}

func (p *Producer) publish(w *kafka.Writer, b models.Booking) error {
	msgBytes, err := json.Marshal(b)
	if err != nil {
		return err
	}

	if p.mock {
		p.log.Debug("KAFKA", fmt.Sprintf("Mock publish: %s", string(msgBytes)))
		return nil
	}

	p.log.LogKafka("PUBLISH", w.Topic, b.ID)
	return w.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(b.ID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) PublishBookingCreated(b models.Booking) error {
	return p.publish(p.created, b)
}

func (p *Producer) PublishBookingPaid(b models.Booking) error {
	return p.publish(p.paid, b)
}

// PublishBookingClosed covers the failed, expired, and cancelled terminal
// states; consumers branch on the status field.
func (p *Producer) PublishBookingClosed(b models.Booking) error {
	return p.publish(p.closed, b)
}

func (p *Producer) Close() error {
	if p.mock {
		return nil
	}
	for _, w := range []*kafka.Writer{p.created, p.paid, p.closed} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
