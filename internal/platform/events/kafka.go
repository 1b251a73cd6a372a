package events

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
	log    *logger.Logger
}

func NewKafka(brokers []string, topic string, log *logger.Logger) Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &kafkaPublisher{writer: w, log: log.With("service", "KafkaPublisher")}
}

func (p *kafkaPublisher) Publish(ctx context.Context, key string, body []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: body})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
