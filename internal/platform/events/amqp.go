package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type amqpPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	log        *logger.Logger
}

// NewAMQP declares a durable topic exchange and publishes to it. An empty
// key on Publish falls back to routingKey.
func NewAMQP(url, exchange, routingKey string, log *logger.Logger) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}
	return &amqpPublisher{
		conn:       conn,
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log.With("service", "AMQPPublisher"),
	}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, key string, body []byte) error {
	if key == "" {
		key = p.routingKey
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (p *amqpPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.log.Warn("amqp channel close", "error", err)
	}
	return p.conn.Close()
}
