// Package events publishes run lifecycle events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/envutil"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

const TypeRunCompleted = "forecast.run.completed"

// RunCompleted tells the trainer that a manifest is ready.
type RunCompleted struct {
	Type         string             `json:"type"`
	RunID        string             `json:"run_id"`
	ManifestKey  string             `json:"manifest_key"`
	Shards       int                `json:"shards"`
	Sequences    int                `json:"sequences"`
	ClassWeights map[string]float64 `json:"class_weights,omitempty"`
	CompletedAt  time.Time          `json:"completed_at"`
}

func (e RunCompleted) Marshal() ([]byte, error) {
	if e.Type == "" {
		e.Type = TypeRunCompleted
	}
	return json.Marshal(e)
}

type Publisher interface {
	// Publish sends body under key. Key is a partition/routing hint.
	Publish(ctx context.Context, key string, body []byte) error
	Close() error
}

type noop struct{}

func Noop() Publisher { return noop{} }

func (noop) Publish(context.Context, string, []byte) error { return nil }
func (noop) Close() error                                  { return nil }

const (
	BrokerNone  = ""
	BrokerAMQP  = "amqp"
	BrokerKafka = "kafka"
)

// NewFromEnv selects the broker from RUN_EVENTS_BROKER; empty disables events.
func NewFromEnv(log *logger.Logger) (Publisher, error) {
	broker := strings.ToLower(strings.TrimSpace(envutil.String("RUN_EVENTS_BROKER", "")))
	topic := envutil.String("RUN_EVENTS_TOPIC", "forecast.runs")
	switch broker {
	case BrokerNone:
		log.Info("Run events disabled")
		return Noop(), nil
	case BrokerAMQP:
		url := envutil.String("RABBITMQ_URL", "")
		if url == "" {
			return nil, fmt.Errorf("RUN_EVENTS_BROKER=amqp requires RABBITMQ_URL")
		}
		return NewAMQP(url, topic, envutil.String("RUN_EVENTS_ROUTING_KEY", TypeRunCompleted), log)
	case BrokerKafka:
		brokers := envutil.List("KAFKA_BROKERS")
		if len(brokers) == 0 {
			return nil, fmt.Errorf("RUN_EVENTS_BROKER=kafka requires KAFKA_BROKERS")
		}
		return NewKafka(brokers, topic, log), nil
	default:
		return nil, fmt.Errorf("unknown RUN_EVENTS_BROKER %q (want amqp or kafka)", broker)
	}
}
