package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, m ...kafka.Message) error {
	f.msgs = append(f.msgs, m...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherKeysByRun(t *testing.T) {
	fw := &fakeWriter{}
	p := &kafkaPublisher{writer: fw, log: logger.Nop()}
	body, err := RunCompleted{RunID: "r1", ManifestKey: "out/manifest.json", Shards: 2}.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := p.Publish(context.Background(), "r1", body); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(fw.msgs) != 1 || string(fw.msgs[0].Key) != "r1" {
		t.Fatalf("messages: got=%+v", fw.msgs)
	}
	var got RunCompleted
	if err := json.Unmarshal(fw.msgs[0].Value, &got); err != nil || got.Type != TypeRunCompleted || got.ManifestKey != "out/manifest.json" {
		t.Fatalf("payload: got=%+v err=%v", got, err)
	}
	_ = p.Close()
	if !fw.closed {
		t.Fatalf("Close: writer not closed")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("RUN_EVENTS_BROKER", "")
	p, err := NewFromEnv(logger.Nop())
	if err != nil || p.Publish(context.Background(), "k", nil) != nil {
		t.Fatalf("noop: err=%v", err)
	}
	t.Setenv("RUN_EVENTS_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "")
	if _, err := NewFromEnv(logger.Nop()); err == nil {
		t.Fatalf("kafka without brokers: expected error")
	}
	t.Setenv("RUN_EVENTS_BROKER", "carrier-pigeon")
	if _, err := NewFromEnv(logger.Nop()); err == nil {
		t.Fatalf("unknown broker: expected error")
	}
}
