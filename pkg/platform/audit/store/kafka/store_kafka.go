// Package kafka forwards audit events to a Kafka topic. Kafka is the source
// of truth for the audit trail in multi-instance deployments; consumers
// apply retention per event category.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "rollcall/pkg/platform/audit"
)

// Store publishes audit events to Kafka via franz-go.
type Store struct {
	client *kgo.Client
	topic  string
}

// payload is the JSON structure written to the topic. Field names are part
// of the consumer contract.
type payload struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Actor     string `json:"actor,omitempty"`
	Subject   string `json:"subject"`
	EventID   int64  `json:"event_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// New connects a producer to the given brokers. The caller owns Close.
func New(brokers []string, topic string) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Store{client: client, topic: topic}, nil
}

// Append publishes the event synchronously. Audit writes sit on mutation
// paths that already completed, so a publish failure is returned to the
// caller for logging rather than retried here.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	body, err := json.Marshal(payload{
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Actor:     event.Actor,
		Subject:   event.Subject,
		EventID:   event.EventID,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: body,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and releases the producer.
func (s *Store) Close() {
	s.client.Close()
}
