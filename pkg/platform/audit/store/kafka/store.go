// Package kafka publishes audit events to a Kafka topic, one JSON record per
// event keyed by client id.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "mcpauth/pkg/platform/audit"
	"mcpauth/pkg/platform/circuit"
)

// ErrCircuitOpen is returned while the broker is considered unhealthy.
var ErrCircuitOpen = errors.New("audit kafka circuit open")

// Producer is the subset of *kgo.Client the store needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Store produces audit events to Kafka.
type Store struct {
	producer Producer
	topic    string
	timeout  time.Duration
	breaker  *circuit.Breaker
}

// Dial connects to the given seed brokers.
func Dial(brokers []string, topic string) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return New(client, topic), nil
}

// New wraps an existing producer.
func New(producer Producer, topic string) *Store {
	return &Store{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
		breaker:  circuit.New("audit-kafka", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
	}
}

// Append produces one record and waits for the ack.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if !s.breaker.Allow() {
		return ErrCircuitOpen
	}

	event.Category = audit.AuditEvent(event.Action).Category()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.ClientID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.breaker.RecordFailure()
		return fmt.Errorf("produce audit event: %w", err)
	}
	s.breaker.RecordSuccess()
	return nil
}

// Close flushes and closes the underlying client.
func (s *Store) Close() {
	s.producer.Close()
}
