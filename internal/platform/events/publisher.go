// Package events publishes domain events (registration, payment, check-in)
// to Kafka for downstream consumers such as certificate and mail pipelines.
// The publisher is optional: a nil *Publisher is a safe no-op, so services
// never branch on whether Kafka is configured.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"agendahub/internal/platform/config"
)

// Event types emitted by the core flows.
const (
	TypeRegistrationCreated = "registration.created"
	TypePaymentPending      = "payment.pending"
	TypePaymentSettled      = "payment.settled"
	TypePaymentClosed       = "payment.closed"
	TypeCheckInRecorded     = "checkin.recorded"
)

// Event is the wire shape written to the topic. Keys are the registration id
// so per-registration ordering is preserved within a partition.
type Event struct {
	Type           string    `json:"type"`
	AgendaID       string    `json:"agenda_id,omitempty"`
	RegistrationID string    `json:"registration_id,omitempty"`
	Role           string    `json:"role,omitempty"`
	Status         string    `json:"status,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher produces events asynchronously. Delivery failures are logged,
// never surfaced to the request path: the event stream is observability,
// not the source of truth.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the configured brokers and ensures the topic exists.
// Returns nil (no error) when no brokers are configured.
func New(ctx context.Context, cfg config.Kafka, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Publisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic, r.Err)
		}
	}
	return nil
}

// Emit produces one event without blocking the caller.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal domain event", "error", err, "type", event.Type)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.RegistrationID),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce domain event", "error", err, "type", event.Type)
		}
	})
}

// Close flushes pending records and shuts the client down.
func (p *Publisher) Close(ctx context.Context) {
	if p == nil {
		return
	}
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Error("flush domain events", "error", err)
	}
	p.client.Close()
}
