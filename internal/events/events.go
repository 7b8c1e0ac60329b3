// Package events publishes domain lifecycle events to Kafka so downstream
// consumers (billing exports, analytics, notification fan-out) can react
// without polling the database. Publishing is optional: with no brokers
// configured every call is a no-op, and a broker outage never fails the
// request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Type enumerates the published event kinds.
type Type string

const (
	VideoUploaded    Type = "lora.video.uploaded"
	TrainingStarted  Type = "lora.training.started"
	TrainingFinished Type = "lora.training.finished"
	WalletDebited    Type = "lora.wallet.debited"
	WalletCredited   Type = "lora.wallet.credited"
)

// Event is the wire shape written to the topic. Data holds the event-kind
// specific fields; UserID doubles as the partition key so one user's events
// stay ordered.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id"`
	Data      map[string]any `json:"data"`
}

// Publisher emits events. The zero-value-safe nil receiver makes wiring
// optional at every call site.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a Kafka-backed publisher, or nil when no brokers are
// configured. A nil Publisher is valid and publishes nothing.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	if topic == "" {
		topic = "lora.events"
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Publish emits one event. Failures are logged and swallowed; event
// delivery is best effort and never blocks or fails the producing request.
func (p *Publisher) Publish(ctx context.Context, typ Type, userID string, data map[string]any) {
	if p == nil || p.writer == nil {
		return
	}

	evt := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Data:      data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("marshal event")
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: payload,
	})
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(typ)).Str("user_id", userID).Msg("publish event")
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
