// Package events publishes candidate state transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"

	"github.com/sells-group/candidate-profiler/internal/config"
)

// Event records one enrichment-state transition.
type Event struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Stage       string    `json:"stage"`
	Outcome     string    `json:"outcome"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher emits transition events. Publishing happens after the state
// write commits, so a failed publish never undoes a transition.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewPublisher returns a Kafka publisher, or a no-op one when no brokers are
// configured.
func NewPublisher(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	})
}

// KafkaPublisher writes events keyed by candidate ID so one candidate's
// transitions stay ordered within a partition.
type KafkaPublisher struct {
	w     MessageWriter
	newID func() string
	now   func() time.Time
}

// NewKafkaPublisher wraps a writer.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, newID: uuid.NewString, now: time.Now}
}

// Publish fills ID and At when unset and writes the event.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = p.newID()
	}
	if ev.At.IsZero() {
		ev.At = p.now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "events: marshal")
	}
	msg := kafka.Message{
		Key:   []byte(ev.CandidateID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "stage", Value: []byte(ev.Stage)},
			{Key: "outcome", Value: []byte(ev.Outcome)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return eris.Wrapf(err, "events: publish %s", ev.CandidateID)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
