package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/config"
)

// MessageReader is the subset of *kafka.Reader used by Subscribe.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader creates a consumer-group reader for the transition topic.
func NewReader(cfg config.KafkaConfig, groupID string) (MessageReader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, eris.New("events: kafka.brokers is not configured")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), nil
}

// Subscribe calls fn for each event until ctx ends. Offsets are committed
// after fn returns nil; undecodable messages are logged and committed.
func Subscribe(ctx context.Context, r MessageReader, fn func(Event) error) error {
	defer r.Close() //nolint:errcheck

	log := zap.L().With(zap.String("component", "events.subscribe"))
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return eris.Wrap(err, "events: fetch")
		}

		var ev Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Warn("skipping undecodable event", zap.Int64("offset", msg.Offset), zap.Error(err))
		} else if err := fn(ev); err != nil {
			return err
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return eris.Wrap(err, "events: commit")
		}
	}
}
