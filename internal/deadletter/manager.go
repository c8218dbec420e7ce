// Package deadletter inspects and recovers messages that exhausted their
// redelivery budget on a subscription.
package deadletter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/vetrovmax/notify-dispatcher/internal/bus"
)

//go:generate mockgen -source=manager.go -destination=../mocks/deadletter/mock.go -package=mocks

type dlqBus interface {
	Publish(ctx context.Context, msg bus.Message) error
	PeekDeadLetters(ctx context.Context, subscription string, limit int) ([]bus.DeadLetter, error)
	ReceiveDeadLetters(ctx context.Context, subscription string, limit int) ([]bus.DeadLetterDelivery, error)
}

type Manager struct {
	bus dlqBus
}

func NewManager(b dlqBus) *Manager {
	return &Manager{bus: b}
}

// Peek returns up to limit dead-lettered messages without consuming them.
// On transport error it degrades to an empty result — callers must not read
// an empty slice as a confirmed-empty queue.
func (m *Manager) Peek(ctx context.Context, subscription string, limit int) []bus.DeadLetter {
	entries, err := m.bus.PeekDeadLetters(ctx, subscription, limit)
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("subscription", subscription).
			Msg("failed to peek dead letters")
		return nil
	}

	return entries
}

// Replay republishes up to batchSize dead-lettered messages onto the topic
// and returns how many were replayed. Each replacement keeps the body,
// content type, routing attributes and correlation id of the original but
// gets a fresh message id; the original is completed only after its
// replacement is confirmed published, so a mid-batch failure loses nothing.
//
// Unlike Peek, a transport failure here is surfaced: hiding it would hide
// permanent message loss.
func (m *Manager) Replay(ctx context.Context, subscription string, batchSize int) (int, error) {
	deliveries, err := m.bus.ReceiveDeadLetters(ctx, subscription, batchSize)
	if err != nil {
		return 0, fmt.Errorf("receive dead letters from %s: %w", subscription, err)
	}

	replayed := 0
	for i, dl := range deliveries {
		msg := bus.Message{
			ID:            uuid.NewString(),
			CorrelationID: dl.CorrelationID,
			ContentType:   dl.ContentType,
			Body:          dl.Body,
			Attributes:    dl.Attributes,
		}

		if err := m.bus.Publish(ctx, msg); err != nil {
			// Put this message and the untouched remainder back; already
			// replayed ones stay replayed.
			for _, rest := range deliveries[i:] {
				if rerr := rest.Release(); rerr != nil {
					zlog.Logger.Error().Err(rerr).
						Str("message_id", rest.ID).
						Msg("failed to release dead letter")
				}
			}

			return replayed, fmt.Errorf("republish dead letter %s: %w", dl.ID, err)
		}

		if err := dl.Complete(); err != nil {
			// The replacement is on the topic; a completion failure only
			// means the original may show up for replay again, which the
			// consumers' idempotency absorbs.
			zlog.Logger.Error().Err(err).
				Str("message_id", dl.ID).
				Msg("failed to complete replayed dead letter")
		}

		replayed++
		zlog.Logger.Info().
			Str("original_message_id", dl.ID).
			Str("message_id", msg.ID).
			Str("subscription", subscription).
			Msg("dead letter replayed")
	}

	return replayed, nil
}
