// Package consumer implements the generic channel consumer engine. One
// instance per channel, each bound to its own filtered subscription; the
// channel-specific transport is injected as a Sender, so the processing
// state machine exists exactly once.
package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	"github.com/vetrovmax/notify-dispatcher/internal/message"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
	"github.com/vetrovmax/notify-dispatcher/internal/repository/notification"
)

//go:generate mockgen -source=consumer.go -destination=../mocks/consumer/mock.go -package=mocks

// Sender performs the channel-specific delivery side effect. Its failure is
// the one expected failure in the pipeline and triggers broker redelivery.
type Sender interface {
	Send(to, msg string) error
}

type notificationStore interface {
	GetNotificationByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	MarkSent(ctx context.Context, strategy retry.Strategy, id uuid.UUID, processedAt time.Time) error
	MarkFailed(ctx context.Context, strategy retry.Strategy, id uuid.UUID) error
}

type subscriptionBus interface {
	Consume(ctx context.Context, subscription string, out chan<- bus.Delivery) error
}

// Consumer pulls messages from one subscription and drives each through the
// processing state machine with a bounded number of in-flight handlers.
type Consumer struct {
	bus          subscriptionBus
	store        notificationStore
	sender       Sender
	channel      string
	subscription string
	strategy     retry.Strategy
	maxInFlight  int
}

func New(
	b subscriptionBus,
	store notificationStore,
	sender Sender,
	channel, subscription string,
	strategy retry.Strategy,
	maxInFlight int,
) *Consumer {
	if maxInFlight <= 0 {
		maxInFlight = 20
	}

	return &Consumer{
		bus:          b,
		store:        store,
		sender:       sender,
		channel:      channel,
		subscription: subscription,
		strategy:     strategy,
		maxInFlight:  maxInFlight,
	}
}

// Run consumes the subscription until ctx is cancelled, then waits for
// in-flight handlers to finish. Handlers run on a detached context so that
// shutdown never interrupts the window between the store write and the
// acknowledgement.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries := make(chan bus.Delivery)

	go func() {
		if err := c.bus.Consume(ctx, c.subscription, deliveries); err != nil {
			zlog.Logger.Error().Err(err).Str("subscription", c.subscription).Msg("consume failed")
		}
	}()

	sem := make(chan struct{}, c.maxInFlight)
	var wg sync.WaitGroup

	zlog.Logger.Info().
		Str("channel", c.channel).
		Str("subscription", c.subscription).
		Int("max_in_flight", c.maxInFlight).
		Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			zlog.Logger.Info().Str("channel", c.channel).Msg("consumer stopped")
			return nil
		case d := <-deliveries:
			sem <- struct{}{}
			wg.Add(1)

			go func(d bus.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()

				c.handle(context.Background(), d)
			}(d)
		}
	}
}

// handle drives one delivery through the state machine:
// decode, channel check, idempotency check, send, commit.
func (c *Consumer) handle(ctx context.Context, d bus.Delivery) {
	payload, err := message.Decode(d.Body)
	if err != nil {
		// Poison message: redelivery cannot fix an undecodable body, so it
		// is dropped rather than retried forever.
		zlog.Logger.Error().Err(err).
			Str("message_id", d.ID).
			Str("subscription", c.subscription).
			Msg("poison message dropped")
		c.ack(d)
		return
	}

	if payload.Channel != c.channel {
		// The subscription filter should make this impossible; ack anyway so
		// a misrouted message cannot poison-loop.
		zlog.Logger.Info().
			Str("id", payload.NotificationID.String()).
			Str("channel", payload.Channel).
			Msgf("%s consumer skipping message for another channel", c.channel)
		c.ack(d)
		return
	}

	n, err := c.store.GetNotificationByID(ctx, payload.NotificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			zlog.Logger.Warn().
				Str("id", payload.NotificationID.String()).
				Msg("notification not found in store, dropping message")
			c.ack(d)
			return
		}

		zlog.Logger.Error().Err(err).
			Str("id", payload.NotificationID.String()).
			Msg("failed to load notification")
		c.nack(d)
		return
	}

	if n.Status == model.StatusSent {
		zlog.Logger.Info().
			Str("id", n.ID.String()).
			Str("correlation_id", n.CorrelationID.String()).
			Msg("duplicate delivery ignored, already sent")
		c.ack(d)
		return
	}

	if err := c.sender.Send(payload.UserID, payload.Message); err != nil {
		zlog.Logger.Error().Err(err).
			Str("id", n.ID.String()).
			Int("delivery_count", d.DeliveryCount).
			Msgf("failed to send %s notification", c.channel)

		if ferr := c.store.MarkFailed(ctx, c.strategy, n.ID); ferr != nil {
			zlog.Logger.Error().Err(ferr).Str("id", n.ID.String()).Msg("failed to mark notification failed")
		}

		// Nack so the bus registers the failed attempt and applies its
		// redelivery/dead-letter policy.
		c.nack(d)
		return
	}

	if err := c.store.MarkSent(ctx, c.strategy, n.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, notification.ErrAlreadySent) {
			// A concurrent attempt won the conditional update; this one is a
			// duplicate and the record must not be touched again.
			c.ack(d)
			return
		}

		zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to mark notification sent")
		c.nack(d)
		return
	}

	zlog.Logger.Info().
		Str("id", n.ID.String()).
		Str("correlation_id", n.CorrelationID.String()).
		Msgf("%s notification sent", c.channel)
	c.ack(d)
}

func (c *Consumer) ack(d bus.Delivery) {
	if err := d.Ack(); err != nil {
		zlog.Logger.Error().Err(err).Str("message_id", d.ID).Msg("failed to ack message")
	}
}

func (c *Consumer) nack(d bus.Delivery) {
	if err := d.Nack(); err != nil {
		zlog.Logger.Error().Err(err).Str("message_id", d.ID).Msg("failed to nack message")
	}
}
