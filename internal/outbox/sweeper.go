// Package outbox reconciles orphaned PENDING records: notifications whose
// store write succeeded but whose publish may never have reached the bus.
// Republishing an already-in-flight notification is harmless — the
// consumers' idempotency check absorbs the duplicate.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wb-go/wbf/zlog"

	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	"github.com/vetrovmax/notify-dispatcher/internal/message"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
)

type pendingRepository interface {
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.Notification, error)
}

// Sweeper periodically republishes PENDING records older than a cutoff.
type Sweeper struct {
	repo      pendingRepository
	bus       bus.Publisher
	every     time.Duration
	olderThan time.Duration
	batchSize int
	cron      *cron.Cron
}

func NewSweeper(repo pendingRepository, b bus.Publisher, every, olderThan time.Duration, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Sweeper{
		repo:      repo,
		bus:       b,
		every:     every,
		olderThan: olderThan,
		batchSize: batchSize,
	}
}

// Start schedules the sweep. It returns immediately; Stop halts scheduling
// and waits for a running sweep to finish.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()

	spec := fmt.Sprintf("@every %s", s.every)
	if _, err := c.AddFunc(spec, func() { s.sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	c.Start()
	s.cron = c

	zlog.Logger.Info().
		Str("every", s.every.String()).
		Str("older_than", s.olderThan.String()).
		Msg("reconciliation sweep started")

	return nil
}

func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	zlog.Logger.Info().Msg("reconciliation sweep stopped")
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.olderThan)

	stale, err := s.repo.ListStalePending(ctx, cutoff, s.batchSize)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list stale pending notifications")
		return
	}

	if len(stale) == 0 {
		return
	}

	republished := 0
	for _, n := range stale {
		msg, err := message.New(n)
		if err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to build sweep message")
			continue
		}

		if err := s.bus.Publish(ctx, msg); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to republish stale notification")
			continue
		}

		republished++
	}

	zlog.Logger.Info().
		Int("stale", len(stale)).
		Int("republished", republished).
		Msg("reconciliation sweep completed")
}
