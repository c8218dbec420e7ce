package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	"github.com/vetrovmax/notify-dispatcher/internal/message"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
	"github.com/vetrovmax/notify-dispatcher/internal/repository/notification"
)

//go:generate mockgen -source=service.go -destination=../../mocks/service/notification/mock.go -package=mocks

type notificationRepository interface {
	CreateNotification(context.Context, model.Notification) (uuid.UUID, error)
	GetNotificationByID(context.Context, uuid.UUID) (model.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	GetSummary(context.Context) (model.Summary, error)
	GetChannelSummaries(context.Context) ([]model.ChannelSummary, error)
	GetRecentNotifications(context.Context, int) ([]model.Notification, error)
	GetTenantSummary(context.Context, string) (model.TenantSummary, error)
}

type messageBus interface {
	Publish(ctx context.Context, msg bus.Message) error
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// statusCacheEntry is the value cached per notification id for the
// read-only status endpoint.
type statusCacheEntry struct {
	Status      string     `json:"status"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

type Service struct {
	repo  notificationRepository
	bus   messageBus
	cache cache
}

func NewService(repo notificationRepository, b messageBus, c cache) *Service {
	return &Service{repo: repo, bus: b, cache: c}
}

// CreateNotification persists a PENDING record and then publishes its
// dispatch message. The order matters: a consumer firing right after the
// publish must always find the record.
//
// If the publish fails after the record was persisted the error is returned
// together with the id: the caller sees the orphaned PENDING record instead
// of a silent gap, and the reconciliation sweep republishes it later.
func (s *Service) CreateNotification(ctx context.Context, strategy retry.Strategy, n model.Notification) (uuid.UUID, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CorrelationID == uuid.Nil {
		n.CorrelationID = uuid.New()
	}
	n.Status = model.StatusPending
	n.CreatedAt = time.Now().UTC()

	id, err := s.repo.CreateNotification(ctx, n)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create notification: %w", err)
	}

	s.cacheStatus(ctx, strategy, id, statusCacheEntry{Status: n.Status})

	msg, err := message.New(n)
	if err != nil {
		return id, fmt.Errorf("build message: %w", err)
	}

	if err := s.bus.Publish(ctx, msg); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to publish notification")
		return id, fmt.Errorf("publish notification: %w", err)
	}

	return id, nil
}

// GetNotificationStatusByID returns the delivery state of a notification,
// served from the Redis cache when possible.
func (s *Service) GetNotificationStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.StatusInfo, error) {
	raw, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status from cache")
	}

	if err == nil {
		var entry statusCacheEntry
		if uerr := json.Unmarshal([]byte(raw), &entry); uerr == nil {
			return model.StatusInfo{ID: id, Status: entry.Status, ProcessedAt: entry.ProcessedAt}, nil
		}
	}

	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			return model.StatusInfo{}, err
		}

		return model.StatusInfo{}, fmt.Errorf("get notification status: %w", err)
	}

	s.cacheStatus(ctx, strategy, id, statusCacheEntry{Status: n.Status, ProcessedAt: n.ProcessedAt})

	return model.StatusInfo{ID: n.ID, Status: n.Status, ProcessedAt: n.ProcessedAt}, nil
}

// GetNotificationByID reads the authoritative record, bypassing the cache.
// Consumers use this for the idempotency check, which must never act on a
// stale status.
func (s *Service) GetNotificationByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	return s.repo.GetNotificationByID(ctx, id)
}

// MarkSent commits a successful delivery: conditional SENT transition plus
// cache refresh. notification.ErrAlreadySent propagates so the caller can
// treat the message as a duplicate.
func (s *Service) MarkSent(ctx context.Context, strategy retry.Strategy, id uuid.UUID, processedAt time.Time) error {
	if err := s.repo.MarkSent(ctx, id, processedAt); err != nil {
		return err
	}

	s.cacheStatus(ctx, strategy, id, statusCacheEntry{Status: model.StatusSent, ProcessedAt: &processedAt})

	return nil
}

// MarkFailed records a failed delivery attempt unless the record is already
// SENT.
func (s *Service) MarkFailed(ctx context.Context, strategy retry.Strategy, id uuid.UUID) error {
	if err := s.repo.MarkFailed(ctx, id); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}

	s.cacheStatus(ctx, strategy, id, statusCacheEntry{Status: model.StatusFailed})

	return nil
}

// GetSummary returns aggregate counts across all notifications.
func (s *Service) GetSummary(ctx context.Context) (model.Summary, error) {
	summary, err := s.repo.GetSummary(ctx)
	if err != nil {
		return model.Summary{}, fmt.Errorf("get summary: %w", err)
	}

	return summary, nil
}

// GetChannelSummaries returns aggregate counts broken down by channel.
func (s *Service) GetChannelSummaries(ctx context.Context) ([]model.ChannelSummary, error) {
	summaries, err := s.repo.GetChannelSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("get channel summaries: %w", err)
	}

	return summaries, nil
}

// GetRecentNotifications returns the most recently created notifications.
func (s *Service) GetRecentNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	notifications, err := s.repo.GetRecentNotifications(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent notifications: %w", err)
	}

	return notifications, nil
}

// GetTenantSummary returns aggregate counts for one tenant.
func (s *Service) GetTenantSummary(ctx context.Context, tenantID string) (model.TenantSummary, error) {
	summary, err := s.repo.GetTenantSummary(ctx, tenantID)
	if err != nil {
		return model.TenantSummary{}, fmt.Errorf("get tenant summary: %w", err)
	}

	return summary, nil
}

func (s *Service) cacheStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, entry statusCacheEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}

	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(raw)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}
}
