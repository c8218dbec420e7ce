package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/vetrovmax/notify-dispatcher/internal/model"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrAlreadySent          = errors.New("notification already sent")
)

// Repository provides methods to interact with the notifications table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// CreateNotification inserts a new notification into the database and returns its ID.
// The record is created in PENDING status; the caller must have generated the
// id and correlation id beforehand.
func (r *Repository) CreateNotification(ctx context.Context, n model.Notification) (uuid.UUID, error) {
	query := `
		INSERT INTO notifications (
		    id, type, channel, user_id, message, tenant_id, status, created_at, correlation_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id;
    `

	err := r.db.QueryRowContext(
		ctx, query,
		n.ID, n.Type, n.Channel, n.UserID, n.Message, n.TenantID, n.Status, n.CreatedAt, n.CorrelationID,
	).Scan(&n.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return n.ID, nil
}

// GetNotificationByID retrieves a notification by its ID.
func (r *Repository) GetNotificationByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	query := `
		SELECT id, type, channel, user_id, message, tenant_id, status, created_at, processed_at, correlation_id
		FROM notifications
		WHERE id = $1;
    `

	var n model.Notification
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.Type, &n.Channel, &n.UserID, &n.Message, &n.TenantID,
		&n.Status, &n.CreatedAt, &n.ProcessedAt, &n.CorrelationID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotificationNotFound
		}

		return model.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return n, nil
}

// MarkSent transitions a notification to SENT and stamps processed_at.
//
// The update is conditional on the record not being SENT already, so two
// workers racing on a duplicated message cannot both commit: the loser gets
// ErrAlreadySent and must treat the message as a duplicate.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, processed_at = $2
		WHERE id = $3 AND status <> $1;
    `

	res, err := r.db.ExecContext(ctx, query, model.StatusSent, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrAlreadySent
	}

	return nil
}

// MarkFailed transitions a notification to FAILED unless it is already SENT.
// A zero-row update is not an error: the record either completed concurrently
// or was never persisted, and neither case needs a FAILED stamp.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET status = $1
		WHERE id = $2 AND status <> $3;
    `

	_, err := r.db.ExecContext(ctx, query, model.StatusFailed, id, model.StatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}

	return nil
}

// GetSummary returns aggregate counts and the real average processing time
// over all notifications.
func (r *Repository) GetSummary(ctx context.Context) (model.Summary, error) {
	query := `
		SELECT
		    COUNT(*),
		    COUNT(*) FILTER (WHERE status = 'SENT'),
		    COUNT(*) FILTER (WHERE status = 'FAILED'),
		    COUNT(*) FILTER (WHERE status = 'PENDING'),
		    COALESCE(AVG(EXTRACT(EPOCH FROM (processed_at - created_at)) * 1000) FILTER (WHERE processed_at IS NOT NULL), 0)
		FROM notifications;
    `

	var s model.Summary
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Sent, &s.Failed, &s.Pending, &s.AverageProcessingMs)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to get summary: %w", err)
	}

	return s, nil
}

// GetChannelSummaries returns per-channel aggregate counts.
func (r *Repository) GetChannelSummaries(ctx context.Context) ([]model.ChannelSummary, error) {
	query := `
		SELECT
		    channel,
		    COUNT(*),
		    COUNT(*) FILTER (WHERE status = 'SENT'),
		    COUNT(*) FILTER (WHERE status = 'FAILED'),
		    COUNT(*) FILTER (WHERE status = 'PENDING')
		FROM notifications
		GROUP BY channel;
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel summaries: %w", err)
	}
	defer rows.Close()

	var summaries []model.ChannelSummary
	for rows.Next() {
		var s model.ChannelSummary
		if err := rows.Scan(&s.Channel, &s.Total, &s.Sent, &s.Failed, &s.Pending); err != nil {
			return nil, err
		}

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// GetRecentNotifications retrieves the most recently created notifications,
// newest first.
func (r *Repository) GetRecentNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	query := `
		SELECT id, type, channel, user_id, message, tenant_id, status, created_at, processed_at, correlation_id
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1;
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.Type, &n.Channel, &n.UserID, &n.Message, &n.TenantID,
			&n.Status, &n.CreatedAt, &n.ProcessedAt, &n.CorrelationID,
		); err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// GetTenantSummary returns aggregate counts for a single tenant.
func (r *Repository) GetTenantSummary(ctx context.Context, tenantID string) (model.TenantSummary, error) {
	query := `
		SELECT
		    COUNT(*),
		    COUNT(*) FILTER (WHERE status = 'SENT')
		FROM notifications
		WHERE tenant_id = $1;
    `

	var s model.TenantSummary
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&s.Total, &s.Sent)
	if err != nil {
		return model.TenantSummary{}, fmt.Errorf("failed to get tenant summary: %w", err)
	}

	return s, nil
}

// ListStalePending retrieves PENDING notifications created before the cutoff.
// The reconciliation sweep republishes these in case the original publish
// never reached the bus.
func (r *Repository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.Notification, error) {
	query := `
		SELECT id, type, channel, user_id, message, tenant_id, status, created_at, processed_at, correlation_id
		FROM notifications
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3;
    `

	rows, err := r.db.QueryContext(ctx, query, model.StatusPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.Type, &n.Channel, &n.UserID, &n.Message, &n.TenantID,
			&n.Status, &n.CreatedAt, &n.ProcessedAt, &n.CorrelationID,
		); err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}
