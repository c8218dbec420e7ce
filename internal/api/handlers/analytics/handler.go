package analytics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/vetrovmax/notify-dispatcher/internal/api/respond"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/analytics/mock.go -package=mocks

// How many rows the recent-activity listing returns.
const recentLimit = 20

type analyticsService interface {
	GetSummary(ctx context.Context) (model.Summary, error)
	GetChannelSummaries(ctx context.Context) ([]model.ChannelSummary, error)
	GetRecentNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	GetTenantSummary(ctx context.Context, tenantID string) (model.TenantSummary, error)
}

type Handler struct {
	service analyticsService
}

func NewHandler(s analyticsService) *Handler {
	return &Handler{service: s}
}

// Summary returns aggregate counts and the average processing time.
func (h *Handler) Summary(c *ginext.Context) {
	summary, err := h.service.GetSummary(c.Request.Context())
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to get summary")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, summary)
}

// ByChannel returns aggregate counts broken down by channel.
func (h *Handler) ByChannel(c *ginext.Context) {
	summaries, err := h.service.GetChannelSummaries(c.Request.Context())
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to get channel summaries")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, summaries)
}

// Recent returns the most recently created notifications.
func (h *Handler) Recent(c *ginext.Context) {
	notifications, err := h.service.GetRecentNotifications(c.Request.Context(), recentLimit)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to get recent notifications")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, notifications)
}

// TenantSummary returns aggregate counts for one tenant.
func (h *Handler) TenantSummary(c *ginext.Context) {
	tenantID := c.Param("tenantId")

	summary, err := h.service.GetTenantSummary(c.Request.Context(), tenantID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to get tenant summary")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, summary)
}
