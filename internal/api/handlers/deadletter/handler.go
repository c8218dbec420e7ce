package deadletter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/vetrovmax/notify-dispatcher/internal/api/dto"
	"github.com/vetrovmax/notify-dispatcher/internal/api/respond"
	"github.com/vetrovmax/notify-dispatcher/internal/bus"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/deadletter/mock.go -package=mocks

// How many entries one peek or replay call touches.
const batchSize = 10

type deadLetterManager interface {
	Peek(ctx context.Context, subscription string, limit int) []bus.DeadLetter
	Replay(ctx context.Context, subscription string, batchSize int) (int, error)
}

type Handler struct {
	manager deadLetterManager
}

func NewHandler(m deadLetterManager) *Handler {
	return &Handler{manager: m}
}

// Peek lists dead-lettered messages on a subscription without consuming
// them. An empty list may also mean the queue could not be read.
func (h *Handler) Peek(c *ginext.Context) {
	subscription := c.Param("subscription")

	entries := h.manager.Peek(c.Request.Context(), subscription, batchSize)

	result := make([]dto.DeadLetterEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, dto.DeadLetterEntry{
			MessageID:        e.ID,
			Body:             string(e.Body),
			Reason:           e.Reason,
			ErrorDescription: e.ErrorDescription,
			DeliveryCount:    e.DeliveryCount,
		})
	}

	respond.OK(c.Writer, result)
}

// Replay republishes dead-lettered messages onto the topic.
func (h *Handler) Replay(c *ginext.Context) {
	subscription := c.Param("subscription")

	count, err := h.manager.Replay(c.Request.Context(), subscription, batchSize)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("subscription", subscription).Msg("failed to replay dead letters")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("failed to replay messages: %s", err.Error()))
		return
	}

	respond.OK(c.Writer, dto.ReplayResponse{ReplayedCount: count})
}
