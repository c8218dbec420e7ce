package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/vetrovmax/notify-dispatcher/internal/api/dto"
	"github.com/vetrovmax/notify-dispatcher/internal/api/respond"
	"github.com/vetrovmax/notify-dispatcher/internal/config"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
	"github.com/vetrovmax/notify-dispatcher/internal/repository/notification"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/notification/mock.go -package=mocks

type notificationService interface {
	CreateNotification(ctx context.Context, strategy retry.Strategy, n model.Notification) (uuid.UUID, error)
	GetNotificationStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.StatusInfo, error)
}

type Handler struct {
	service   notificationService
	validator *validator.Validate
	cfg       *config.Config
}

func NewHandler(
	s notificationService,
	v *validator.Validate,
	cfg *config.Config,
) *Handler {
	return &Handler{service: s, validator: v, cfg: cfg}
}

// Create accepts a notification request, persists it and publishes its
// dispatch message. Delivery itself is asynchronous: the response only
// promises that the record exists and the message is on its way.
func (h *Handler) Create(c *ginext.Context) {
	var req dto.CreateRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	notif := model.Notification{
		ID:            req.ID,
		Type:          req.Type,
		Channel:       req.Channel,
		UserID:        req.UserID,
		Message:       req.Message,
		TenantID:      req.TenantID,
		CorrelationID: req.CorrelationID,
	}

	id, err := h.service.CreateNotification(c.Request.Context(), h.cfg.Retry, notif)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("channel", notif.Channel).Msg("failed to create notification")

		// The record may exist with its publish pending reconciliation;
		// return the id so the caller can poll its status.
		if id != uuid.Nil {
			respond.JSON(c.Writer, http.StatusAccepted, dto.CreateResponse{ID: id, Error: "publish pending"})
			return
		}

		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, dto.CreateResponse{ID: id})
}

// GetStatus returns the delivery state of a notification.
func (h *Handler) GetStatus(c *ginext.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", idStr).Msg("failed to parse id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	info, err := h.service.GetNotificationStatusByID(c.Request.Context(), h.cfg.Retry, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, info)
}
