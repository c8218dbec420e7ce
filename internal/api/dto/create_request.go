package dto

import "github.com/google/uuid"

// CreateResponse returns the id of an accepted notification.
type CreateResponse struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error,omitempty"`
}

// CreateRequest is the body of POST /api/notifications. ID and
// CorrelationID are optional; zero values mean "generate one".
type CreateRequest struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Channel       string    `json:"channel" validate:"required,oneof=Email SMS Push"`
	UserID        string    `json:"user_id" validate:"required"`
	Message       string    `json:"message" validate:"required"`
	CorrelationID uuid.UUID `json:"correlation_id"`
	TenantID      string    `json:"tenant_id" validate:"required"`
}
