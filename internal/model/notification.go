package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification statuses. PENDING is the initial state. SENT is terminal:
// once a record is SENT no consumer may touch it again. FAILED is not
// terminal — a broker redelivery or a dead-letter replay may still move
// the same record to SENT.
const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"
)

// Delivery channels. The channel value doubles as the routing attribute
// on the bus message, so subscriptions filter on it verbatim.
const (
	ChannelEmail = "Email"
	ChannelSMS   = "SMS"
	ChannelPush  = "Push"
)

// Notification represents a notification entity in the system.
type Notification struct {
	ID            uuid.UUID  `json:"id"`             // unique identifier; the idempotency key for consumers
	Type          string     `json:"type"`           // classification tag, e.g. "OrderPlaced"
	Channel       string     `json:"channel"`        // delivery method: Email, SMS or Push
	UserID        string     `json:"user_id"`        // recipient identifier
	Message       string     `json:"message"`        // content of the notification
	TenantID      string     `json:"tenant_id"`      // owning tenant
	Status        string     `json:"status"`         // current state: PENDING, SENT or FAILED
	CreatedAt     time.Time  `json:"created_at"`     // set once at creation
	ProcessedAt   *time.Time `json:"processed_at"`   // set exactly once, when the record becomes SENT
	CorrelationID uuid.UUID  `json:"correlation_id"` // tracing identifier carried through the bus
}

// StatusInfo is the externally visible delivery state of one notification.
type StatusInfo struct {
	ID          uuid.UUID  `json:"id"`
	Status      string     `json:"status"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// Summary holds aggregate counts over all notifications.
type Summary struct {
	Total               int     `json:"total"`
	Sent                int     `json:"sent"`
	Failed              int     `json:"failed"`
	Pending             int     `json:"pending"`
	AverageProcessingMs float64 `json:"averageProcessingTimeMs"`
}

// ChannelSummary holds aggregate counts for a single channel.
type ChannelSummary struct {
	Channel string `json:"channel"`
	Total   int    `json:"total"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Pending int    `json:"pending"`
}

// TenantSummary holds aggregate counts for a single tenant.
type TenantSummary struct {
	Total int `json:"total"`
	Sent  int `json:"sent"`
}
