// Package message defines the wire payload carried by dispatch bus messages.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
)

const ContentType = "application/json"

// Notification is the JSON body of a dispatch message. Field names are part
// of the wire contract shared with every consumer.
type Notification struct {
	NotificationID uuid.UUID `json:"NotificationId"`
	Type           string    `json:"Type"`
	Channel        string    `json:"Channel"`
	UserID         string    `json:"UserId"`
	Message        string    `json:"Message"`
	TenantID       string    `json:"TenantId"`
}

// New builds a bus message for the given notification: JSON body, routing
// attributes for subscription filtering, the record's correlation id and a
// fresh message id.
func New(n model.Notification) (bus.Message, error) {
	body, err := json.Marshal(Notification{
		NotificationID: n.ID,
		Type:           n.Type,
		Channel:        n.Channel,
		UserID:         n.UserID,
		Message:        n.Message,
		TenantID:       n.TenantID,
	})
	if err != nil {
		return bus.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	return bus.Message{
		ID:            uuid.NewString(),
		CorrelationID: n.CorrelationID.String(),
		ContentType:   ContentType,
		Body:          body,
		Attributes: map[string]string{
			bus.AttrChannel: n.Channel,
			bus.AttrTenant:  n.TenantID,
		},
	}, nil
}

// Decode parses a message body. A failure here marks the message as poison:
// redelivery cannot fix an undecodable body.
func Decode(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return n, nil
}
