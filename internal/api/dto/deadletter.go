package dto

// DeadLetterEntry is one dead-lettered message as exposed by the DLQ API.
type DeadLetterEntry struct {
	MessageID        string `json:"messageId"`
	Body             string `json:"body"`
	Reason           string `json:"reason"`
	ErrorDescription string `json:"errorDescription"`
	DeliveryCount    int    `json:"deliveryCount"`
}

// ReplayResponse reports how many dead-lettered messages were replayed.
type ReplayResponse struct {
	ReplayedCount int `json:"replayedCount"`
}
