package model

// NotificationPayload is one outbound message for a single recipient. A
// payload is built fresh per dispatch and never mutated afterwards.
type NotificationPayload struct {
	ID        string            `json:"id"`
	Recipient string            `json:"recipient"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}
