package messages

import "go.lumeweb.com/portal-plugin-chargebee/internal/client/chargebee"

// WebhookEvent is the payload Chargebee posts for every event
type WebhookEvent struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	OccurredAt int64          `json:"occurred_at"`
	Source     string         `json:"source"`
	APIVersion string         `json:"api_version"`
	Content    WebhookContent `json:"content"`
}

// WebhookContent carries the resources affected by the event
type WebhookContent struct {
	Subscription *chargebee.Subscription `json:"subscription,omitempty"`
	Customer     *chargebee.Customer     `json:"customer,omitempty"`
	Card         *chargebee.Card         `json:"card,omitempty"`
}

type WebhookResponse struct {
	Status string `json:"status"`
}
