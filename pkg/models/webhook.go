package models

import "time"

// WebhookStatus is the lifecycle state of a webhook endpoint.
type WebhookStatus string

const (
	WebhookStatusActive WebhookStatus = "active"
	WebhookStatusPaused WebhookStatus = "paused"
)

// Webhook is a public, secret-signed HTTP endpoint that triggers a flow. The
// secret is stored in retrievable form, unlike a Credential hash, because
// verification recomputes an HMAC over the request body rather than doing a
// one-way compare.
type Webhook struct {
	ID            string         `json:"id"`
	OrgID         string         `json:"org_id"`
	FlowID        string         `json:"flow_id"`
	EnvironmentID string         `json:"environment_id"`
	URLSlug       string         `json:"url_slug"`
	Secret        string         `json:"-"`
	PayloadSchema map[string]any `json:"payload_schema,omitempty"`
	Status        WebhookStatus  `json:"status"`
	LastCalledAt  *time.Time     `json:"last_called_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
