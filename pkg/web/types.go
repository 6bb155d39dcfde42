// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/forgehq/forge/pkg/models"

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string                 `json:"name"        validate:"required,min=3"`
	Description string                 `json:"description"`
	Definition  *models.FlowDefinition `json:"definition,omitempty"`
}

// UpdateFlowRequest represents the request body for updating an existing
// flow. All fields are optional to support partial updates.
type UpdateFlowRequest struct {
	Name        *string                `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                `json:"description,omitempty"`
	Definition  *models.FlowDefinition `json:"definition,omitempty"`
}

// QueueRunRequest represents the request body for starting a manual run.
type QueueRunRequest struct {
	Payload map[string]any `json:"payload,omitempty"`
}

// CreateWebhookRequest represents the request body for registering a webhook
// endpoint on a flow.
type CreateWebhookRequest struct {
	FlowID        string         `json:"flow_id"        validate:"required"`
	EnvironmentID string         `json:"environment_id" validate:"required"`
	PayloadSchema map[string]any `json:"payload_schema,omitempty"`
}

// WebhookResponse is a webhook with its secret included. Only creation and
// secret regeneration return it; listings omit the secret.
type WebhookResponse struct {
	*models.Webhook

	Secret string `json:"secret"`
}

// CreateCredentialRequest represents the request body for issuing an API key.
type CreateCredentialRequest struct {
	EnvironmentID   string   `json:"environment_id"     validate:"required"`
	Name            string   `json:"name"               validate:"required,min=1"`
	Scopes          []string `json:"scopes,omitempty"`
	IPAllowlist     []string `json:"ip_allowlist,omitempty"`
	RateLimitPerMin int      `json:"rate_limit_per_min" validate:"omitempty,min=1"`
}

// CreateCredentialResponse carries the one-time plaintext key alongside the
// stored record.
type CreateCredentialResponse struct {
	Credential *models.Credential `json:"credential"`
	Key        string             `json:"key"`
}

// UpdateCredentialRequest represents the request body for changing credential
// metadata. The key itself cannot be changed.
type UpdateCredentialRequest struct {
	Name            *string   `json:"name,omitempty"               validate:"omitempty,min=1"`
	Scopes          *[]string `json:"scopes,omitempty"`
	IPAllowlist     *[]string `json:"ip_allowlist,omitempty"`
	RateLimitPerMin *int      `json:"rate_limit_per_min,omitempty" validate:"omitempty,min=1"`
}
