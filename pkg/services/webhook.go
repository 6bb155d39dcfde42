package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

const (
	webhookSlugBytes   = 16
	webhookSecretBytes = 32

	// signaturePrefix is the scheme tag expected in the signature header,
	// matching the convention of GitHub-style webhook senders.
	signaturePrefix = "sha256="
)

// RunQueuer queues a run for a published flow. The engine satisfies it.
type RunQueuer interface {
	QueueRun(ctx context.Context, orgID, flowID string, triggerType models.TriggerType, triggeredBy string, payload map[string]any) (*models.Run, error)
}

// Webhook manages signed inbound endpoints and turns their deliveries into
// queued runs.
type Webhook struct {
	persistence persistence.Persistence
	queuer      RunQueuer
}

func NewWebhook(persistence persistence.Persistence, queuer RunQueuer) *Webhook {
	return &Webhook{persistence: persistence, queuer: queuer}
}

// Create registers a webhook endpoint for a flow the organization owns. The
// slug and secret are generated from a CSPRNG; the secret is returned on the
// created record and remains retrievable, since the sender needs it to sign
// deliveries.
func (s *Webhook) Create(ctx context.Context, orgID, flowID, environmentID string, payloadSchema map[string]any) (*models.Webhook, error) {
	if orgID == "" {
		return nil, &ServiceError{Op: "Create", Err: ErrEmptyOrgID}
	}

	flow, err := s.persistence.Flows().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.OrgID != orgID {
		return nil, persistence.NewEntityError("Create", "flow", flowID, persistence.ErrFlowNotFound)
	}

	if payloadSchema != nil {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(payloadSchema)); err != nil {
			return nil, &ServiceError{Op: "Create", Message: fmt.Sprintf("invalid payload schema: %v", err), Err: ErrInvalidRequest}
		}
	}

	slug, err := randomHex(webhookSlugBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate url slug: %w", err)
	}

	secret, err := randomHex(webhookSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	webhook := &models.Webhook{
		ID:            uuid.New().String(),
		OrgID:         orgID,
		FlowID:        flowID,
		EnvironmentID: environmentID,
		URLSlug:       slug,
		Secret:        "whsec_" + secret,
		PayloadSchema: payloadSchema,
		Status:        models.WebhookStatusActive,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.persistence.Webhooks().Save(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to save webhook: %w", err)
	}

	return webhook, nil
}

// HandleDelivery processes one inbound request on a webhook slug: signature
// check, optional payload schema check, then a queued run. When a signature
// header is present it must verify; verification is constant-time over the
// full encoded digest.
func (s *Webhook) HandleDelivery(ctx context.Context, slug string, body []byte, signature string) (*models.Run, error) {
	webhook, err := s.persistence.Webhooks().GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if webhook.Status == models.WebhookStatusPaused {
		return nil, &ServiceError{Op: "HandleDelivery", Err: ErrWebhookPaused}
	}

	if signature != "" {
		if !verifySignature(webhook.Secret, body, signature) {
			return nil, &ServiceError{Op: "HandleDelivery", Err: ErrSignatureMismatch}
		}
	}

	payload := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, &ServiceError{Op: "HandleDelivery", Message: "request body is not a JSON object", Err: ErrInvalidRequest}
		}
	}

	if webhook.PayloadSchema != nil {
		if err := validatePayload(webhook.PayloadSchema, payload); err != nil {
			return nil, &ServiceError{Op: "HandleDelivery", Message: err.Error(), Err: ErrInvalidRequest}
		}
	}

	now := time.Now().UTC()
	webhook.LastCalledAt = &now

	if err := s.persistence.Webhooks().Save(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to record webhook call: %w", err)
	}

	return s.queuer.QueueRun(ctx, webhook.OrgID, webhook.FlowID, models.TriggerTypeWebhook, "webhook:"+webhook.ID, payload)
}

// FetchByID returns a webhook owned by the organization.
func (s *Webhook) FetchByID(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	webhook, err := s.persistence.Webhooks().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if webhook.OrgID != orgID {
		return nil, persistence.NewEntityError("FetchByID", "webhook", id, persistence.ErrWebhookNotFound)
	}

	return webhook, nil
}

// List returns the organization's webhooks.
func (s *Webhook) List(ctx context.Context, orgID string) ([]*models.Webhook, error) {
	if orgID == "" {
		return nil, &ServiceError{Op: "List", Err: ErrEmptyOrgID}
	}

	return s.persistence.Webhooks().ListByOrg(ctx, orgID)
}

// Pause stops deliveries without losing the slug or secret.
func (s *Webhook) Pause(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	return s.setStatus(ctx, orgID, id, models.WebhookStatusPaused)
}

// Resume re-enables deliveries on a paused webhook.
func (s *Webhook) Resume(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	return s.setStatus(ctx, orgID, id, models.WebhookStatusActive)
}

// RegenerateSecret replaces the signing secret. In-flight deliveries signed
// with the old secret fail from this point on.
func (s *Webhook) RegenerateSecret(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	webhook, err := s.FetchByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	secret, err := randomHex(webhookSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	webhook.Secret = "whsec_" + secret

	if err := s.persistence.Webhooks().Save(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to save webhook: %w", err)
	}

	return webhook, nil
}

// Delete removes a webhook endpoint. The slug becomes unreachable
// immediately.
func (s *Webhook) Delete(ctx context.Context, orgID, id string) error {
	if _, err := s.FetchByID(ctx, orgID, id); err != nil {
		return err
	}

	return s.persistence.Webhooks().Delete(ctx, id)
}

func (s *Webhook) setStatus(ctx context.Context, orgID, id string, status models.WebhookStatus) (*models.Webhook, error) {
	webhook, err := s.FetchByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	webhook.Status = status

	if err := s.persistence.Webhooks().Save(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to save webhook: %w", err)
	}

	return webhook, nil
}

func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

func validatePayload(schema, payload map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("payload schema check failed: %w", err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		messages = append(messages, resultErr.String())
	}

	return fmt.Errorf("payload rejected by schema: %s", strings.Join(messages, "; "))
}
