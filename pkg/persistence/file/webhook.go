package file

import (
	"context"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

const webhooksDir = "webhooks"

// WebhookRepository handles webhook storage on the file system.
type WebhookRepository struct {
	root string
}

func (r *WebhookRepository) Save(_ context.Context, webhook *models.Webhook) error {
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = time.Now().UTC()
	}

	// The model hides the secret from JSON; the storage document carries it.
	return writeEntity(r.root, webhooksDir, webhook.ID, newWebhookDocument(webhook))
}

func (r *WebhookRepository) GetByID(_ context.Context, id string) (*models.Webhook, error) {
	var webhook webhookDocument
	if err := readEntity(r.root, webhooksDir, id, &webhook, persistence.ErrWebhookNotFound); err != nil {
		return nil, err
	}

	return webhook.toModel(), nil
}

func (r *WebhookRepository) GetBySlug(ctx context.Context, slug string) (*models.Webhook, error) {
	ids, err := listEntityIDs(r.root, webhooksDir)
	if err != nil {
		return nil, persistence.ErrWebhookNotFound
	}

	for _, id := range ids {
		webhook, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if webhook.URLSlug == slug {
			return webhook, nil
		}
	}

	return nil, persistence.ErrWebhookNotFound
}

func (r *WebhookRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Webhook, error) {
	ids, err := listEntityIDs(r.root, webhooksDir)
	if err != nil {
		return []*models.Webhook{}, nil
	}

	webhooks := make([]*models.Webhook, 0, len(ids))

	for _, id := range ids {
		webhook, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if webhook.OrgID == orgID {
			webhooks = append(webhooks, webhook)
		}
	}

	return webhooks, nil
}

func (r *WebhookRepository) Delete(_ context.Context, id string) error {
	return removeEntity(r.root, webhooksDir, id, persistence.ErrWebhookNotFound)
}

// webhookDocument mirrors models.Webhook with the secret included, since the
// model deliberately excludes it from JSON marshaling.
type webhookDocument struct {
	models.Webhook

	Secret string `json:"secret"`
}

func (d *webhookDocument) toModel() *models.Webhook {
	webhook := d.Webhook
	webhook.Secret = d.Secret

	return &webhook
}

func newWebhookDocument(webhook *models.Webhook) *webhookDocument {
	return &webhookDocument{Webhook: *webhook, Secret: webhook.Secret}
}
