package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// WebhookRepository handles webhook database operations.
type WebhookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WebhookRepository) Save(ctx context.Context, webhook *models.Webhook) error {
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = time.Now().UTC()
	}

	schema, err := marshalNullableMap(webhook.PayloadSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload schema: %w", err)
	}

	query := `
		INSERT INTO webhooks (id, org_id, flow_id, environment_id, url_slug, secret, payload_schema, status, last_called_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			secret = EXCLUDED.secret
		  , payload_schema = EXCLUDED.payload_schema
		  , status = EXCLUDED.status
		  , last_called_at = EXCLUDED.last_called_at
	`

	_, err = r.db.ExecContext(ctx, query,
		webhook.ID, webhook.OrgID, webhook.FlowID, webhook.EnvironmentID,
		webhook.URLSlug, webhook.Secret, schema, webhook.Status,
		webhook.LastCalledAt, webhook.CreatedAt)
	if err != nil {
		return persistence.NewEntityError("Save", "webhook", webhook.ID, err)
	}

	return nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	webhook, err := scanWebhook(r.db.QueryRowContext(ctx, webhookSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "webhook", id, persistence.ErrWebhookNotFound)
		}

		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}

	return webhook, nil
}

func (r *WebhookRepository) GetBySlug(ctx context.Context, slug string) (*models.Webhook, error) {
	webhook, err := scanWebhook(r.db.QueryRowContext(ctx, webhookSelect+" WHERE url_slug = $1", slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetBySlug", "webhook", slug, persistence.ErrWebhookNotFound)
		}

		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}

	return webhook, nil
}

func (r *WebhookRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, webhookSelect+" WHERE org_id = $1 ORDER BY created_at DESC", orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	webhooks := make([]*models.Webhook, 0)

	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}

		webhooks = append(webhooks, webhook)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}

	return webhooks, nil
}

func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "webhook", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError("Delete", "webhook", id, persistence.ErrWebhookNotFound)
	}

	return nil
}

const webhookSelect = `
	SELECT
		id
	  , org_id
	  , flow_id
	  , environment_id
	  , url_slug
	  , secret
	  , payload_schema
	  , status
	  , last_called_at
	  , created_at
	FROM webhooks
`

func scanWebhook(row rowScanner) (*models.Webhook, error) {
	var (
		webhook models.Webhook
		schema  []byte
	)

	err := row.Scan(
		&webhook.ID, &webhook.OrgID, &webhook.FlowID, &webhook.EnvironmentID,
		&webhook.URLSlug, &webhook.Secret, &schema, &webhook.Status,
		&webhook.LastCalledAt, &webhook.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalNullableMap(schema, &webhook.PayloadSchema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook payload schema: %w", err)
	}

	return &webhook, nil
}
