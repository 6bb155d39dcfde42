package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Save upserts a flow, stamping CreatedAt on first save.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	definition, err := json.Marshal(flow.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal flow definition: %w", err)
	}

	query := `
		INSERT INTO flows (id, org_id, name, description, definition, status, version, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , definition = EXCLUDED.definition
		  , status = EXCLUDED.status
		  , version = EXCLUDED.version
		  , updated_at = EXCLUDED.updated_at
		  , published_at = EXCLUDED.published_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID, flow.OrgID, flow.Name, flow.Description, definition,
		flow.Status, flow.Version, flow.CreatedAt, flow.UpdatedAt, flow.PublishedAt)
	if err != nil {
		return persistence.NewEntityError("Save", "flow", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `
		SELECT
			id
		  , org_id
		  , name
		  , description
		  , definition
		  , status
		  , version
		  , created_at
		  , updated_at
		  , published_at
		FROM flows
		WHERE id = $1
	`

	flow, err := scanFlow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "flow", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

// List returns one page of an organization's flows, newest first.
func (r *FlowRepository) List(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	where := "WHERE org_id = $1"
	args := []any{opts.OrgID}

	if opts.Status != nil {
		where += " AND status = $2"
		args = append(args, string(*opts.Status))
	}

	var totalCount int

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flows "+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count flows: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT
			id
		  , org_id
		  , name
		  , description
		  , definition
		  , status
		  , version
		  , created_at
		  , updated_at
		  , published_at
		FROM flows
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	flows := make([]*models.Flow, 0, opts.Limit)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return &persistence.FlowListResult{
		Flows:       flows,
		TotalCount:  totalCount,
		HasNextPage: opts.Offset+len(flows) < totalCount,
	}, nil
}

// ListAllByStatus returns flows of one status across every organization,
// newest first. Only internal callers such as the scheduler use it.
func (r *FlowRepository) ListAllByStatus(ctx context.Context, status models.FlowStatus) ([]*models.Flow, error) {
	query := `
		SELECT
			id
		  , org_id
		  , name
		  , description
		  , definition
		  , status
		  , version
		  , created_at
		  , updated_at
		  , published_at
		FROM flows
		WHERE status = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query flows by status: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM flows WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "flow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError("Delete", "flow", id, persistence.ErrFlowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (*models.Flow, error) {
	var (
		flow       models.Flow
		definition []byte
	)

	err := row.Scan(
		&flow.ID, &flow.OrgID, &flow.Name, &flow.Description, &definition,
		&flow.Status, &flow.Version, &flow.CreatedAt, &flow.UpdatedAt, &flow.PublishedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(definition, &flow.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow definition: %w", err)
	}

	return &flow, nil
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
