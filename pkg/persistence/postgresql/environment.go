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

// EnvironmentRepository handles environment database operations.
type EnvironmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Save inserts an environment. The (org_id, name) uniqueness constraint makes
// concurrent ensure calls idempotent.
func (r *EnvironmentRepository) Save(ctx context.Context, environment *models.Environment) error {
	if environment.CreatedAt.IsZero() {
		environment.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO environments (id, org_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, name) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		environment.ID, environment.OrgID, environment.Name, environment.CreatedAt)
	if err != nil {
		return persistence.NewEntityError("Save", "environment", environment.ID, err)
	}

	return nil
}

func (r *EnvironmentRepository) GetByID(ctx context.Context, id string) (*models.Environment, error) {
	query := "SELECT id, org_id, name, created_at FROM environments WHERE id = $1"

	var environment models.Environment

	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&environment.ID, &environment.OrgID, &environment.Name, &environment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "environment", id, persistence.ErrEnvironmentNotFound)
		}

		return nil, fmt.Errorf("failed to scan environment: %w", err)
	}

	return &environment, nil
}

func (r *EnvironmentRepository) GetByName(ctx context.Context, orgID string, name models.EnvironmentName) (*models.Environment, error) {
	query := "SELECT id, org_id, name, created_at FROM environments WHERE org_id = $1 AND name = $2"

	var environment models.Environment

	err := r.db.QueryRowContext(ctx, query, orgID, name).
		Scan(&environment.ID, &environment.OrgID, &environment.Name, &environment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByName", "environment", string(name), persistence.ErrEnvironmentNotFound)
		}

		return nil, fmt.Errorf("failed to scan environment: %w", err)
	}

	return &environment, nil
}

func (r *EnvironmentRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Environment, error) {
	query := "SELECT id, org_id, name, created_at FROM environments WHERE org_id = $1 ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query environments: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	environments := make([]*models.Environment, 0, 2)

	for rows.Next() {
		var environment models.Environment

		err := rows.Scan(&environment.ID, &environment.OrgID, &environment.Name, &environment.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}

		environments = append(environments, &environment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating environments: %w", err)
	}

	return environments, nil
}
