package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// UsageRepository appends to and reads the usage ledger. There is no update
// or delete path on purpose.
type UsageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *UsageRepository) Append(ctx context.Context, entry *models.UsageEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO usage_entries (id, org_id, run_id, node_type, provider, cost, latency_ms, asset_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OrgID, entry.RunID, entry.NodeType, entry.Provider,
		entry.Cost, entry.LatencyMs, entry.AssetRef, entry.CreatedAt)
	if err != nil {
		return persistence.NewEntityError("Append", "usage_entry", entry.ID, err)
	}

	return nil
}

func (r *UsageRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.UsageEntry, error) {
	query := `
		SELECT
			id
		  , org_id
		  , run_id
		  , node_type
		  , provider
		  , cost
		  , latency_ms
		  , asset_ref
		  , created_at
		FROM usage_entries
		WHERE org_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage entries: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	entries := make([]*models.UsageEntry, 0)

	for rows.Next() {
		var entry models.UsageEntry

		err := rows.Scan(
			&entry.ID, &entry.OrgID, &entry.RunID, &entry.NodeType, &entry.Provider,
			&entry.Cost, &entry.LatencyMs, &entry.AssetRef, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating usage entries: %w", err)
	}

	return entries, nil
}
