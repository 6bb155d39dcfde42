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

// CredentialRepository handles credential database operations.
type CredentialRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *CredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}

	scopes, err := json.Marshal(credential.Scopes)
	if err != nil {
		return fmt.Errorf("failed to marshal credential scopes: %w", err)
	}

	allowlist, err := json.Marshal(credential.IPAllowlist)
	if err != nil {
		return fmt.Errorf("failed to marshal credential ip allowlist: %w", err)
	}

	query := `
		INSERT INTO credentials (id, org_id, environment_id, prefix, hash, name, scopes, ip_allowlist, rate_limit_per_min, status, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , scopes = EXCLUDED.scopes
		  , ip_allowlist = EXCLUDED.ip_allowlist
		  , rate_limit_per_min = EXCLUDED.rate_limit_per_min
		  , status = EXCLUDED.status
		  , last_used_at = EXCLUDED.last_used_at
	`

	_, err = r.db.ExecContext(ctx, query,
		credential.ID, credential.OrgID, credential.EnvironmentID, credential.Prefix,
		credential.Hash, credential.Name, scopes, allowlist,
		credential.RateLimitPerMin, credential.Status, credential.LastUsedAt, credential.CreatedAt)
	if err != nil {
		return persistence.NewEntityError("Save", "credential", credential.ID, err)
	}

	return nil
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	credential, err := scanCredential(r.db.QueryRowContext(ctx, credentialSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "credential", id, persistence.ErrCredentialNotFound)
		}

		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	return credential, nil
}

func (r *CredentialRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Credential, error) {
	return r.list(ctx, credentialSelect+" WHERE org_id = $1 ORDER BY created_at DESC", orgID)
}

// ListActiveByPrefix narrows validation candidates to active credentials
// sharing the prefix, keeping bcrypt comparisons off the full key set.
func (r *CredentialRepository) ListActiveByPrefix(ctx context.Context, prefix string) ([]*models.Credential, error) {
	return r.list(ctx, credentialSelect+" WHERE prefix = $1 AND status = 'active'", prefix)
}

func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = $1", id)
	if err != nil {
		return persistence.NewEntityError("Delete", "credential", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError("Delete", "credential", id, persistence.ErrCredentialNotFound)
	}

	return nil
}

const credentialSelect = `
	SELECT
		id
	  , org_id
	  , environment_id
	  , prefix
	  , hash
	  , name
	  , scopes
	  , ip_allowlist
	  , rate_limit_per_min
	  , status
	  , last_used_at
	  , created_at
	FROM credentials
`

func (r *CredentialRepository) list(ctx context.Context, query string, args ...any) ([]*models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	credentials := make([]*models.Credential, 0)

	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		credentials = append(credentials, credential)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return credentials, nil
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var (
		credential        models.Credential
		scopes, allowlist []byte
	)

	err := row.Scan(
		&credential.ID, &credential.OrgID, &credential.EnvironmentID, &credential.Prefix,
		&credential.Hash, &credential.Name, &scopes, &allowlist,
		&credential.RateLimitPerMin, &credential.Status, &credential.LastUsedAt, &credential.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scopes, &credential.Scopes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential scopes: %w", err)
	}

	if err := json.Unmarshal(allowlist, &credential.IPAllowlist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential ip allowlist: %w", err)
	}

	return &credential, nil
}
