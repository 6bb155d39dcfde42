// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/forgehq/forge/pkg/persistence"
	"github.com/forgehq/forge/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	flows        *FlowRepository
	runs         *RunRepository
	usage        *UsageRepository
	credentials  *CredentialRepository
	environments *EnvironmentRepository
	webhooks     *WebhookRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		flows:        &FlowRepository{db: database, logger: logger},
		runs:         &RunRepository{db: database, logger: logger},
		usage:        &UsageRepository{db: database, logger: logger},
		credentials:  &CredentialRepository{db: database, logger: logger},
		environments: &EnvironmentRepository{db: database, logger: logger},
		webhooks:     &WebhookRepository{db: database, logger: logger},
	}, nil
}

func (p *Persistence) Flows() persistence.FlowRepository               { return p.flows }
func (p *Persistence) Runs() persistence.RunRepository                 { return p.runs }
func (p *Persistence) Usage() persistence.UsageRepository              { return p.usage }
func (p *Persistence) Credentials() persistence.CredentialRepository   { return p.credentials }
func (p *Persistence) Environments() persistence.EnvironmentRepository { return p.environments }
func (p *Persistence) Webhooks() persistence.WebhookRepository         { return p.webhooks }

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
