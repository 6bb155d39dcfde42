// Package cmd holds the construction helpers shared by the forge binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/forgehq/forge/pkg/persistence"
	"github.com/forgehq/forge/pkg/persistence/file"
	"github.com/forgehq/forge/pkg/persistence/postgresql"
)

// NewPersistence selects the backend from the database URL scheme. A
// postgres:// URL gets the SQL backend; anything else falls back to the
// file backend, which is what dev environments run.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}
