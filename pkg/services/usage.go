package services

import (
	"context"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// Usage reads the append-only cost ledger.
type Usage struct {
	persistence persistence.Persistence
}

func NewUsage(persistence persistence.Persistence) *Usage {
	return &Usage{persistence: persistence}
}

// ListByOrg returns the organization's ledger entries, newest first.
func (s *Usage) ListByOrg(ctx context.Context, orgID string) ([]*models.UsageEntry, error) {
	if orgID == "" {
		return nil, &ServiceError{Op: "ListByOrg", Err: ErrEmptyOrgID}
	}

	return s.persistence.Usage().ListByOrg(ctx, orgID)
}

// TotalCost sums the ledger for an organization.
func (s *Usage) TotalCost(ctx context.Context, orgID string) (int, error) {
	entries, err := s.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, entry := range entries {
		total += entry.Cost
	}

	return total, nil
}
