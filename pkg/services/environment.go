package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// defaultEnvironments is the fixed set provisioned for every organization.
var defaultEnvironments = []models.EnvironmentName{
	models.EnvironmentSandbox,
	models.EnvironmentProduction,
}

// Environment provisions and lists the per-organization environments.
type Environment struct {
	persistence persistence.Persistence
}

func NewEnvironment(persistence persistence.Persistence) *Environment {
	return &Environment{persistence: persistence}
}

// EnsureEnvironments provisions the sandbox and production environments for
// an organization. Calling it again returns the existing records unchanged;
// onboarding retries are expected to hit this path.
func (s *Environment) EnsureEnvironments(ctx context.Context, orgID string) ([]*models.Environment, error) {
	if orgID == "" {
		return nil, &ServiceError{Op: "EnsureEnvironments", Err: ErrEmptyOrgID}
	}

	environments := make([]*models.Environment, 0, len(defaultEnvironments))

	for _, name := range defaultEnvironments {
		existing, err := s.persistence.Environments().GetByName(ctx, orgID, name)
		if err == nil {
			environments = append(environments, existing)

			continue
		}

		if !errors.Is(err, persistence.ErrEnvironmentNotFound) {
			return nil, fmt.Errorf("failed to look up environment %s: %w", name, err)
		}

		environment := &models.Environment{
			ID:        uuid.New().String(),
			OrgID:     orgID,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}

		if err := s.persistence.Environments().Save(ctx, environment); err != nil {
			return nil, fmt.Errorf("failed to save environment %s: %w", name, err)
		}

		environments = append(environments, environment)
	}

	return environments, nil
}

// FetchByID returns an environment owned by the organization.
func (s *Environment) FetchByID(ctx context.Context, orgID, id string) (*models.Environment, error) {
	environment, err := s.persistence.Environments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if environment.OrgID != orgID {
		return nil, persistence.NewEntityError("FetchByID", "environment", id, persistence.ErrEnvironmentNotFound)
	}

	return environment, nil
}

// List returns the organization's environments.
func (s *Environment) List(ctx context.Context, orgID string) ([]*models.Environment, error) {
	if orgID == "" {
		return nil, &ServiceError{Op: "List", Err: ErrEmptyOrgID}
	}

	return s.persistence.Environments().ListByOrg(ctx, orgID)
}
