package file

import (
	"context"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

const environmentsDir = "environments"

// EnvironmentRepository handles environment storage on the file system.
type EnvironmentRepository struct {
	root string
}

func (r *EnvironmentRepository) Save(_ context.Context, environment *models.Environment) error {
	if environment.CreatedAt.IsZero() {
		environment.CreatedAt = time.Now().UTC()
	}

	return writeEntity(r.root, environmentsDir, environment.ID, environment)
}

func (r *EnvironmentRepository) GetByID(_ context.Context, id string) (*models.Environment, error) {
	var environment models.Environment
	if err := readEntity(r.root, environmentsDir, id, &environment, persistence.ErrEnvironmentNotFound); err != nil {
		return nil, err
	}

	return &environment, nil
}

func (r *EnvironmentRepository) GetByName(ctx context.Context, orgID string, name models.EnvironmentName) (*models.Environment, error) {
	environments, err := r.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	for _, environment := range environments {
		if environment.Name == name {
			return environment, nil
		}
	}

	return nil, persistence.ErrEnvironmentNotFound
}

func (r *EnvironmentRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Environment, error) {
	ids, err := listEntityIDs(r.root, environmentsDir)
	if err != nil {
		return []*models.Environment{}, nil
	}

	environments := make([]*models.Environment, 0, 2)

	for _, id := range ids {
		environment, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if environment.OrgID == orgID {
			environments = append(environments, environment)
		}
	}

	return environments, nil
}
