// Package persistence provides the data storage abstraction layer for flows,
// runs, credentials, environments, webhooks and the usage ledger.
package persistence

import (
	"context"

	"github.com/forgehq/forge/pkg/models"
)

// Persistence aggregates the per-entity repositories of one backend.
type Persistence interface {
	Flows() FlowRepository
	Runs() RunRepository
	Usage() UsageRepository
	Credentials() CredentialRepository
	Environments() EnvironmentRepository
	Webhooks() WebhookRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListFlowsOptions filters and paginates flow listings.
type ListFlowsOptions struct {
	OrgID  string
	Status *models.FlowStatus
	Limit  int
	Offset int
}

// FlowListResult carries one page of flows plus paging metadata.
type FlowListResult struct {
	Flows       []*models.Flow
	TotalCount  int
	HasNextPage bool
}

type FlowRepository interface {
	Save(ctx context.Context, flow *models.Flow) error
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	List(ctx context.Context, opts ListFlowsOptions) (*FlowListResult, error)
	// ListAllByStatus scans across organizations; only internal callers
	// such as the scheduler use it.
	ListAllByStatus(ctx context.Context, status models.FlowStatus) ([]*models.Flow, error)
	Delete(ctx context.Context, id string) error
}

type RunRepository interface {
	SaveRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRunsByFlow(ctx context.Context, flowID string, limit, offset int) ([]*models.Run, error)
	SaveRunNode(ctx context.Context, node *models.RunNode) error
	GetRunNodes(ctx context.Context, runID string) ([]*models.RunNode, error)
}

// UsageRepository is append-only. There is deliberately no update or delete.
type UsageRepository interface {
	Append(ctx context.Context, entry *models.UsageEntry) error
	ListByOrg(ctx context.Context, orgID string) ([]*models.UsageEntry, error)
}

type CredentialRepository interface {
	Save(ctx context.Context, credential *models.Credential) error
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Credential, error)
	// ListActiveByPrefix narrows the candidate set for key validation to
	// active credentials sharing the presented key's prefix.
	ListActiveByPrefix(ctx context.Context, prefix string) ([]*models.Credential, error)
	Delete(ctx context.Context, id string) error
}

type EnvironmentRepository interface {
	Save(ctx context.Context, environment *models.Environment) error
	GetByID(ctx context.Context, id string) (*models.Environment, error)
	GetByName(ctx context.Context, orgID string, name models.EnvironmentName) (*models.Environment, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Environment, error)
}

type WebhookRepository interface {
	Save(ctx context.Context, webhook *models.Webhook) error
	GetByID(ctx context.Context, id string) (*models.Webhook, error)
	GetBySlug(ctx context.Context, slug string) (*models.Webhook, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Webhook, error)
	Delete(ctx context.Context, id string) error
}
