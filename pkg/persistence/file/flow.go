package file

import (
	"context"
	"sort"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

const flowsDir = "flows"

// FlowRepository handles flow storage on the file system.
type FlowRepository struct {
	root string
}

// Save writes a flow, stamping CreatedAt on first save.
func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	return writeEntity(r.root, flowsDir, flow.ID, flow)
}

func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	var flow models.Flow
	if err := readEntity(r.root, flowsDir, id, &flow, persistence.ErrFlowNotFound); err != nil {
		return nil, err
	}

	return &flow, nil
}

// List loads every flow, filters by org and status, sorts newest first and
// paginates in memory. Fine for the dev/test backend; postgres does this in
// SQL.
func (r *FlowRepository) List(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	ids, err := listEntityIDs(r.root, flowsDir)
	if err != nil {
		return &persistence.FlowListResult{Flows: []*models.Flow{}}, nil
	}

	filtered := make([]*models.Flow, 0, len(ids))

	for _, id := range ids {
		flow, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if opts.OrgID != "" && flow.OrgID != opts.OrgID {
			continue
		}

		if opts.Status != nil && flow.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, flow)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	totalCount := len(filtered)

	startIdx := opts.Offset
	if startIdx > totalCount {
		startIdx = totalCount
	}

	endIdx := startIdx + opts.Limit
	if endIdx > totalCount {
		endIdx = totalCount
	}

	return &persistence.FlowListResult{
		Flows:       filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < totalCount,
	}, nil
}

// ListAllByStatus returns flows of one status across every organization.
// The scheduler uses it to find published flows with schedule triggers.
func (r *FlowRepository) ListAllByStatus(ctx context.Context, status models.FlowStatus) ([]*models.Flow, error) {
	ids, err := listEntityIDs(r.root, flowsDir)
	if err != nil {
		return []*models.Flow{}, nil
	}

	flows := make([]*models.Flow, 0, len(ids))

	for _, id := range ids {
		flow, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if flow.Status == status {
			flows = append(flows, flow)
		}
	}

	sort.Slice(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})

	return flows, nil
}

func (r *FlowRepository) Delete(_ context.Context, id string) error {
	return removeEntity(r.root, flowsDir, id, persistence.ErrFlowNotFound)
}
