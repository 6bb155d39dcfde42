package file

import (
	"context"
	"sort"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

const (
	runsDir     = "runs"
	runNodesDir = "run_nodes"
)

// RunRepository stores runs as one document each, and the run node records of
// a run together in a single document keyed by the run id.
type RunRepository struct {
	root string
}

func (r *RunRepository) SaveRun(_ context.Context, run *models.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	return writeEntity(r.root, runsDir, run.ID, run)
}

func (r *RunRepository) GetRun(_ context.Context, id string) (*models.Run, error) {
	var run models.Run
	if err := readEntity(r.root, runsDir, id, &run, persistence.ErrRunNotFound); err != nil {
		return nil, err
	}

	return &run, nil
}

func (r *RunRepository) ListRunsByFlow(ctx context.Context, flowID string, limit, offset int) ([]*models.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	ids, err := listEntityIDs(r.root, runsDir)
	if err != nil {
		return []*models.Run{}, nil
	}

	runs := make([]*models.Run, 0, len(ids))

	for _, id := range ids {
		run, err := r.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}

		if run.FlowID == flowID {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if offset > len(runs) {
		offset = len(runs)
	}

	end := offset + limit
	if end > len(runs) {
		end = len(runs)
	}

	return runs[offset:end], nil
}

// SaveRunNode upserts one node record within its run's document.
func (r *RunRepository) SaveRunNode(_ context.Context, node *models.RunNode) error {
	var nodes []*models.RunNode

	err := readEntity(r.root, runNodesDir, node.RunID, &nodes, persistence.ErrRunNodeNotFound)
	if err != nil && !persistence.IsRunNodeNotFound(err) {
		return err
	}

	replaced := false

	for i, existing := range nodes {
		if existing.NodeID == node.NodeID {
			nodes[i] = node
			replaced = true

			break
		}
	}

	if !replaced {
		nodes = append(nodes, node)
	}

	return writeEntity(r.root, runNodesDir, node.RunID, nodes)
}

func (r *RunRepository) GetRunNodes(_ context.Context, runID string) ([]*models.RunNode, error) {
	var nodes []*models.RunNode

	err := readEntity(r.root, runNodesDir, runID, &nodes, persistence.ErrRunNodeNotFound)
	if err != nil {
		if persistence.IsRunNodeNotFound(err) {
			return []*models.RunNode{}, nil
		}

		return nil, err
	}

	return nodes, nil
}
