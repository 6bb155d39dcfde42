package services

import (
	"context"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// Run exposes run queueing and inspection to the API. Execution itself lives
// in the engine; this service only queues and reads.
type Run struct {
	persistence persistence.Persistence
	queuer      RunQueuer
}

func NewRun(persistence persistence.Persistence, queuer RunQueuer) *Run {
	return &Run{persistence: persistence, queuer: queuer}
}

// RunDetail is a run together with its per-node records, which is what run
// polling returns.
type RunDetail struct {
	Run   *models.Run       `json:"run"`
	Nodes []*models.RunNode `json:"nodes"`
}

// Queue starts a manual run of a published flow.
func (s *Run) Queue(ctx context.Context, orgID, flowID, triggeredBy string, payload map[string]any) (*models.Run, error) {
	if orgID == "" {
		return nil, &ServiceError{Op: "Queue", Err: ErrEmptyOrgID}
	}

	return s.queuer.QueueRun(ctx, orgID, flowID, models.TriggerTypeManual, triggeredBy, payload)
}

// FetchByID returns a run with its node records. Runs of other organizations
// are reported as not found.
func (s *Run) FetchByID(ctx context.Context, orgID, id string) (*RunDetail, error) {
	run, err := s.persistence.Runs().GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	if run.OrgID != orgID {
		return nil, persistence.NewEntityError("FetchByID", "run", id, persistence.ErrRunNotFound)
	}

	nodes, err := s.persistence.Runs().GetRunNodes(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RunDetail{Run: run, Nodes: nodes}, nil
}

// ListByFlow returns recent runs of one flow, newest first.
func (s *Run) ListByFlow(ctx context.Context, orgID, flowID string, limit, offset int) ([]*models.Run, error) {
	flow, err := s.persistence.Flows().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.OrgID != orgID {
		return nil, persistence.NewEntityError("ListByFlow", "flow", flowID, persistence.ErrFlowNotFound)
	}

	return s.persistence.Runs().ListRunsByFlow(ctx, flowID, limit, offset)
}
