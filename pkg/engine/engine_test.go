package engine

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehq/forge/pkg/capability"
	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence/file"
)

func newTestEngine(t *testing.T) (*Engine, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.DiscardHandler)
	dispatcher := capability.NewDispatcher(capability.WithTimeout(5 * time.Second))

	return NewEngine(logger, persistence, dispatcher, nil), persistence
}

func savePublishedFlow(t *testing.T, persistence *file.Persistence, flow *models.Flow) {
	t.Helper()

	if flow.Status == "" {
		flow.Status = models.FlowStatusPublished
	}

	publishedAt := time.Now().UTC()
	flow.PublishedAt = &publishedAt
	flow.Version = 1

	require.NoError(t, persistence.Flows().Save(t.Context(), flow))
}

func linearFlow(orgID string) *models.Flow {
	return &models.Flow{
		ID:    "flow-linear",
		OrgID: orgID,
		Name:  "Linear Flow",
		Definition: models.FlowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Type: models.NodeTypeTrigger, Config: map[string]any{"triggerType": "manual"}},
				{ID: "check", Type: models.NodeTypeCondition, Config: map[string]any{
					"field":    "$trigger.name",
					"operator": "equals",
					"value":    "forge",
				}},
				{ID: "notify", Type: models.NodeTypeNotification, Config: map[string]any{
					"channel": "ops",
					"message": "done",
				}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "start", Target: "check"},
				{ID: "e2", Source: "check", Target: "notify"},
			},
		},
	}
}

func TestQueueRun_CreatesPendingNodes(t *testing.T) {
	engine, persistence := newTestEngine(t)
	savePublishedFlow(t, persistence, linearFlow("org-1"))

	run, err := engine.QueueRun(t.Context(), "org-1", "flow-linear", models.TriggerTypeManual, "user-1", map[string]any{"name": "forge"})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusQueued, run.Status)
	assert.Equal(t, "flow-linear", run.FlowID)
	assert.Equal(t, "org-1", run.OrgID)

	nodes, err := persistence.Runs().GetRunNodes(t.Context(), run.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	for _, node := range nodes {
		assert.Equal(t, models.RunNodeStatusPending, node.Status)
	}
}

func TestQueueRun_RejectsUnpublishedFlow(t *testing.T) {
	engine, persistence := newTestEngine(t)

	flow := linearFlow("org-1")
	flow.Status = models.FlowStatusDraft
	require.NoError(t, persistence.Flows().Save(t.Context(), flow))

	_, err := engine.QueueRun(t.Context(), "org-1", flow.ID, models.TriggerTypeManual, "user-1", nil)
	require.ErrorIs(t, err, ErrFlowNotPublished)
}

func TestQueueRun_HidesForeignFlows(t *testing.T) {
	engine, persistence := newTestEngine(t)
	savePublishedFlow(t, persistence, linearFlow("org-1"))

	_, err := engine.QueueRun(t.Context(), "org-2", "flow-linear", models.TriggerTypeManual, "user-1", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFlowNotPublished)
}

func TestExecuteRun_LinearFlowSucceeds(t *testing.T) {
	engine, persistence := newTestEngine(t)
	savePublishedFlow(t, persistence, linearFlow("org-1"))

	queued, err := engine.QueueRun(t.Context(), "org-1", "flow-linear", models.TriggerTypeManual, "user-1", map[string]any{"name": "forge"})
	require.NoError(t, err)

	run, err := engine.ExecuteRun(t.Context(), queued.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSuccess, run.Status)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)

	nodes, err := persistence.Runs().GetRunNodes(t.Context(), run.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	byID := make(map[string]*models.RunNode, len(nodes))
	for _, node := range nodes {
		byID[node.NodeID] = node
		assert.True(t, node.Status.Terminal(), "node %s left in state %s", node.NodeID, node.Status)
	}

	assert.Equal(t, models.RunNodeStatusSuccess, byID["start"].Status)
	assert.Equal(t, models.RunNodeStatusSuccess, byID["check"].Status)
	assert.Equal(t, models.RunNodeStatusSuccess, byID["notify"].Status)

	// Trigger output mirrors the input payload.
	assert.Equal(t, "forge", byID["start"].Output["name"])
	assert.Equal(t, true, byID["check"].Output["result"])
}

func TestExecuteRun_FailureSkipsDownstream(t *testing.T) {
	engine, persistence := newTestEngine(t)

	flow := &models.Flow{
		ID:    "flow-failing",
		OrgID: "org-1",
		Name:  "Failing Flow",
		Definition: models.FlowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Type: models.NodeTypeTrigger},
				// Missing url makes the call fail without touching the network.
				{ID: "call", Type: models.NodeTypeHTTPCall, Config: map[string]any{}},
				{ID: "notify", Type: models.NodeTypeNotification, Config: map[string]any{
					"channel": "ops",
					"message": "never sent",
				}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "start", Target: "call"},
				{ID: "e2", Source: "call", Target: "notify"},
			},
		},
	}
	savePublishedFlow(t, persistence, flow)

	queued, err := engine.QueueRun(t.Context(), "org-1", flow.ID, models.TriggerTypeManual, "", nil)
	require.NoError(t, err)

	run, err := engine.ExecuteRun(t.Context(), queued.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, run.Status)

	nodes, err := persistence.Runs().GetRunNodes(t.Context(), run.ID)
	require.NoError(t, err)

	byID := make(map[string]*models.RunNode, len(nodes))
	for _, node := range nodes {
		byID[node.NodeID] = node
	}

	assert.Equal(t, models.RunNodeStatusSuccess, byID["start"].Status)
	assert.Equal(t, models.RunNodeStatusFailed, byID["call"].Status)
	assert.NotEmpty(t, byID["call"].ErrorMessage)
	assert.Equal(t, models.RunNodeStatusSkipped, byID["notify"].Status)

	// Failed and skipped nodes contribute nothing.
	assert.Equal(t, 0, run.TotalCost)
}

func TestExecuteRun_CostAggregation(t *testing.T) {
	engine, persistence := newTestEngine(t)

	flow := &models.Flow{
		ID:    "flow-generation",
		OrgID: "org-1",
		Name:  "Generation Flow",
		Definition: models.FlowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Type: models.NodeTypeTrigger},
				{ID: "text", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "a story"}},
				{ID: "art", Type: models.NodeTypeImage, Config: map[string]any{"prompt": "a cover"}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "start", Target: "text"},
				{ID: "e2", Source: "text", Target: "art"},
			},
		},
	}
	savePublishedFlow(t, persistence, flow)

	queued, err := engine.QueueRun(t.Context(), "org-1", flow.ID, models.TriggerTypeManual, "", nil)
	require.NoError(t, err)

	run, err := engine.ExecuteRun(t.Context(), queued.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSuccess, run.Status)

	expected := models.CostFor(models.NodeTypeLLM) + models.CostFor(models.NodeTypeImage)
	assert.Equal(t, expected, run.TotalCost)

	nodes, err := persistence.Runs().GetRunNodes(t.Context(), run.ID)
	require.NoError(t, err)

	nodeSum := 0
	for _, node := range nodes {
		nodeSum += node.Cost
	}

	assert.Equal(t, run.TotalCost, nodeSum)

	entries, err := persistence.Usage().ListByOrg(t.Context(), "org-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	ledgerSum := 0
	for _, entry := range entries {
		assert.Equal(t, run.ID, entry.RunID)
		ledgerSum += entry.Cost
	}

	assert.Equal(t, run.TotalCost, ledgerSum)
}

func TestExecuteRun_RejectsNonQueuedRun(t *testing.T) {
	engine, persistence := newTestEngine(t)
	savePublishedFlow(t, persistence, linearFlow("org-1"))

	queued, err := engine.QueueRun(t.Context(), "org-1", "flow-linear", models.TriggerTypeManual, "", map[string]any{"name": "forge"})
	require.NoError(t, err)

	_, err = engine.ExecuteRun(t.Context(), queued.ID)
	require.NoError(t, err)

	_, err = engine.ExecuteRun(t.Context(), queued.ID)
	require.ErrorIs(t, err, ErrRunNotQueued)
}

func TestTopologicalOrder_DiamondIsDeterministic(t *testing.T) {
	definition := &models.FlowDefinition{
		Nodes: []*models.Node{
			{ID: "a", Type: models.NodeTypeTrigger},
			{ID: "b", Type: models.NodeTypeLLM},
			{ID: "c", Type: models.NodeTypeImage},
			{ID: "d", Type: models.NodeTypeNotification},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "a", Target: "c"},
			{ID: "e3", Source: "b", Target: "d"},
			{ID: "e4", Source: "c", Target: "d"},
		},
	}

	order, err := topologicalOrder(definition)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestTopologicalOrder_DetectsCycle(t *testing.T) {
	definition := &models.FlowDefinition{
		Nodes: []*models.Node{
			{ID: "a", Type: models.NodeTypeTrigger},
			{ID: "b", Type: models.NodeTypeLLM},
			{ID: "c", Type: models.NodeTypeImage},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "c"},
			{ID: "e3", Source: "c", Target: "b"},
		},
	}

	_, err := topologicalOrder(definition)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycleDetected))
}

func TestTopologicalOrder_IgnoresDanglingEdges(t *testing.T) {
	definition := &models.FlowDefinition{
		Nodes: []*models.Node{
			{ID: "a", Type: models.NodeTypeTrigger},
			{ID: "b", Type: models.NodeTypeLLM},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "ghost", Target: "b"},
		},
	}

	order, err := topologicalOrder(definition)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}
