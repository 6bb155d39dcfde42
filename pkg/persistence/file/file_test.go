package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

func sampleFlow(id, orgID string, status models.FlowStatus) *models.Flow {
	return &models.Flow{
		ID:     id,
		OrgID:  orgID,
		Name:   "sample flow " + id,
		Status: status,
		Definition: models.FlowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Type: models.NodeTypeTrigger, Config: map[string]any{"triggerType": "manual"}},
			},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestFlowRepository_SaveAndGet(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	flow := sampleFlow("flow-1", "org-1", models.FlowStatusDraft)
	require.NoError(t, p.Flows().Save(ctx, flow))

	loaded, err := p.Flows().GetByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, flow.Name, loaded.Name)
	assert.Equal(t, models.FlowStatusDraft, loaded.Status)
	require.Len(t, loaded.Definition.Nodes, 1)
	assert.Equal(t, models.NodeTypeTrigger, loaded.Definition.Nodes[0].Type)
}

func TestFlowRepository_GetMissingReturnsNotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.Flows().GetByID(t.Context(), "nope")
	require.Error(t, err)
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestFlowRepository_ListFiltersAndPaginates(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.Flows().Save(ctx, sampleFlow("flow-1", "org-1", models.FlowStatusDraft)))
	require.NoError(t, p.Flows().Save(ctx, sampleFlow("flow-2", "org-1", models.FlowStatusPublished)))
	require.NoError(t, p.Flows().Save(ctx, sampleFlow("flow-3", "org-2", models.FlowStatusPublished)))

	result, err := p.Flows().List(ctx, persistence.ListFlowsOptions{OrgID: "org-1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	assert.False(t, result.HasNextPage)

	published := models.FlowStatusPublished
	result, err = p.Flows().List(ctx, persistence.ListFlowsOptions{OrgID: "org-1", Status: &published, Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Flows, 1)
	assert.Equal(t, "flow-2", result.Flows[0].ID)

	result, err = p.Flows().List(ctx, persistence.ListFlowsOptions{OrgID: "org-1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Flows, 1)
	assert.Equal(t, 2, result.TotalCount)
	assert.True(t, result.HasNextPage)
}

func TestFlowRepository_ListAllByStatusSpansOrgs(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.Flows().Save(ctx, sampleFlow("flow-1", "org-1", models.FlowStatusPublished)))
	require.NoError(t, p.Flows().Save(ctx, sampleFlow("flow-2", "org-2", models.FlowStatusPublished)))
	require.NoError(t, p.Flows().Save(ctx, sampleFlow("flow-3", "org-2", models.FlowStatusDraft)))

	flows, err := p.Flows().ListAllByStatus(ctx, models.FlowStatusPublished)
	require.NoError(t, err)
	assert.Len(t, flows, 2)
}

func TestFlowRepository_Delete(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.Flows().Save(ctx, sampleFlow("flow-1", "org-1", models.FlowStatusDraft)))
	require.NoError(t, p.Flows().Delete(ctx, "flow-1"))

	_, err := p.Flows().GetByID(ctx, "flow-1")
	assert.True(t, persistence.IsFlowNotFound(err))

	err = p.Flows().Delete(ctx, "flow-1")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestRunRepository_RoundTripWithNodes(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	run := &models.Run{
		ID:           "run-1",
		FlowID:       "flow-1",
		OrgID:        "org-1",
		TriggerType:  models.TriggerTypeManual,
		InputPayload: map[string]any{"name": "forge"},
		Status:       models.RunStatusQueued,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, p.Runs().SaveRun(ctx, run))

	require.NoError(t, p.Runs().SaveRunNode(ctx, &models.RunNode{
		RunID: "run-1", NodeID: "start", NodeType: models.NodeTypeTrigger, Status: models.RunNodeStatusPending,
	}))
	require.NoError(t, p.Runs().SaveRunNode(ctx, &models.RunNode{
		RunID: "run-1", NodeID: "notify", NodeType: models.NodeTypeNotification, Status: models.RunNodeStatusPending,
	}))

	loaded, err := p.Runs().GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, loaded.Status)
	assert.Equal(t, "forge", loaded.InputPayload["name"])

	nodes, err := p.Runs().GetRunNodes(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	// Saving the same node again updates in place rather than appending.
	require.NoError(t, p.Runs().SaveRunNode(ctx, &models.RunNode{
		RunID: "run-1", NodeID: "start", NodeType: models.NodeTypeTrigger, Status: models.RunNodeStatusSuccess,
	}))

	nodes, err = p.Runs().GetRunNodes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	for _, node := range nodes {
		if node.NodeID == "start" {
			assert.Equal(t, models.RunNodeStatusSuccess, node.Status)
		}
	}
}

func TestRunRepository_ListRunsByFlow(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, p.Runs().SaveRun(ctx, &models.Run{
			ID: id, FlowID: "flow-1", OrgID: "org-1", Status: models.RunStatusQueued, CreatedAt: time.Now().UTC(),
		}))
	}

	require.NoError(t, p.Runs().SaveRun(ctx, &models.Run{
		ID: "run-other", FlowID: "flow-2", OrgID: "org-1", Status: models.RunStatusQueued, CreatedAt: time.Now().UTC(),
	}))

	runs, err := p.Runs().ListRunsByFlow(ctx, "flow-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = p.Runs().ListRunsByFlow(ctx, "flow-1", 2, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestCredentialRepository_HashSurvivesRoundTrip(t *testing.T) {
	root := t.TempDir()
	p := NewPersistence(root)
	ctx := t.Context()

	credential := &models.Credential{
		ID:        "cred-1",
		OrgID:     "org-1",
		Prefix:    models.CredentialPrefixSandbox,
		Hash:      "$2a$10$fakehashfakehashfakehash",
		Name:      "ci key",
		Status:    models.CredentialStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, p.Credentials().Save(ctx, credential))

	loaded, err := p.Credentials().GetByID(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, credential.Hash, loaded.Hash)

	// The model marshals without the hash; the stored document must not.
	raw, err := json.Marshal(loaded)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "fakehash")

	stored, err := os.ReadFile(filepath.Join(root, "credentials", "cred-1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(stored), "fakehash")
}

func TestCredentialRepository_ListActiveByPrefix(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	save := func(id, prefix string, status models.CredentialStatus) {
		require.NoError(t, p.Credentials().Save(ctx, &models.Credential{
			ID: id, OrgID: "org-1", Prefix: prefix, Hash: "h", Name: id, Status: status, CreatedAt: time.Now().UTC(),
		}))
	}

	save("cred-1", models.CredentialPrefixSandbox, models.CredentialStatusActive)
	save("cred-2", models.CredentialPrefixSandbox, models.CredentialStatusRevoked)
	save("cred-3", models.CredentialPrefixProduction, models.CredentialStatusActive)

	active, err := p.Credentials().ListActiveByPrefix(ctx, models.CredentialPrefixSandbox)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "cred-1", active[0].ID)
}

func TestWebhookRepository_GetBySlug(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	webhook := &models.Webhook{
		ID:        "wh-1",
		OrgID:     "org-1",
		FlowID:    "flow-1",
		URLSlug:   "abc123",
		Secret:    "whsec_secret",
		Status:    models.WebhookStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, p.Webhooks().Save(ctx, webhook))

	loaded, err := p.Webhooks().GetBySlug(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "wh-1", loaded.ID)
	assert.Equal(t, "whsec_secret", loaded.Secret)

	_, err = p.Webhooks().GetBySlug(ctx, "unknown")
	assert.True(t, persistence.IsWebhookNotFound(err))
}

func TestEnvironmentRepository_GetByName(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.Environments().Save(ctx, &models.Environment{
		ID: "env-1", OrgID: "org-1", Name: models.EnvironmentSandbox, CreatedAt: time.Now().UTC(),
	}))

	loaded, err := p.Environments().GetByName(ctx, "org-1", models.EnvironmentSandbox)
	require.NoError(t, err)
	assert.Equal(t, "env-1", loaded.ID)

	_, err = p.Environments().GetByName(ctx, "org-2", models.EnvironmentSandbox)
	assert.True(t, persistence.IsEnvironmentNotFound(err))
}

func TestUsageRepository_AppendAndList(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	for i, cost := range []int{5, 10} {
		require.NoError(t, p.Usage().Append(ctx, &models.UsageEntry{
			ID:        "entry-" + string(rune('a'+i)),
			OrgID:     "org-1",
			RunID:     "run-1",
			NodeType:  models.NodeTypeLLM,
			Provider:  "stub",
			Cost:      cost,
			CreatedAt: time.Now().UTC(),
		}))
	}

	require.NoError(t, p.Usage().Append(ctx, &models.UsageEntry{
		ID: "entry-z", OrgID: "org-2", RunID: "run-2", NodeType: models.NodeTypeImage, Cost: 10, CreatedAt: time.Now().UTC(),
	}))

	entries, err := p.Usage().ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))
}
