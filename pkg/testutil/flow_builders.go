// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/forgehq/forge/pkg/models"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:     uuid.New().String(),
		Type:   models.NodeTypeNotification,
		Label:  "Test Node",
		Config: map[string]any{"channel": "email", "message": "test"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithNodeID sets the node id.
func WithNodeID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithNodeType sets the node type.
func WithNodeType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithNodeConfig sets the node configuration.
func WithNodeConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// CreateTestFlow creates a published flow with a manual trigger feeding a
// notification node. Overrides adjust the defaults.
func CreateTestFlow(overrides ...func(*models.Flow)) *models.Flow {
	flow := &models.Flow{
		ID:     uuid.New().String(),
		OrgID:  "org-1",
		Name:   "Test Flow",
		Status: models.FlowStatusPublished,
		Definition: models.FlowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Type: models.NodeTypeTrigger, Config: map[string]any{"triggerType": "manual"}},
				{ID: "notify", Type: models.NodeTypeNotification, Config: map[string]any{"channel": "email", "message": "done"}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "start", Target: "notify"},
			},
		},
		Version:   1,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// WithFlowID sets the flow id.
func WithFlowID(id string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.ID = id
	}
}

// WithFlowOrg sets the owning organization.
func WithFlowOrg(orgID string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.OrgID = orgID
	}
}

// WithFlowStatus sets the lifecycle status.
func WithFlowStatus(status models.FlowStatus) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Status = status
	}
}

// WithScheduleTrigger replaces the trigger configuration with a cron schedule.
func WithScheduleTrigger(expr string) func(*models.Flow) {
	return func(f *models.Flow) {
		for _, node := range f.Definition.TriggerNodes() {
			node.Config = map[string]any{
				"triggerType": "schedule",
				"cron":        expr,
			}
		}
	}
}

// WithDefinition replaces the whole node/edge graph.
func WithDefinition(definition models.FlowDefinition) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Definition = definition
	}
}
