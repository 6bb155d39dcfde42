package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehq/forge/pkg/models"
)

func definitionWithTrigger(nodes []*models.Node, edges []*models.Edge) *models.FlowDefinition {
	all := append([]*models.Node{
		{ID: "start", Type: models.NodeTypeTrigger, Config: map[string]any{"triggerType": "manual"}},
	}, nodes...)

	return &models.FlowDefinition{Nodes: all, Edges: edges}
}

func findingMessages(findings []Finding) []string {
	messages := make([]string, 0, len(findings))
	for _, finding := range findings {
		messages = append(messages, finding.Message)
	}

	return messages
}

func TestValidateDefinition_EmptyDefinition(t *testing.T) {
	findings := ValidateDefinition(&models.FlowDefinition{})

	require.Len(t, findings, 1)
	assert.True(t, HasErrors(findings))
}

func TestValidateDefinition_ValidGraphPasses(t *testing.T) {
	def := definitionWithTrigger(
		[]*models.Node{
			{ID: "text", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "write"}},
			{ID: "notify", Type: models.NodeTypeNotification, Config: map[string]any{"channel": "ops"}},
		},
		[]*models.Edge{
			{ID: "e1", Source: "start", Target: "text"},
			{ID: "e2", Source: "text", Target: "notify"},
		},
	)

	findings := ValidateDefinition(def)
	assert.False(t, HasErrors(findings))
}

func TestValidateDefinition_MissingTriggerIsError(t *testing.T) {
	def := &models.FlowDefinition{
		Nodes: []*models.Node{
			{ID: "text", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "write"}},
		},
	}

	findings := ValidateDefinition(def)
	require.True(t, HasErrors(findings))
	assert.Contains(t, findingMessages(findings), "flow has no trigger node")
}

func TestValidateDefinition_MultipleTriggersIsWarning(t *testing.T) {
	def := &models.FlowDefinition{
		Nodes: []*models.Node{
			{ID: "t1", Type: models.NodeTypeTrigger, Config: map[string]any{"triggerType": "manual"}},
			{ID: "t2", Type: models.NodeTypeTrigger, Config: map[string]any{"triggerType": "manual"}},
		},
	}

	findings := ValidateDefinition(def)
	assert.False(t, HasErrors(findings))
	require.NotEmpty(t, findings)
	assert.Equal(t, SeverityWarning, findings[0].Severity)
}

func TestValidateDefinition_DuplicateNodeID(t *testing.T) {
	def := definitionWithTrigger(
		[]*models.Node{
			{ID: "dup", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "a"}},
			{ID: "dup", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "b"}},
		},
		nil,
	)

	findings := ValidateDefinition(def)
	assert.True(t, HasErrors(findings))
}

func TestValidateDefinition_DanglingEdge(t *testing.T) {
	def := definitionWithTrigger(nil, []*models.Edge{
		{ID: "e1", Source: "start", Target: "missing"},
	})

	findings := ValidateDefinition(def)
	assert.True(t, HasErrors(findings))
}

func TestValidateDefinition_CycleIsError(t *testing.T) {
	def := definitionWithTrigger(
		[]*models.Node{
			{ID: "a", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "x"}},
			{ID: "b", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "y"}},
		},
		[]*models.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
	)

	findings := ValidateDefinition(def)
	assert.True(t, HasErrors(findings))
}

func TestValidateDefinition_SelfLoopIsError(t *testing.T) {
	def := definitionWithTrigger(
		[]*models.Node{
			{ID: "a", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "x"}},
		},
		[]*models.Edge{
			{ID: "e1", Source: "a", Target: "a"},
		},
	)

	findings := ValidateDefinition(def)
	assert.True(t, HasErrors(findings))
}

func TestValidateDefinition_UnknownNodeType(t *testing.T) {
	def := definitionWithTrigger(
		[]*models.Node{
			{ID: "x", Type: models.NodeType("teleport")},
		},
		nil,
	)

	findings := ValidateDefinition(def)
	assert.True(t, HasErrors(findings))
}

func TestValidateDefinition_RequiredConfigFields(t *testing.T) {
	tests := []struct {
		name string
		node *models.Node
	}{
		{"llm without prompt", &models.Node{ID: "n", Type: models.NodeTypeLLM}},
		{"condition without operator", &models.Node{ID: "n", Type: models.NodeTypeCondition, Config: map[string]any{
			"field": "a.b",
			"value": 1,
		}}},
		{"httpCall without url", &models.Node{ID: "n", Type: models.NodeTypeHTTPCall}},
		{"notification without channel", &models.Node{ID: "n", Type: models.NodeTypeNotification}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := definitionWithTrigger([]*models.Node{tt.node}, nil)

			findings := ValidateDefinition(def)
			assert.True(t, HasErrors(findings))
		})
	}
}

func TestValidateDefinition_TriggerWithoutTypeIsWarningOnly(t *testing.T) {
	def := &models.FlowDefinition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeTrigger},
		},
	}

	findings := ValidateDefinition(def)
	assert.False(t, HasErrors(findings))
	assert.NotEmpty(t, findings)
}
