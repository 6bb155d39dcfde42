// Package flow implements structural validation of flow definitions. The
// execution engine trusts published definitions and never re-validates at run
// time, so everything here fails closed.
package flow

import (
	"fmt"

	"github.com/forgehq/forge/pkg/models"
)

// Severity classifies a validation finding. Error findings block publishing;
// warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one validation result. NodeID is set when the finding points at
// a specific node.
type Finding struct {
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	Message  string   `json:"message"`
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []Finding) bool {
	for _, finding := range findings {
		if finding.Severity == SeverityError {
			return true
		}
	}

	return false
}

// requiredConfigFields lists fields a node type cannot execute without.
var requiredConfigFields = map[models.NodeType][]string{
	models.NodeTypeLLM:          {"prompt"},
	models.NodeTypeImage:        {"prompt"},
	models.NodeTypeVideo:        {"prompt"},
	models.NodeTypeCondition:    {"field", "operator", "value"},
	models.NodeTypeHTTPCall:     {"url"},
	models.NodeTypeNotification: {"channel"},
}

// recommendedConfigFields lists fields whose absence is only worth a warning.
var recommendedConfigFields = map[models.NodeType][]string{
	models.NodeTypeTrigger: {"triggerType"},
}

// ValidateDefinition checks a flow definition's structural invariants and
// returns every finding. A definition with zero error findings is safe to
// publish and execute.
func ValidateDefinition(def *models.FlowDefinition) []Finding {
	findings := make([]Finding, 0)

	if len(def.Nodes) == 0 {
		findings = append(findings, Finding{
			Severity: SeverityError,
			Message:  "flow has no nodes",
		})

		return findings
	}

	findings = append(findings, checkTriggers(def)...)
	findings = append(findings, checkNodeIDs(def)...)
	findings = append(findings, checkEdgeReferences(def)...)
	findings = append(findings, checkAcyclic(def)...)
	findings = append(findings, checkNodeConfigs(def)...)

	return findings
}

func checkTriggers(def *models.FlowDefinition) []Finding {
	triggers := def.TriggerNodes()

	switch {
	case len(triggers) == 0:
		return []Finding{{
			Severity: SeverityError,
			Message:  "flow has no trigger node",
		}}
	case len(triggers) > 1:
		return []Finding{{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("flow has %d trigger nodes; only the first is used", len(triggers)),
		}}
	}

	return nil
}

func checkNodeIDs(def *models.FlowDefinition) []Finding {
	findings := make([]Finding, 0)
	seen := make(map[string]bool, len(def.Nodes))

	for _, node := range def.Nodes {
		if node.ID == "" {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Message:  "node has empty id",
			})

			continue
		}

		if seen[node.ID] {
			findings = append(findings, Finding{
				Severity: SeverityError,
				NodeID:   node.ID,
				Message:  fmt.Sprintf("duplicate node id %q", node.ID),
			})
		}

		seen[node.ID] = true
	}

	return findings
}

func checkEdgeReferences(def *models.FlowDefinition) []Finding {
	findings := make([]Finding, 0)

	nodeIDs := make(map[string]bool, len(def.Nodes))
	for _, node := range def.Nodes {
		nodeIDs[node.ID] = true
	}

	for _, edge := range def.Edges {
		if !nodeIDs[edge.Source] {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Message:  fmt.Sprintf("edge %q references non-existent source node %q", edge.ID, edge.Source),
			})
		}

		if !nodeIDs[edge.Target] {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Message:  fmt.Sprintf("edge %q references non-existent target node %q", edge.ID, edge.Target),
			})
		}
	}

	return findings
}

// checkAcyclic runs a depth-first search with a global visited set and a
// per-path stack set. It starts from every node, not just those reachable
// from a trigger, so orphaned cyclic subgraphs are still caught.
func checkAcyclic(def *models.FlowDefinition) []Finding {
	adjacency := make(map[string][]string, len(def.Nodes))
	nodeIDs := make(map[string]bool, len(def.Nodes))

	for _, node := range def.Nodes {
		nodeIDs[node.ID] = true
	}

	for _, edge := range def.Edges {
		// Dangling edges are reported separately; skip them here.
		if !nodeIDs[edge.Source] || !nodeIDs[edge.Target] {
			continue
		}

		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	visited := make(map[string]bool, len(def.Nodes))
	onStack := make(map[string]bool)

	var visit func(id string) *Finding

	visit = func(id string) *Finding {
		visited[id] = true
		onStack[id] = true

		for _, next := range adjacency[id] {
			if onStack[next] {
				return &Finding{
					Severity: SeverityError,
					NodeID:   next,
					Message:  fmt.Sprintf("cycle detected through node %q", next),
				}
			}

			if !visited[next] {
				if finding := visit(next); finding != nil {
					return finding
				}
			}
		}

		onStack[id] = false

		return nil
	}

	for _, node := range def.Nodes {
		if visited[node.ID] {
			continue
		}

		if finding := visit(node.ID); finding != nil {
			return []Finding{*finding}
		}
	}

	return nil
}

func checkNodeConfigs(def *models.FlowDefinition) []Finding {
	findings := make([]Finding, 0)

	for _, node := range def.Nodes {
		if !models.IsKnownNodeType(node.Type) {
			findings = append(findings, Finding{
				Severity: SeverityError,
				NodeID:   node.ID,
				Message:  fmt.Sprintf("unknown node type %q", node.Type),
			})

			continue
		}

		for _, field := range requiredConfigFields[node.Type] {
			if _, ok := node.Config[field]; !ok {
				findings = append(findings, Finding{
					Severity: SeverityError,
					NodeID:   node.ID,
					Message:  fmt.Sprintf("%s node is missing required config field %q", node.Type, field),
				})
			}
		}

		for _, field := range recommendedConfigFields[node.Type] {
			if _, ok := node.Config[field]; !ok {
				findings = append(findings, Finding{
					Severity: SeverityWarning,
					NodeID:   node.ID,
					Message:  fmt.Sprintf("%s node is missing recommended config field %q", node.Type, field),
				})
			}
		}
	}

	return findings
}
