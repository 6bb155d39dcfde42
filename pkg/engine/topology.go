package engine

import (
	"errors"

	"github.com/forgehq/forge/pkg/models"
)

// ErrCycleDetected is returned when a definition contains a dependency cycle.
// Published flows are validated acyclic, so hitting this means the stored
// definition was corrupted after publish.
var ErrCycleDetected = errors.New("flow definition contains a cycle")

// topologicalOrder returns the node ids of the definition in dependency
// order using Kahn's algorithm. Ties are broken by definition order, so the
// result is deterministic for a given definition. Edges referencing unknown
// nodes are ignored.
func topologicalOrder(definition *models.FlowDefinition) ([]string, error) {
	inDegree := make(map[string]int, len(definition.Nodes))
	dependents := make(map[string][]string, len(definition.Nodes))

	for _, node := range definition.Nodes {
		inDegree[node.ID] = 0
	}

	for _, edge := range definition.Edges {
		if _, ok := inDegree[edge.Source]; !ok {
			continue
		}

		if _, ok := inDegree[edge.Target]; !ok {
			continue
		}

		inDegree[edge.Target]++
		dependents[edge.Source] = append(dependents[edge.Source], edge.Target)
	}

	order := make([]string, 0, len(definition.Nodes))
	emitted := make(map[string]bool, len(definition.Nodes))

	for len(order) < len(definition.Nodes) {
		progressed := false

		for _, node := range definition.Nodes {
			if emitted[node.ID] || inDegree[node.ID] != 0 {
				continue
			}

			emitted[node.ID] = true
			order = append(order, node.ID)

			for _, dependent := range dependents[node.ID] {
				inDegree[dependent]--
			}

			progressed = true
		}

		if !progressed {
			return nil, ErrCycleDetected
		}
	}

	return order, nil
}
