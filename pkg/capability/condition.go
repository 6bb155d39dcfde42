package capability

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition operators. Unknown operators evaluate to true on purpose: a
// misconfigured branch should not silently halt a published flow.
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorContains    = "contains"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorExists      = "exists"
)

// EvaluateCondition resolves config's field path against the accumulated
// outputs and applies the operator to the configured value.
func EvaluateCondition(config map[string]any, outputs map[string]map[string]any) bool {
	field, _ := config["field"].(string)
	operator, _ := config["operator"].(string)
	expected := config["value"]

	actual := lookupPath(outputs, field)

	switch operator {
	case OperatorEquals:
		return stringify(actual) == stringify(expected)
	case OperatorNotEquals:
		return stringify(actual) != stringify(expected)
	case OperatorContains:
		return strings.Contains(stringify(actual), stringify(expected))
	case OperatorGreaterThan:
		left, right, ok := numericPair(actual, expected)

		return ok && left > right
	case OperatorLessThan:
		left, right, ok := numericPair(actual, expected)

		return ok && left < right
	case OperatorExists:
		return actual != nil
	default:
		return true
	}
}

// lookupPath walks a dot-separated path through nested maps. The first
// segment selects a node id (or the reserved trigger payload key), the rest
// descend into that node's output.
func lookupPath(outputs map[string]map[string]any, path string) any {
	if path == "" {
		return nil
	}

	segments := strings.Split(path, ".")

	root, ok := outputs[segments[0]]
	if !ok {
		return nil
	}

	var current any = root

	for _, segment := range segments[1:] {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = asMap[segment]
		if !ok {
			return nil
		}
	}

	return current
}

func stringify(v any) string {
	if v == nil {
		return ""
	}

	return fmt.Sprintf("%v", v)
}

func numericPair(left, right any) (float64, float64, bool) {
	l, lok := toFloat(left)
	r, rok := toFloat(right)

	return l, r, lok && rok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}
