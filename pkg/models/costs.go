package models

// NodeCosts is the authoritative per-node-type cost table, in sparks. This is
// the only place costs are defined; the dispatcher and the usage ledger both
// read from it.
var NodeCosts = map[NodeType]int{
	NodeTypeTrigger:          0,
	NodeTypeCondition:        0,
	NodeTypeHTTPCall:         1,
	NodeTypeNotification:     1,
	NodeTypeComplianceFilter: 2,
	NodeTypeLLM:              5,
	NodeTypeImage:            10,
	NodeTypeVideo:            25,
}

// CostFor returns the advertised cost of a node type. Unknown types cost
// nothing; the validator rejects them before execution anyway.
func CostFor(t NodeType) int {
	return NodeCosts[t]
}
