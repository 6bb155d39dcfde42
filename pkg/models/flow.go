// Package models defines the core domain models for the Forge automation core.
package models

import "time"

// FlowStatus represents the lifecycle state of a flow.
type FlowStatus string

const (
	FlowStatusDraft     FlowStatus = "draft"     // Editable, not executable
	FlowStatusPublished FlowStatus = "published" // Validated, executable
	FlowStatusArchived  FlowStatus = "archived"  // Historical, not executable
)

// NodeType identifies the capability a node dispatches to. The set is closed:
// the engine refuses to queue runs for flows containing unknown types.
type NodeType string

const (
	NodeTypeTrigger          NodeType = "trigger"
	NodeTypeLLM              NodeType = "llm"
	NodeTypeImage            NodeType = "image"
	NodeTypeVideo            NodeType = "video"
	NodeTypeComplianceFilter NodeType = "complianceFilter"
	NodeTypeCondition        NodeType = "condition"
	NodeTypeHTTPCall         NodeType = "httpCall"
	NodeTypeNotification     NodeType = "notification"
)

// KnownNodeTypes lists every node type the dispatcher handles.
var KnownNodeTypes = []NodeType{
	NodeTypeTrigger,
	NodeTypeLLM,
	NodeTypeImage,
	NodeTypeVideo,
	NodeTypeComplianceFilter,
	NodeTypeCondition,
	NodeTypeHTTPCall,
	NodeTypeNotification,
}

// IsKnownNodeType reports whether t is part of the closed node type set.
func IsKnownNodeType(t NodeType) bool {
	for _, known := range KnownNodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Position holds graph editor coordinates. The engine never reads it.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Node is a typed unit of work inside a flow definition.
type Node struct {
	ID       string         `json:"id"       validate:"required"`
	Type     NodeType       `json:"type"     validate:"required"`
	Label    string         `json:"label"`
	Config   map[string]any `json:"config"`
	Position Position       `json:"position"`
}

// Edge is a directed dependency between two nodes of the same flow.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// FlowDefinition is the node/edge graph of a flow. Published definitions are
// guaranteed acyclic by the validator.
type FlowDefinition struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Flow is a versioned, named graph of typed processing nodes belonging to an
// organization. Version increments only on publish.
type Flow struct {
	ID          string         `json:"id"`
	OrgID       string         `json:"org_id"      validate:"required"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Definition  FlowDefinition `json:"definition"`
	Status      FlowStatus     `json:"status"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (d *FlowDefinition) NodeByID(id string) *Node {
	for _, node := range d.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNodes returns every trigger node in the definition.
func (d *FlowDefinition) TriggerNodes() []*Node {
	nodes := make([]*Node, 0, 1)

	for _, node := range d.Nodes {
		if node.Type == NodeTypeTrigger {
			nodes = append(nodes, node)
		}
	}

	return nodes
}
