package models

import "time"

// RunStatus is the lifecycle state of one flow execution.
type RunStatus string

const (
	RunStatusQueued  RunStatus = "queued"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// TriggerType records how a run was started.
type TriggerType string

const (
	TriggerTypeManual    TriggerType = "manual"
	TriggerTypeWebhook   TriggerType = "webhook"
	TriggerTypeScheduled TriggerType = "scheduled"
)

// TriggerPayloadKey is the reserved outputs key holding the run's input
// payload, so downstream nodes reference the trigger data and upstream node
// results uniformly.
const TriggerPayloadKey = "$trigger"

// Run is one execution instance of a published flow. Immutable once
// FinishedAt is set.
type Run struct {
	ID           string         `json:"id"`
	FlowID       string         `json:"flow_id"`
	OrgID        string         `json:"org_id"`
	TriggeredBy  string         `json:"triggered_by,omitempty"`
	TriggerType  TriggerType    `json:"trigger_type"`
	InputPayload map[string]any `json:"input_payload,omitempty"`
	Status       RunStatus      `json:"status"`
	TotalCost    int            `json:"total_cost"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// RunNodeStatus is the per-node execution state. Transitions are monotonic:
// pending -> running -> success|failed, or pending -> skipped.
type RunNodeStatus string

const (
	RunNodeStatusPending RunNodeStatus = "pending"
	RunNodeStatusRunning RunNodeStatus = "running"
	RunNodeStatusSuccess RunNodeStatus = "success"
	RunNodeStatusFailed  RunNodeStatus = "failed"
	RunNodeStatusSkipped RunNodeStatus = "skipped"
)

// RunNode is the execution record of one node within one run. One exists per
// flow node, created in pending state when the run is queued.
type RunNode struct {
	RunID        string         `json:"run_id"`
	NodeID       string         `json:"node_id"`
	NodeType     NodeType       `json:"node_type"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Status       RunNodeStatus  `json:"status"`
	Cost         int            `json:"cost"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// Terminal reports whether the node reached a final state.
func (s RunNodeStatus) Terminal() bool {
	return s == RunNodeStatusSuccess || s == RunNodeStatusFailed || s == RunNodeStatusSkipped
}
