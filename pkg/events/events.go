// Package events defines the run lifecycle events published on the bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the bus topic carrying every run lifecycle event.
const Topic = "forge.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// RunQueuedEvent asks a worker to pick up a queued run.
	RunQueuedEvent EventType = "run.queued"

	// RunFinishedEvent reports a run that completed with every node successful.
	RunFinishedEvent EventType = "run.finished"

	// RunFailedEvent reports a run in which at least one node failed.
	RunFailedEvent EventType = "run.failed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	FlowID    string    `json:"flow_id"`
	OrgID     string    `json:"org_id"`
}

// NewBaseEvent stamps identity and time for an event about one run.
func NewBaseEvent(eventType EventType, runID, flowID, orgID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		FlowID:    flowID,
		OrgID:     orgID,
	}
}

type RunQueued struct {
	BaseEvent

	TriggerType string `json:"trigger_type"`
}

func (e RunQueued) GetType() EventType {
	return RunQueuedEvent
}

type RunFinished struct {
	BaseEvent

	TotalCost int           `json:"total_cost"`
	Duration  time.Duration `json:"duration"`
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type RunFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}
