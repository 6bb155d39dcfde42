// Package engine queues and executes runs of published flows. Queueing and
// execution are split on purpose: the API queues, a worker executes, and the
// two halves meet through the run record and the event bus.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgehq/forge/pkg/capability"
	"github.com/forgehq/forge/pkg/eventbus"
	"github.com/forgehq/forge/pkg/events"
	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/otelhelper"
	"github.com/forgehq/forge/pkg/persistence"
)

var (
	// ErrFlowNotPublished is returned when a run is requested for a flow
	// that is not in the published state.
	ErrFlowNotPublished = fmt.Errorf("flow is not published")

	// ErrRunNotQueued is returned when execution is requested for a run
	// that already left the queued state.
	ErrRunNotQueued = fmt.Errorf("run is not in queued state")
)

// Engine owns the run lifecycle for one process.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	dispatcher  *capability.Dispatcher
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
}

// NewEngine creates an engine. The publisher may be nil, in which case runs
// execute without emitting lifecycle events.
func NewEngine(
	logger *slog.Logger,
	persistence persistence.Persistence,
	dispatcher *capability.Dispatcher,
	publisher eventbus.EventPublisher,
) *Engine {
	return &Engine{
		logger:      logger.With("module", "engine"),
		persistence: persistence,
		dispatcher:  dispatcher,
		publisher:   publisher,
		tracer:      otel.Tracer("github.com/forgehq/forge/pkg/engine"),
	}
}

// QueueRun creates a run for a published flow owned by orgID, materializes
// one pending run node per flow node, and announces the run on the bus. The
// returned run is in the queued state.
func (e *Engine) QueueRun(
	ctx context.Context,
	orgID, flowID string,
	triggerType models.TriggerType,
	triggeredBy string,
	payload map[string]any,
) (*models.Run, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.queue_run",
		attribute.String(otelhelper.FlowIDKey, flowID),
		attribute.String(otelhelper.TriggerTypeKey, string(triggerType)),
	)
	defer span.End()

	flow, err := e.persistence.Flows().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.OrgID != orgID {
		// Cross-org access is indistinguishable from a missing flow.
		return nil, persistence.NewEntityError("queue_run", "flow", flowID, persistence.ErrFlowNotFound)
	}

	if flow.Status != models.FlowStatusPublished {
		return nil, fmt.Errorf("queue run for flow %s: %w", flowID, ErrFlowNotPublished)
	}

	now := time.Now().UTC()
	run := &models.Run{
		ID:           uuid.New().String(),
		FlowID:       flow.ID,
		OrgID:        orgID,
		TriggeredBy:  triggeredBy,
		TriggerType:  triggerType,
		InputPayload: payload,
		Status:       models.RunStatusQueued,
		CreatedAt:    now,
	}

	if err := e.persistence.Runs().SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}

	for _, node := range flow.Definition.Nodes {
		runNode := &models.RunNode{
			RunID:    run.ID,
			NodeID:   node.ID,
			NodeType: node.Type,
			Status:   models.RunNodeStatusPending,
		}

		if err := e.persistence.Runs().SaveRunNode(ctx, runNode); err != nil {
			return nil, fmt.Errorf("save run node %s: %w", node.ID, err)
		}
	}

	span.SetAttributes(attribute.String(otelhelper.RunIDKey, run.ID))

	if e.publisher != nil {
		event := events.RunQueued{
			BaseEvent:   events.NewBaseEvent(events.RunQueuedEvent, run.ID, flow.ID, orgID),
			TriggerType: string(triggerType),
		}

		if err := e.publisher.Publish(ctx, run.ID, event); err != nil {
			return nil, fmt.Errorf("publish run queued event: %w", err)
		}
	}

	e.logger.InfoContext(ctx, "Run queued",
		"run_id", run.ID,
		"flow_id", flow.ID,
		"trigger_type", triggerType,
		"nodes", len(flow.Definition.Nodes),
	)

	return run, nil
}

// ExecuteRun walks a queued run's definition in dependency order, dispatching
// each node. The first node failure marks every remaining node skipped; the
// run then finishes failed. TotalCost sums the cost of successful nodes only,
// so it always equals the sum over the run's node records.
func (e *Engine) ExecuteRun(ctx context.Context, runID string) (*models.Run, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute_run",
		attribute.String(otelhelper.RunIDKey, runID),
	)
	defer span.End()

	run, err := e.persistence.Runs().GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	if run.Status != models.RunStatusQueued {
		return nil, fmt.Errorf("execute run %s in state %s: %w", runID, run.Status, ErrRunNotQueued)
	}

	flow, err := e.persistence.Flows().GetByID(ctx, run.FlowID)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With("run_id", run.ID, "flow_id", flow.ID)
	logger.InfoContext(ctx, "Starting run execution")

	startedAt := time.Now().UTC()
	run.Status = models.RunStatusRunning
	run.StartedAt = &startedAt

	if err := e.persistence.Runs().SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("mark run running: %w", err)
	}

	order, err := topologicalOrder(&flow.Definition)
	if err != nil {
		logger.ErrorContext(ctx, "Run aborted", "error", err)
		e.finishRun(ctx, run, models.RunStatusFailed, 0, startedAt, err.Error())

		return run, nil
	}

	runNodes, err := e.loadRunNodes(ctx, run)
	if err != nil {
		return nil, err
	}

	outputs := map[string]map[string]any{
		models.TriggerPayloadKey: run.InputPayload,
	}
	if outputs[models.TriggerPayloadKey] == nil {
		outputs[models.TriggerPayloadKey] = map[string]any{}
	}

	var (
		totalCost int
		failedAt  string
		failCause string
	)

	for _, nodeID := range order {
		node := flow.Definition.NodeByID(nodeID)
		runNode := runNodes[nodeID]

		if failedAt != "" {
			e.skipNode(ctx, logger, runNode)

			continue
		}

		result, nodeErr := e.executeNode(ctx, logger, node, runNode, outputs, run.OrgID)
		if nodeErr != nil {
			failedAt = nodeID
			failCause = nodeErr.Error()

			otelhelper.SetError(span, nodeErr, attribute.String(otelhelper.NodeIDKey, nodeID))

			continue
		}

		outputs[nodeID] = result.Output
		totalCost += result.Cost

		e.recordUsage(ctx, logger, run, node, result)
	}

	status := models.RunStatusSuccess
	if failedAt != "" {
		status = models.RunStatusFailed
	}

	e.finishRun(ctx, run, status, totalCost, startedAt, failCause)

	logger.InfoContext(ctx, "Run finished",
		"status", run.Status,
		"total_cost", run.TotalCost,
		"duration", time.Since(startedAt),
	)

	return run, nil
}

func (e *Engine) loadRunNodes(ctx context.Context, run *models.Run) (map[string]*models.RunNode, error) {
	nodes, err := e.persistence.Runs().GetRunNodes(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load run nodes: %w", err)
	}

	byID := make(map[string]*models.RunNode, len(nodes))
	for _, node := range nodes {
		byID[node.NodeID] = node
	}

	return byID, nil
}

func (e *Engine) executeNode(
	ctx context.Context,
	logger *slog.Logger,
	node *models.Node,
	runNode *models.RunNode,
	outputs map[string]map[string]any,
	orgID string,
) (*capability.Result, error) {
	if runNode == nil {
		// Queueing creates a record per node, so a missing one means the
		// definition changed under a queued run.
		return nil, fmt.Errorf("no run node record for node %s", node.ID)
	}

	nodeStarted := time.Now().UTC()
	runNode.Status = models.RunNodeStatusRunning
	runNode.StartedAt = &nodeStarted
	runNode.Input = node.Config

	if err := e.persistence.Runs().SaveRunNode(ctx, runNode); err != nil {
		return nil, fmt.Errorf("mark node running: %w", err)
	}

	result, err := e.dispatcher.Dispatch(ctx, node, outputs, orgID)

	finished := time.Now().UTC()
	runNode.FinishedAt = &finished

	if err != nil {
		runNode.Status = models.RunNodeStatusFailed
		runNode.ErrorMessage = err.Error()

		logger.WarnContext(ctx, "Node failed", "node_id", node.ID, "node_type", node.Type, "error", err)

		if saveErr := e.persistence.Runs().SaveRunNode(ctx, runNode); saveErr != nil {
			logger.ErrorContext(ctx, "Failed to persist node failure", "node_id", node.ID, "error", saveErr)
		}

		return nil, err
	}

	runNode.Status = models.RunNodeStatusSuccess
	runNode.Output = result.Output
	runNode.Cost = result.Cost

	if saveErr := e.persistence.Runs().SaveRunNode(ctx, runNode); saveErr != nil {
		return nil, fmt.Errorf("persist node result: %w", saveErr)
	}

	logger.DebugContext(ctx, "Node executed",
		"node_id", node.ID,
		"node_type", node.Type,
		"cost", result.Cost,
		"latency_ms", result.LatencyMs,
	)

	return result, nil
}

func (e *Engine) skipNode(ctx context.Context, logger *slog.Logger, runNode *models.RunNode) {
	if runNode == nil {
		return
	}

	finished := time.Now().UTC()
	runNode.Status = models.RunNodeStatusSkipped
	runNode.FinishedAt = &finished

	if err := e.persistence.Runs().SaveRunNode(ctx, runNode); err != nil {
		logger.ErrorContext(ctx, "Failed to persist skipped node", "node_id", runNode.NodeID, "error", err)
	}
}

// recordUsage appends a ledger entry for a successful node. Ledger write
// failures do not fail the node; the run record still carries the cost.
func (e *Engine) recordUsage(
	ctx context.Context,
	logger *slog.Logger,
	run *models.Run,
	node *models.Node,
	result *capability.Result,
) {
	entry := &models.UsageEntry{
		ID:        uuid.New().String(),
		OrgID:     run.OrgID,
		RunID:     run.ID,
		NodeType:  node.Type,
		Provider:  result.Provider,
		Cost:      result.Cost,
		LatencyMs: result.LatencyMs,
		AssetRef:  result.AssetRef,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.persistence.Usage().Append(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "Failed to append usage entry", "node_id", node.ID, "error", err)
	}
}

func (e *Engine) finishRun(
	ctx context.Context,
	run *models.Run,
	status models.RunStatus,
	totalCost int,
	startedAt time.Time,
	failCause string,
) {
	finished := time.Now().UTC()
	run.Status = status
	run.TotalCost = totalCost
	run.FinishedAt = &finished

	if err := e.persistence.Runs().SaveRun(ctx, run); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist finished run", "run_id", run.ID, "error", err)
	}

	if e.publisher == nil {
		return
	}

	var event eventbus.Event

	switch status {
	case models.RunStatusSuccess:
		event = events.RunFinished{
			BaseEvent: events.NewBaseEvent(events.RunFinishedEvent, run.ID, run.FlowID, run.OrgID),
			TotalCost: totalCost,
			Duration:  finished.Sub(startedAt),
		}
	default:
		event = events.RunFailed{
			BaseEvent: events.NewBaseEvent(events.RunFailedEvent, run.ID, run.FlowID, run.OrgID),
			Error:     failCause,
			Duration:  finished.Sub(startedAt),
		}
	}

	if err := e.publisher.Publish(ctx, run.ID, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish run lifecycle event", "run_id", run.ID, "error", err)
	}
}
