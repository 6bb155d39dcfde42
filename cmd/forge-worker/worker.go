package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgehq/forge/pkg/capability"
	"github.com/forgehq/forge/pkg/engine"
	"github.com/forgehq/forge/pkg/eventbus"
	"github.com/forgehq/forge/pkg/events"
	"github.com/forgehq/forge/pkg/persistence"
)

// Worker consumes run queued events and drives each run to completion.
type Worker struct {
	id       string
	logger   *slog.Logger
	engine   *engine.Engine
	eventBus eventbus.EventBus
}

func NewWorker(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:       id,
		logger:   logger.With("module", "forge-worker", "worker_id", id),
		engine:   engine.NewEngine(logger, persistence, capability.NewDispatcher(), eventBus),
		eventBus: eventBus,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "worker_id", w.id)

	w.eventBus.Handle(events.RunQueuedEvent, w.handleRunQueued)

	err := w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *Worker) handleRunQueued(ctx context.Context, event any) error {
	queuedEvent, ok := event.(*events.RunQueued)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RunQueued")

		return nil
	}

	logger := w.logger.With(
		"run_id", queuedEvent.RunID,
		"flow_id", queuedEvent.FlowID,
		"event_id", queuedEvent.ID,
	)
	logger.InfoContext(ctx, "Processing run queued event")

	run, err := w.engine.ExecuteRun(ctx, queuedEvent.RunID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute run", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Run execution completed",
		"status", run.Status,
		"total_cost", run.TotalCost,
	)

	return nil
}
