// Package scheduler queues runs for published flows whose trigger node
// carries a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// resyncInterval is how often the scheduler re-reads published flows to pick
// up new, changed or archived schedules.
const resyncInterval = time.Minute

// RunQueuer queues a run for a published flow. The engine satisfies it.
type RunQueuer interface {
	QueueRun(ctx context.Context, orgID, flowID string, triggerType models.TriggerType, triggeredBy string, payload map[string]any) (*models.Run, error)
}

type scheduleEntry struct {
	entryID  cron.EntryID
	cronExpr string
}

// Scheduler keeps one cron entry per published flow with a schedule trigger.
type Scheduler struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	queuer      RunQueuer
	cron        *cron.Cron

	mu      sync.Mutex
	entries map[string]scheduleEntry
}

func NewScheduler(logger *slog.Logger, persistence persistence.Persistence, queuer RunQueuer) *Scheduler {
	return &Scheduler{
		logger:      logger.With("module", "scheduler"),
		persistence: persistence,
		queuer:      queuer,
		cron:        cron.New(),
		entries:     make(map[string]scheduleEntry),
	}
}

// Start syncs immediately, starts the cron runner and resyncs every minute
// until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.sync(ctx); err != nil {
		return err
	}

	s.cron.Start()

	ticker := time.NewTicker(resyncInterval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.sync(ctx); err != nil {
					s.logger.ErrorContext(ctx, "Schedule sync failed", "error", err)
				}
			}
		}
	}()

	s.logger.InfoContext(ctx, "Scheduler started")

	return nil
}

// Stop halts the cron runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// sync reconciles cron entries with the current set of published flows:
// registers new schedules, replaces changed expressions and drops schedules
// for flows no longer published.
func (s *Scheduler) sync(ctx context.Context) error {
	flows, err := s.persistence.Flows().ListAllByStatus(ctx, models.FlowStatusPublished)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(flows))

	for _, flow := range flows {
		expr := scheduleExpression(flow)
		if expr == "" {
			continue
		}

		wanted[flow.ID] = true

		existing, ok := s.entries[flow.ID]
		if ok && existing.cronExpr == expr {
			continue
		}

		if ok {
			s.cron.Remove(existing.entryID)
		}

		entryID, err := s.cron.AddFunc(expr, s.queueJob(flow.OrgID, flow.ID))
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping flow with invalid cron expression",
				"flow_id", flow.ID, "cron", expr, "error", err)

			delete(s.entries, flow.ID)

			continue
		}

		s.entries[flow.ID] = scheduleEntry{entryID: entryID, cronExpr: expr}
		s.logger.InfoContext(ctx, "Schedule registered", "flow_id", flow.ID, "cron", expr)
	}

	for flowID, entry := range s.entries {
		if wanted[flowID] {
			continue
		}

		s.cron.Remove(entry.entryID)
		delete(s.entries, flowID)
		s.logger.InfoContext(ctx, "Schedule removed", "flow_id", flowID)
	}

	return nil
}

func (s *Scheduler) queueJob(orgID, flowID string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		run, err := s.queuer.QueueRun(ctx, orgID, flowID, models.TriggerTypeScheduled, "scheduler", map[string]any{
			"scheduled_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to queue scheduled run", "flow_id", flowID, "error", err)

			return
		}

		s.logger.InfoContext(ctx, "Scheduled run queued", "flow_id", flowID, "run_id", run.ID)
	}
}

// scheduleExpression extracts the cron expression from a flow's trigger node,
// or "" when the flow is not schedule-triggered.
func scheduleExpression(flow *models.Flow) string {
	triggers := flow.Definition.TriggerNodes()
	if len(triggers) == 0 {
		return ""
	}

	trigger := triggers[0]

	if triggerType, _ := trigger.Config["triggerType"].(string); triggerType != "schedule" {
		return ""
	}

	expr, _ := trigger.Config["cron"].(string)

	return expr
}
