package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// RunRepository handles run and run node database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *RunRepository) SaveRun(ctx context.Context, run *models.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	payload, err := marshalNullableMap(run.InputPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal run input payload: %w", err)
	}

	query := `
		INSERT INTO runs (id, flow_id, org_id, triggered_by, trigger_type, input_payload, status, total_cost, started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , total_cost = EXCLUDED.total_cost
		  , started_at = EXCLUDED.started_at
		  , finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.FlowID, run.OrgID, run.TriggeredBy, run.TriggerType,
		payload, run.Status, run.TotalCost, run.StartedAt, run.FinishedAt, run.CreatedAt)
	if err != nil {
		return persistence.NewEntityError("SaveRun", "run", run.ID, err)
	}

	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT
			id
		  , flow_id
		  , org_id
		  , triggered_by
		  , trigger_type
		  , input_payload
		  , status
		  , total_cost
		  , started_at
		  , finished_at
		  , created_at
		FROM runs
		WHERE id = $1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetRun", "run", id, persistence.ErrRunNotFound)
		}

		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return run, nil
}

func (r *RunRepository) ListRunsByFlow(ctx context.Context, flowID string, limit, offset int) ([]*models.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT
			id
		  , flow_id
		  , org_id
		  , triggered_by
		  , trigger_type
		  , input_payload
		  , status
		  , total_cost
		  , started_at
		  , finished_at
		  , created_at
		FROM runs
		WHERE flow_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, flowID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	runs := make([]*models.Run, 0, limit)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) SaveRunNode(ctx context.Context, node *models.RunNode) error {
	input, err := marshalNullableMap(node.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal run node input: %w", err)
	}

	output, err := marshalNullableMap(node.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal run node output: %w", err)
	}

	query := `
		INSERT INTO run_nodes (run_id, node_id, node_type, input, output, status, cost, error_message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, node_id) DO UPDATE SET
			input = EXCLUDED.input
		  , output = EXCLUDED.output
		  , status = EXCLUDED.status
		  , cost = EXCLUDED.cost
		  , error_message = EXCLUDED.error_message
		  , started_at = EXCLUDED.started_at
		  , finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		node.RunID, node.NodeID, node.NodeType, input, output,
		node.Status, node.Cost, node.ErrorMessage, node.StartedAt, node.FinishedAt)
	if err != nil {
		return persistence.NewEntityError("SaveRunNode", "run_node", node.RunID+"/"+node.NodeID, err)
	}

	return nil
}

func (r *RunRepository) GetRunNodes(ctx context.Context, runID string) ([]*models.RunNode, error) {
	query := `
		SELECT
			run_id
		  , node_id
		  , node_type
		  , input
		  , output
		  , status
		  , cost
		  , error_message
		  , started_at
		  , finished_at
		FROM run_nodes
		WHERE run_id = $1
		ORDER BY node_id
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run nodes: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	nodes := make([]*models.RunNode, 0)

	for rows.Next() {
		var (
			node          models.RunNode
			input, output []byte
		)

		err := rows.Scan(
			&node.RunID, &node.NodeID, &node.NodeType, &input, &output,
			&node.Status, &node.Cost, &node.ErrorMessage, &node.StartedAt, &node.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run node: %w", err)
		}

		if err := unmarshalNullableMap(input, &node.Input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run node input: %w", err)
		}

		if err := unmarshalNullableMap(output, &node.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run node output: %w", err)
		}

		nodes = append(nodes, &node)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating run nodes: %w", err)
	}

	return nodes, nil
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run     models.Run
		payload []byte
	)

	err := row.Scan(
		&run.ID, &run.FlowID, &run.OrgID, &run.TriggeredBy, &run.TriggerType,
		&payload, &run.Status, &run.TotalCost, &run.StartedAt, &run.FinishedAt, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalNullableMap(payload, &run.InputPayload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run input payload: %w", err)
	}

	return &run, nil
}

// marshalNullableMap renders a nil map as SQL NULL instead of JSON null.
func marshalNullableMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}

	return json.Marshal(m)
}

func unmarshalNullableMap(data []byte, target *map[string]any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}
