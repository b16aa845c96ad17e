package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/persistence"
)

const uniqueViolation = "23505"

// ExecutionRepository handles run-record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const selectExecution = `
	SELECT
		id
	  , workflow_id
	  , user_id
	  , status
	  , steps
	  , start_time
	  , end_time
	FROM executions
`

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	steps, err := json.Marshal(nonNil(execution.Steps))
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, user_id, status, steps, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		execution.ID, execution.WorkflowID, execution.UserID, execution.Status, steps, execution.StartTime, execution.EndTime)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return persistence.NewExecutionError("Create", execution.WorkflowID, execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	if err != nil {
		return persistence.NewExecutionError("Create", execution.WorkflowID, execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	steps, err := json.Marshal(nonNil(execution.Steps))
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2, steps = $3, end_time = $4
		WHERE id = $1`,
		execution.ID, execution.Status, steps, execution.EndTime)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.WorkflowID, execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Save", execution.WorkflowID, execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Save", execution.WorkflowID, execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// Last returns the run with the latest start time, or nil when the workflow never ran.
func (r *ExecutionRepository) Last(ctx context.Context, workflowID string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, selectExecution+" WHERE workflow_id = $1 ORDER BY start_time DESC LIMIT 1", workflowID)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, persistence.NewExecutionError("Last", workflowID, "", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListSince(ctx context.Context, workflowID string, since time.Time) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, selectExecution+" WHERE workflow_id = $1 AND start_time >= $2 ORDER BY start_time", workflowID, since)
	if err != nil {
		return nil, persistence.NewExecutionError("List", workflowID, "", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row scanner) (*models.Execution, error) {
	var (
		execution models.Execution
		steps     []byte
		endTime   sql.NullTime
	)

	err := row.Scan(&execution.ID, &execution.WorkflowID, &execution.UserID, &execution.Status, &steps, &execution.StartTime, &endTime)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(steps, &execution.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps of execution %s: %w", execution.ID, err)
	}

	if endTime.Valid {
		end := endTime.Time
		execution.EndTime = &end
	}

	return &execution, nil
}
