package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const selectWorkflow = `
	SELECT
		id
	  , user_id
	  , name
	  , nodes
	  , edges
	  , created_at
	  , updated_at
	FROM workflows
`

// GetAll returns all workflows ordered by creation time.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, selectWorkflow+" ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, selectWorkflow+" WHERE id = $1", id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// Save upserts the workflow, keeping the original creation time.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	nodes, err := json.Marshal(nonNil(workflow.Nodes))
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	edges, err := json.Marshal(nonNil(workflow.Edges))
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}

	query := `
		INSERT INTO workflows (id, user_id, name, nodes, edges, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.UserID, workflow.Name, nodes, edges, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow     models.Workflow
		nodes, edges []byte
	)

	err := row.Scan(&workflow.ID, &workflow.UserID, &workflow.Name, &nodes, &edges, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(nodes, &workflow.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes of workflow %s: %w", workflow.ID, err)
	}

	err = json.Unmarshal(edges, &workflow.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges of workflow %s: %w", workflow.ID, err)
	}

	return &workflow, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}
