// Package persistence provides the storage abstraction for workflows and their run records.
package persistence

import (
	"context"
	"time"

	"github.com/quantnest/executor/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error

	// LastExecution returns the run of the workflow with the latest start time, or nil when it never ran.
	LastExecution(ctx context.Context, workflowID string) (*models.Execution, error)
	// CreateExecution stores a new run record. It fails if the ID is already taken.
	CreateExecution(ctx context.Context, execution *models.Execution) error
	// SaveExecution overwrites an existing run record.
	SaveExecution(ctx context.Context, execution *models.Execution) error
	// ExecutionsByWorkflow returns the runs started at or after since, oldest first.
	ExecutionsByWorkflow(ctx context.Context, workflowID string, since time.Time) ([]*models.Execution, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
