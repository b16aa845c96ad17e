// Package file provides file-based persistence for workflows and run records.
package file

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
//
// Layout: <root>/workflows/<id>.json and <root>/executions/<workflowID>/<executionID>.json.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
	}
}

var _ persistence.Persistence = (*Persistence)(nil)

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return fp.workflowRepo.Save(ctx, workflow)
}

func (fp *Persistence) LastExecution(ctx context.Context, workflowID string) (*models.Execution, error) {
	return fp.executionRepo.Last(ctx, workflowID)
}

func (fp *Persistence) CreateExecution(ctx context.Context, execution *models.Execution) error {
	return fp.executionRepo.Create(ctx, execution)
}

func (fp *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	return fp.executionRepo.Save(ctx, execution)
}

func (fp *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string, since time.Time) ([]*models.Execution, error) {
	return fp.executionRepo.ListSince(ctx, workflowID, since)
}
