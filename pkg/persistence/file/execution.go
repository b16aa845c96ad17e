package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/persistence"
)

// ExecutionRepository stores one JSON document per run under executions/<workflowID>/.
// The latest run of each workflow is cached after the first directory scan and kept current by
// Create and Save, so Last does not re-read the run history. Files written by another process
// are not seen by Last once the cache is warm.
type ExecutionRepository struct {
	root string

	mu sync.Mutex
	// latest holds the run with the latest start time per scanned workflow; a nil entry means
	// the workflow has never run.
	latest map[string]*models.Execution
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{
		root:   root,
		latest: make(map[string]*models.Execution),
	}
}

func (er *ExecutionRepository) dir(workflowID string) string {
	return filepath.Clean(path.Join(er.root, "executions", workflowID))
}

func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	filePath := path.Join(er.dir(execution.WorkflowID), execution.ID+".json")
	if _, err := os.Stat(filePath); err == nil {
		return persistence.NewExecutionError("Create", execution.WorkflowID, execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	return er.write(execution)
}

// remember updates the cached latest run. Workflows not scanned yet are left to the first Last.
func (er *ExecutionRepository) remember(execution *models.Execution) {
	current, scanned := er.latest[execution.WorkflowID]
	if !scanned {
		return
	}

	if current == nil || current.ID == execution.ID || !execution.StartTime.Before(current.StartTime) {
		er.latest[execution.WorkflowID] = cloneExecution(execution)
	}
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	filePath := path.Join(er.dir(execution.WorkflowID), execution.ID+".json")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return persistence.NewExecutionError("Save", execution.WorkflowID, execution.ID, persistence.ErrExecutionNotFound)
	}

	return er.write(execution)
}

func (er *ExecutionRepository) write(execution *models.Execution) error {
	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	err = writeFile(er.dir(execution.WorkflowID), execution.ID+".json", data)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.WorkflowID, execution.ID, err)
	}

	er.remember(execution)

	return nil
}

// Last returns the run with the latest start time, or nil when the workflow never ran.
func (er *ExecutionRepository) Last(_ context.Context, workflowID string) (*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	if latest, scanned := er.latest[workflowID]; scanned {
		return cloneExecution(latest), nil
	}

	executions, err := er.all(workflowID)
	if err != nil {
		return nil, err
	}

	var latest *models.Execution
	if len(executions) > 0 {
		latest = executions[len(executions)-1]
	}

	er.latest[workflowID] = latest

	return cloneExecution(latest), nil
}

func cloneExecution(execution *models.Execution) *models.Execution {
	if execution == nil {
		return nil
	}

	clone := *execution

	if execution.Steps != nil {
		clone.Steps = make([]models.ExecutionStep, len(execution.Steps))
		copy(clone.Steps, execution.Steps)
	}

	if execution.EndTime != nil {
		end := *execution.EndTime
		clone.EndTime = &end
	}

	return &clone
}

func (er *ExecutionRepository) ListSince(_ context.Context, workflowID string, since time.Time) ([]*models.Execution, error) {
	executions, err := er.all(workflowID)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Execution, 0, len(executions))

	for _, execution := range executions {
		if !execution.StartTime.Before(since) {
			filtered = append(filtered, execution)
		}
	}

	return filtered, nil
}

// all reads every run of the workflow, oldest first.
func (er *ExecutionRepository) all(workflowID string) ([]*models.Execution, error) {
	dir := er.dir(workflowID)

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, persistence.NewExecutionError("List", workflowID, "", err)
	}

	executions := make([]*models.Execution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		body, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, persistence.NewExecutionError("List", workflowID, "", err)
		}

		var execution models.Execution

		err = json.Unmarshal(body, &execution)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution %s: %w", file, err)
		}

		executions = append(executions, &execution)
	}

	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].StartTime.Before(executions[j].StartTime)
	})

	return executions, nil
}
