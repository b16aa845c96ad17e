package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/quantnest/executor/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestWorkflowError(t *testing.T) {
	t.Parallel()

	err := persistence.NewWorkflowError("GetByID", "wf-1", persistence.ErrWorkflowNotFound)

	assert.Equal(t, "GetByID operation failed for workflow wf-1: workflow not found", err.Error())
	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.True(t, persistence.IsWorkflowNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := persistence.NewExecutionError("Save", "wf-1", "exec-1", cause)

	assert.Equal(t, "Save operation failed for execution exec-1 of workflow wf-1: disk full", err.Error())
	assert.ErrorIs(t, err, cause)

	listErr := persistence.NewExecutionError("List", "wf-1", "", persistence.ErrExecutionNotFound)
	assert.Equal(t, "List operation failed for executions of workflow wf-1: execution not found", listErr.Error())
	assert.True(t, persistence.IsExecutionNotFound(listErr))
}
