package workflow_test

import (
	"testing"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/persistence"
	"github.com/quantnest/executor/pkg/persistence/file"
	"github.com/quantnest/executor/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := file.NewPersistence(t.TempDir())
	repo := workflow.NewRepository(store)

	message, healthy := repo.HealthCheck(ctx)
	assert.True(t, healthy)
	assert.Equal(t, "Persistence layer is healthy", message)

	require.NoError(t, store.SaveWorkflow(ctx, &models.Workflow{ID: "wf-1", Name: "one"}))

	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	wf, err := repo.FetchByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "one", wf.Name)

	_, err = repo.FetchByID(ctx, "nope")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestRepository_Uninitialized(t *testing.T) {
	t.Parallel()

	message, healthy := workflow.NewRepository(nil).HealthCheck(t.Context())
	assert.False(t, healthy)
	assert.Equal(t, "Persistence layer not initialized", message)
}
