package workflow

import (
	"context"
	"fmt"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/persistence"
)

// Repository is the read side of workflow storage used by the poller and the ops API.
type Repository struct {
	persistence persistence.Persistence
}

func NewRepository(persistence persistence.Persistence) *Repository {
	return &Repository{
		persistence: persistence,
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// FetchAll returns every workflow, skipping nil entries.
func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.Workflows(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	filtered := workflows[:0]

	for _, workflow := range workflows {
		if workflow != nil {
			filtered = append(filtered, workflow)
		}
	}

	return filtered, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, fmt.Errorf("%w: %s", persistence.ErrWorkflowNotFound, id)
	}

	return workflow, nil
}
