// Package services guards and records workflow runs.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quantnest/executor/pkg/eventbus"
	"github.com/quantnest/executor/pkg/events"
	"github.com/quantnest/executor/pkg/metrics"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/workflow"
)

const DefaultCooldown = 5 * time.Second

// RunStore is the part of persistence the run guard owns.
type RunStore interface {
	LastExecution(ctx context.Context, workflowID string) (*models.Execution, error)
	CreateExecution(ctx context.Context, execution *models.Execution) error
	SaveExecution(ctx context.Context, execution *models.Execution) error
}

type Runner interface {
	Run(ctx context.Context, workflow *models.Workflow, condition *bool) workflow.RunResult
}

// Publisher is satisfied by eventbus.EventBus.
type Publisher interface {
	eventbus.EventPublisher
	GenerateID() string
}

type Execution struct {
	logger    *slog.Logger
	store     RunStore
	runner    Runner
	publisher Publisher
	cooldown  time.Duration
	now       func() time.Time
}

// NewExecution builds the run guard. publisher may be nil.
func NewExecution(logger *slog.Logger, store RunStore, runner Runner, publisher Publisher, cooldown time.Duration) *Execution {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	return &Execution{
		logger:    logger.With("module", "execution_service"),
		store:     store,
		runner:    runner,
		publisher: publisher,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (s *Execution) WithClock(now func() time.Time) *Execution {
	s.now = now

	return s
}

// CanExecute is true when the workflow never ran or its latest run started strictly more than
// the cooldown ago.
func (s *Execution) CanExecute(ctx context.Context, workflowID string) (bool, error) {
	last, err := s.store.LastExecution(ctx, workflowID)
	metrics.PersistenceOperations.WithLabelValues("last", metrics.OperationResult(err)).Inc()

	if err != nil {
		return false, fmt.Errorf("failed to load last execution: %w", err)
	}

	if last == nil {
		return true, nil
	}

	return s.now().Sub(last.StartTime) > s.cooldown, nil
}

// ExecuteSafe records an InProgress run, executes the workflow and always finalizes the record
// with a status, the steps and an end time. A panic in the executor becomes a single failed step
// numbered 0. The returned error is non-nil when the record could not be created or saved.
func (s *Execution) ExecuteSafe(ctx context.Context, wf *models.Workflow, condition *bool) (execution *models.Execution, err error) {
	execution = &models.Execution{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		UserID:     wf.UserID,
		Status:     models.ExecutionStatusInProgress,
		Steps:      []models.ExecutionStep{},
		StartTime:  s.now(),
	}

	logger := s.logger.With("workflow_id", wf.ID, "execution_id", execution.ID)

	err = s.store.CreateExecution(ctx, execution)
	metrics.PersistenceOperations.WithLabelValues("create", metrics.OperationResult(err)).Inc()

	if err != nil {
		logger.ErrorContext(ctx, "Failed to create execution record", "error", err)

		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	metrics.RunsActive.Inc()
	logger.InfoContext(ctx, "Workflow run started")

	triggerType := ""
	if trigger := wf.Trigger(); trigger != nil {
		triggerType = trigger.Type
	}

	s.publish(ctx, logger, wf.ID, func(id string) eventbus.Event {
		return events.NewExecutionStarted(id, execution, triggerType, condition)
	})

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Workflow run panicked", "panic", r)

			execution.Status = models.ExecutionStatusFailed
			execution.Steps = []models.ExecutionStep{{
				Step:    0,
				Status:  models.ExecutionStatusFailed,
				Message: fmt.Sprint(r),
			}}
		}

		end := s.now()
		execution.EndTime = &end

		// the record is written even when the caller's context is already done
		saveErr := s.store.SaveExecution(context.WithoutCancel(ctx), execution)
		metrics.PersistenceOperations.WithLabelValues("save", metrics.OperationResult(saveErr)).Inc()

		if saveErr != nil {
			logger.ErrorContext(ctx, "Failed to save execution record", "error", saveErr)

			err = fmt.Errorf("failed to save execution record: %w", saveErr)
		}

		metrics.RunsActive.Dec()
		metrics.RunsTotal.WithLabelValues(string(execution.Status)).Inc()
		metrics.RunDuration.WithLabelValues(string(execution.Status)).Observe(end.Sub(execution.StartTime).Seconds())

		logger.InfoContext(ctx, "Workflow run finished",
			"status", execution.Status, "steps", len(execution.Steps), "duration", end.Sub(execution.StartTime))

		s.publish(ctx, logger, wf.ID, func(id string) eventbus.Event {
			return events.NewExecutionFinished(id, execution)
		})
	}()

	result := s.runner.Run(ctx, wf, condition)

	execution.Status = result.Status
	if result.Steps != nil {
		execution.Steps = result.Steps
	}

	return execution, nil
}

func (s *Execution) publish(ctx context.Context, logger *slog.Logger, key string, build func(id string) eventbus.Event) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(context.WithoutCancel(ctx), key, build(s.publisher.GenerateID()))
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish run event", "error", err)
	}
}
