// Package web serves the executor's read-only operations API: health, run history and the
// registered action handlers.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/registry"
)

// DefaultHistory bounds GET /workflows/:id/executions when no since is given.
const DefaultHistory = 7 * 24 * time.Hour

type WorkflowReader interface {
	FetchByID(ctx context.Context, id string) (*models.Workflow, error)
	HealthCheck(ctx context.Context) (string, bool)
}

type ExecutionReader interface {
	LastExecution(ctx context.Context, workflowID string) (*models.Execution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string, since time.Time) ([]*models.Execution, error)
}

type APIHandlers struct {
	workflows  WorkflowReader
	executions ExecutionReader
	registry   *registry.Registry
	now        func() time.Time
}

func NewAPIHandlers(workflows WorkflowReader, executions ExecutionReader, registry *registry.Registry) *APIHandlers {
	return &APIHandlers{
		workflows:  workflows,
		executions: executions,
		registry:   registry,
		now:        time.Now,
	}
}

func (h *APIHandlers) WithClock(now func() time.Time) *APIHandlers {
	h.now = now

	return h
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflows.HealthCheck(c.Context())
	registryOk := len(h.registry.Types()) > 0

	registryCheck := "Registry has no action handlers"
	if registryOk {
		registryCheck = "Registry is healthy"
	}

	status := "unhealthy"
	message := "QuantNest executor is unhealthy"
	httpStatus := http.StatusInternalServerError

	if registryOk && repOk {
		status = "healthy"
		message = "QuantNest executor is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": h.now().UTC(),
	})
}

// GetExecutions lists the workflow's runs started at or after the since query parameter
// (RFC 3339), oldest first.
func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	workflowID := c.Params("id")

	since := h.now().Add(-DefaultHistory)

	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "Invalid since parameter: "+err.Error())
		}

		since = parsed
	}

	_, err := h.workflows.FetchByID(c.Context(), workflowID)
	if err != nil {
		return handleStoreError(c, err)
	}

	executions, err := h.executions.ExecutionsByWorkflow(c.Context(), workflowID, since)
	if err != nil {
		return handleStoreError(c, err)
	}

	if executions == nil {
		executions = make([]*models.Execution, 0)
	}

	return c.JSON(ExecutionsResponse{
		WorkflowID: workflowID,
		Executions: executions,
		TotalCount: len(executions),
	})
}

func (h *APIHandlers) GetLastExecution(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")

	execution, err := h.executions.LastExecution(c.Context(), workflowID)
	if err != nil {
		return handleStoreError(c, err)
	}

	if execution == nil {
		return notFound(c, "execution_not_found", "workflow "+workflowID+" has not run yet")
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	actions := h.registry.Actions()
	response := make([]ActionResponse, 0, len(actions))

	for _, action := range actions {
		response = append(response, ActionResponse{
			Type:        action.ID(),
			Name:        action.Name(),
			Description: action.Description(),
			Schema:      action.Schema(),
		})
	}

	return c.JSON(response)
}
