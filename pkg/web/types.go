package web

import "github.com/quantnest/executor/pkg/models"

// ActionResponse describes one registered action handler.
type ActionResponse struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

type ExecutionsResponse struct {
	WorkflowID string              `json:"workflow_id"`
	Executions []*models.Execution `json:"executions"`
	TotalCount int                 `json:"total_count"`
}
