package models

import "time"

type ExecutionStatus string

const (
	ExecutionStatusInProgress ExecutionStatus = "InProgress"
	ExecutionStatusSuccess    ExecutionStatus = "Success"
	ExecutionStatusFailed     ExecutionStatus = "Failed"
)

// ExecutionStep is one log line of a run, appended once per visited node.
type ExecutionStep struct {
	Step     int             `json:"step"`
	NodeID   string          `json:"nodeId"`
	NodeType string          `json:"nodeType"`
	Status   ExecutionStatus `json:"status"`
	Message  string          `json:"message"`
}

// Execution is the persisted record of one workflow run.
type Execution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	UserID     string          `json:"user_id"`
	Status     ExecutionStatus `json:"status"`
	Steps      []ExecutionStep `json:"steps"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    *time.Time      `json:"end_time,omitempty"`
}

// StatusFromSteps is Failed iff any step failed; an empty list is a success.
func StatusFromSteps(steps []ExecutionStep) ExecutionStatus {
	for _, step := range steps {
		if step.Status == ExecutionStatusFailed {
			return ExecutionStatusFailed
		}
	}

	return ExecutionStatusSuccess
}

// Finished reports whether the execution reached a terminal status.
func (e *Execution) Finished() bool {
	return e.Status == ExecutionStatusSuccess || e.Status == ExecutionStatusFailed
}
