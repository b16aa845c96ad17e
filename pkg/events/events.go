// Package events defines the run lifecycle events published by the executor.
package events

import (
	"time"

	"github.com/quantnest/executor/pkg/models"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "quantnest.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent  EventType = "execution.started"
	ExecutionFinishedEvent EventType = "execution.finished"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id"`
	UserID      string    `json:"user_id"`
	ExecutionID string    `json:"execution_id"`
}

// ExecutionStarted is published once the InProgress run record exists.
type ExecutionStarted struct {
	BaseEvent

	TriggerType string `json:"trigger_type"`
	Condition   *bool  `json:"condition,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// ExecutionFinished is published after the run record was finalized.
type ExecutionFinished struct {
	BaseEvent

	Status   models.ExecutionStatus `json:"status"`
	Steps    []models.ExecutionStep `json:"steps"`
	Duration time.Duration          `json:"duration"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

func NewExecutionStarted(id string, execution *models.Execution, triggerType string, condition *bool) ExecutionStarted {
	return ExecutionStarted{
		BaseEvent: BaseEvent{
			ID:          id,
			Type:        ExecutionStartedEvent,
			Timestamp:   execution.StartTime,
			WorkflowID:  execution.WorkflowID,
			UserID:      execution.UserID,
			ExecutionID: execution.ID,
		},
		TriggerType: triggerType,
		Condition:   condition,
	}
}

func NewExecutionFinished(id string, execution *models.Execution) ExecutionFinished {
	event := ExecutionFinished{
		BaseEvent: BaseEvent{
			ID:          id,
			Type:        ExecutionFinishedEvent,
			Timestamp:   execution.StartTime,
			WorkflowID:  execution.WorkflowID,
			UserID:      execution.UserID,
			ExecutionID: execution.ID,
		},
		Status: execution.Status,
		Steps:  execution.Steps,
	}

	if execution.EndTime != nil {
		event.Timestamp = *execution.EndTime
		event.Duration = execution.EndTime.Sub(execution.StartTime)
	}

	return event
}
