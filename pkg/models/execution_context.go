package models

import (
	"sync"
)

type EventType string

const (
	EventBuy          EventType = "buy"
	EventSell         EventType = "sell"
	EventPriceTrigger EventType = "price_trigger"
	EventTradeFailed  EventType = "trade_failed"
	EventNotification EventType = "notification"
)

// AIContext is diagnostic data about the trigger for notification and reporting consumers.
// It never gates execution.
type AIContext struct {
	TriggerType          string     `json:"triggerType"`
	MarketType           MarketType `json:"marketType"`
	Symbol               string     `json:"symbol,omitempty"`
	ConnectedSymbols     []string   `json:"connectedSymbols,omitempty"`
	TargetPrice          *float64   `json:"targetPrice,omitempty"`
	Condition            string     `json:"condition,omitempty"`
	TimerIntervalSeconds *int       `json:"timerIntervalSeconds,omitempty"`
	Expression           *Group     `json:"expression,omitempty"`
	EvaluatedCondition   *bool      `json:"evaluatedCondition,omitempty"`
}

type EventDetails struct {
	Symbol        string     `json:"symbol,omitempty"`
	Quantity      float64    `json:"quantity,omitempty"`
	Exchange      string     `json:"exchange,omitempty"`
	TargetPrice   *float64   `json:"targetPrice,omitempty"`
	Condition     string     `json:"condition,omitempty"`
	TradeType     string     `json:"tradeType,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	AIContext     *AIContext `json:"aiContext,omitempty"`
}

// ContextSnapshot is a point-in-time copy of an ExecutionContext.
type ContextSnapshot struct {
	UserID     string
	WorkflowID string
	EventType  EventType
	Details    *EventDetails
}

// ExecutionContext is the per-run cell shared by concurrently executing nodes.
// Writes replace the event wholesale: the last writer wins, and a reader sees
// either the previous or the next event, never a mix of both.
type ExecutionContext struct {
	userID     string
	workflowID string

	mu        sync.RWMutex
	eventType EventType
	details   *EventDetails
}

func NewExecutionContext(userID, workflowID string) *ExecutionContext {
	return &ExecutionContext{
		userID:     userID,
		workflowID: workflowID,
	}
}

func (c *ExecutionContext) UserID() string {
	return c.userID
}

func (c *ExecutionContext) WorkflowID() string {
	return c.workflowID
}

// Snapshot copies the current event and details.
func (c *ExecutionContext) Snapshot() ContextSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := ContextSnapshot{
		UserID:     c.userID,
		WorkflowID: c.workflowID,
		EventType:  c.eventType,
	}

	if c.details != nil {
		details := *c.details
		snapshot.Details = &details
	}

	return snapshot
}

// AIContext returns the diagnostic context currently recorded, if any.
func (c *ExecutionContext) AIContext() *AIContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.details == nil {
		return nil
	}

	return c.details.AIContext
}

// RecordEvent replaces the event type and details, carrying the current AI context over.
func (c *ExecutionContext) RecordEvent(eventType EventType, details EventDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.details != nil && details.AIContext == nil {
		details.AIContext = c.details.AIContext
	}

	c.eventType = eventType
	c.details = &details
}

// SetDetails replaces the details without touching the event type.
func (c *ExecutionContext) SetDetails(details EventDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.details = &details
}

// SetAIContext replaces the AI context while keeping the rest of the details.
func (c *ExecutionContext) SetAIContext(aiContext *AIContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	details := EventDetails{}
	if c.details != nil {
		details = *c.details
	}

	details.AIContext = aiContext
	c.details = &details
}
