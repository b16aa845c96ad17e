// Package protocol defines the contract between the workflow executor and action handlers.
package protocol

import (
	"context"

	"github.com/quantnest/executor/pkg/models"
)

// Action executes every node of one type. Implementations must be safe for concurrent use:
// sibling nodes of a run execute at the same time.
type Action interface {
	// ID is the node type tag the action handles, e.g. "zerodha".
	ID() string

	// Name is the human-readable node type recorded in execution steps, e.g. "Zerodha Action".
	Name() string

	Description() string

	// Schema returns the JSON schema of the node metadata.
	Schema() map[string]any

	// Execute runs the node. Failures are reported through the Result, never as a panic;
	// trade-placing actions record their outcome on run.
	Execute(ctx context.Context, node *models.Node, run *models.ExecutionContext) Result
}

// Result is the outcome of one node. A skipped node emits no execution step.
type Result struct {
	Status  models.ExecutionStatus
	Message string
	Skip    bool
}

func Success(message string) Result {
	return Result{Status: models.ExecutionStatusSuccess, Message: message}
}

func Failure(message string) Result {
	return Result{Status: models.ExecutionStatusFailed, Message: message}
}

// Skipped carries the reason for logging only.
func Skipped(reason string) Result {
	return Result{Skip: true, Message: reason}
}
