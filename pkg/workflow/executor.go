// Package workflow builds the run context and walks a workflow graph from its trigger,
// executing reachable action nodes level by level.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantnest/executor/pkg/metrics"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/otelhelper"
	"github.com/quantnest/executor/pkg/protocol"
	"github.com/quantnest/executor/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	NoTriggerNodeID   = "unknown"
	NoTriggerNodeType = "trigger"
	NoTriggerMessage  = "No trigger node found"

	conditionalNodeType = "Conditional Trigger"
)

// ConditionEvaluator evaluates a conditional node reached during a run.
type ConditionEvaluator interface {
	EvaluateNode(ctx context.Context, node *models.Node) (bool, error)
}

// RunResult is the outcome of one traversal. Context is the run context after the last node.
type RunResult struct {
	Status  models.ExecutionStatus
	Steps   []models.ExecutionStep
	Context *models.ExecutionContext
}

type Executor struct {
	logger     *slog.Logger
	registry   *registry.Registry
	conditions ConditionEvaluator
	tracer     trace.Tracer
}

func NewExecutor(logger *slog.Logger, registry *registry.Registry, conditions ConditionEvaluator, tracer trace.Tracer) *Executor {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Executor{
		logger:     logger.With("module", "workflow_executor"),
		registry:   registry,
		conditions: conditions,
		tracer:     tracer,
	}
}

// Run executes the workflow from its trigger. condition is the boolean a conditional trigger
// evaluated to when it fired, nil for other triggers. Steps are numbered in final order: every
// level's steps precede the steps of the subtrees below it.
func (e *Executor) Run(ctx context.Context, workflow *models.Workflow, condition *bool) RunResult {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.UserIDKey, workflow.UserID),
	)
	defer span.End()

	triggerNode := workflow.Trigger()
	if triggerNode == nil {
		e.logger.WarnContext(ctx, "Workflow has no trigger node", "workflow_id", workflow.ID)
		otelhelper.SetFailed(span, NoTriggerMessage)

		return RunResult{
			Status: models.ExecutionStatusFailed,
			Steps: []models.ExecutionStep{{
				Step:     1,
				NodeID:   NoTriggerNodeID,
				NodeType: NoTriggerNodeType,
				Status:   models.ExecutionStatusFailed,
				Message:  NoTriggerMessage,
			}},
			Context: models.NewExecutionContext(workflow.UserID, workflow.ID),
		}
	}

	span.SetAttributes(attribute.String(otelhelper.TriggerTypeKey, triggerNode.Type))

	run := BuildContext(workflow, triggerNode, condition)
	walker := &traversal{
		executor: e,
		workflow: workflow,
		run:      run,
		logger:   e.logger.With("workflow_id", workflow.ID),
	}

	steps := walker.walk(ctx, triggerNode, condition, &ancestry{nodeID: triggerNode.ID})
	for i := range steps {
		steps[i].Step = i + 1
	}

	status := models.StatusFromSteps(steps)
	span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(status)))

	if status == models.ExecutionStatusFailed {
		otelhelper.SetFailed(span, "one or more steps failed")
	}

	return RunResult{Status: status, Steps: steps, Context: run}
}

// traversal is the state of one run. A node reached over several paths is visited once per
// path, each time under that path's branch.
type traversal struct {
	executor *Executor
	workflow *models.Workflow
	run      *models.ExecutionContext
	logger   *slog.Logger
}

// ancestry is the chain of nodes from the trigger down to the node being walked. Following an
// edge back into it would loop, so such edges are dropped.
type ancestry struct {
	nodeID string
	parent *ancestry
}

func (a *ancestry) contains(nodeID string) bool {
	for current := a; current != nil; current = current.parent {
		if current.nodeID == nodeID {
			return true
		}
	}

	return false
}

func (a *ancestry) root() bool {
	return a.parent == nil
}

// walk executes the live children of source concurrently, then walks each of them as a new
// source. branch is the nearest enclosing conditional evaluation.
func (t *traversal) walk(ctx context.Context, source *models.Node, branch *bool, path *ancestry) []models.ExecutionStep {
	edges := t.workflow.OutgoingEdges(source.ID)
	if len(edges) == 0 {
		return nil
	}

	if source.Type == models.NodeTypeConditional {
		evaluated, err := t.evaluate(ctx, source, branch, path.root())
		if err != nil {
			t.logger.WarnContext(ctx, "Conditional node evaluation failed", "node_id", source.ID, "error", err)

			return []models.ExecutionStep{{
				NodeID:   source.StepID(),
				NodeType: conditionalNodeType,
				Status:   models.ExecutionStatusFailed,
				Message:  fmt.Sprintf("Condition evaluation failed: %v", err),
			}}
		}

		recordConditional(t.run, source, evaluated)

		edges = ResolveConditionalEdges(t.workflow, edges, evaluated)
		branch = &evaluated
	}

	targets := make([]*models.Node, 0, len(edges))

	for _, edge := range edges {
		node := t.workflow.NodeByID(edge.Target)
		if node == nil {
			t.logger.WarnContext(ctx, "Edge points to an unknown node", "edge_id", edge.ID, "target", edge.Target)

			continue
		}

		if path.contains(node.ID) {
			t.logger.WarnContext(ctx, "Edge closes a cycle, not following it", "edge_id", edge.ID, "target", edge.Target)

			continue
		}

		targets = append(targets, node)
	}

	level := make([]*models.ExecutionStep, len(targets))

	var group errgroup.Group

	for i, node := range targets {
		group.Go(func() error {
			level[i] = t.execute(ctx, node, branch)

			return nil
		})
	}

	_ = group.Wait()

	subtrees := make([][]models.ExecutionStep, len(targets))

	var children errgroup.Group

	for i, node := range targets {
		children.Go(func() error {
			subtrees[i] = t.walk(ctx, node, branch, &ancestry{nodeID: node.ID, parent: path})

			return nil
		})
	}

	_ = children.Wait()

	steps := make([]models.ExecutionStep, 0, len(targets))

	for _, step := range level {
		if step != nil {
			steps = append(steps, *step)
		}
	}

	for _, subtree := range subtrees {
		steps = append(steps, subtree...)
	}

	return steps
}

func (t *traversal) evaluate(ctx context.Context, node *models.Node, branch *bool, root bool) (bool, error) {
	if root && branch != nil {
		return *branch, nil
	}

	if t.executor.conditions == nil {
		return false, fmt.Errorf("no evaluator configured for %s", node.Type)
	}

	return t.executor.conditions.EvaluateNode(ctx, node)
}

// execute runs one node and returns its step, or nil when the node emits none.
func (t *traversal) execute(ctx context.Context, node *models.Node, branch *bool) *models.ExecutionStep {
	logger := t.logger.With("node_id", node.ID, "node_type", node.Type)

	if node.Type == models.NodeTypeConditional {
		return nil
	}

	if ShouldSkipAction(branch, node) {
		logger.DebugContext(ctx, "Skipping node on the inactive branch")
		metrics.StepsTotal.WithLabelValues(node.Type, metrics.StatusSkipped).Inc()

		return nil
	}

	action, err := t.executor.registry.Action(node.Type)
	if err != nil {
		logger.WarnContext(ctx, "No handler for node type", "error", err)

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, t.executor.tracer, "workflow.node",
		attribute.String(otelhelper.WorkflowIDKey, t.workflow.ID),
		attribute.String(otelhelper.NodeIDKey, node.StepID()),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)
	defer span.End()

	started := time.Now()
	result := invoke(ctx, action, node, t.run)

	metrics.NodeDuration.WithLabelValues(node.Type).Observe(time.Since(started).Seconds())

	if result.Skip {
		logger.DebugContext(ctx, "Node skipped by its handler", "reason", result.Message)
		metrics.StepsTotal.WithLabelValues(node.Type, metrics.StatusSkipped).Inc()

		return nil
	}

	status := result.Status
	if status != models.ExecutionStatusSuccess {
		status = models.ExecutionStatusFailed
	}

	metrics.StepsTotal.WithLabelValues(node.Type, string(status)).Inc()
	span.SetAttributes(attribute.String(otelhelper.StepStatusKey, string(status)))

	if status == models.ExecutionStatusFailed {
		otelhelper.SetFailed(span, result.Message)
		logger.WarnContext(ctx, "Node failed", "message", result.Message)
	} else {
		logger.InfoContext(ctx, "Node executed", "message", result.Message)
	}

	return &models.ExecutionStep{
		NodeID:   node.StepID(),
		NodeType: action.Name(),
		Status:   status,
		Message:  result.Message,
	}
}

// invoke turns a handler panic into a failed result.
func invoke(ctx context.Context, action protocol.Action, node *models.Node, run *models.ExecutionContext) (result protocol.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = protocol.Failure(fmt.Sprintf("%v", r))
		}
	}()

	return action.Execute(ctx, node, run)
}
