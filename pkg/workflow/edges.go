package workflow

import (
	"github.com/quantnest/executor/pkg/models"
)

// ResolveConditionalEdges returns the outgoing edges of a conditional node that are live for
// the evaluated boolean, preserving their order.
func ResolveConditionalEdges(workflow *models.Workflow, outgoing []*models.Edge, evaluated bool) []*models.Edge {
	live := make([]*models.Edge, 0, len(outgoing))

	for _, edge := range outgoing {
		if EdgeLive(edge, workflow.NodeByID(edge.Target), evaluated) {
			live = append(live, edge)
		}
	}

	return live
}

// EdgeLive decides a single edge: an explicit "true"/"false" handle must match the evaluated
// boolean; otherwise a boolean condition on the target node must match; otherwise the edge is live.
func EdgeLive(edge *models.Edge, target *models.Node, evaluated bool) bool {
	switch edge.SourceHandle {
	case models.SourceHandleTrue:
		return evaluated
	case models.SourceHandleFalse:
		return !evaluated
	}

	if target != nil {
		if condition, ok := target.Condition(); ok {
			return condition == evaluated
		}
	}

	return true
}

// ShouldSkipAction reports whether a node's own boolean condition disagrees with the nearest
// enclosing conditional evaluation. Either side being undefined never skips.
func ShouldSkipAction(branch *bool, node *models.Node) bool {
	if branch == nil {
		return false
	}

	condition, ok := node.Condition()
	if !ok {
		return false
	}

	return condition != *branch
}
