// Package models provides core domain models and data structures for trading workflow execution.
package models

import (
	"time"
)

// Workflow is a user-authored graph with a single trigger node and any number of downstream actions.
// The engine only reads workflows.
type Workflow struct {
	ID        string    `json:"id"         validate:"required"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Nodes     []*Node   `json:"nodes"      validate:"dive"`
	Edges     []*Edge   `json:"edges"      validate:"dive"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge connects two nodes by their graph ID. SourceHandle tags the positive
// ("true") or negative ("false") branch out of a conditional node.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"                 validate:"required"`
	Target       string `json:"target"                 validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

const (
	SourceHandleTrue  = "true"
	SourceHandleFalse = "false"
)

// Trigger returns the first node whose kind is trigger, or nil.
func (w *Workflow) Trigger() *Node {
	for _, node := range w.Nodes {
		if node != nil && node.IsTrigger() {
			return node
		}
	}

	return nil
}

// NodeByID looks a node up by its graph ID.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node != nil && node.ID == id {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving source, in workflow order.
func (w *Workflow) OutgoingEdges(source string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range w.Edges {
		if edge != nil && edge.Source == source {
			edges = append(edges, edge)
		}
	}

	return edges
}

// ActionSymbols returns the distinct symbols referenced by action nodes, in first-seen order.
func (w *Workflow) ActionSymbols() []string {
	seen := make(map[string]struct{})
	symbols := make([]string, 0)

	for _, node := range w.Nodes {
		if node == nil || !node.IsAction() {
			continue
		}

		symbol := node.Symbol()
		if symbol == "" {
			continue
		}

		if _, ok := seen[symbol]; ok {
			continue
		}

		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	return symbols
}
