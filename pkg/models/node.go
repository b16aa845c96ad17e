package models

import (
	"encoding/json"
	"strings"
)

// Node type discriminators as stored by the workflow builder.
const (
	NodeTypeTimer             = "timer"
	NodeTypePriceTrigger      = "price-trigger"
	NodeTypeConditional       = "conditional-trigger"
	NodeTypeZerodha           = "zerodha"
	NodeTypeGroww             = "groww"
	NodeTypeLighter           = "lighter"
	NodeTypeGmail             = "gmail"
	NodeTypeDiscord           = "discord"
	NodeTypeNotionDailyReport = "notion-daily-report"
)

const (
	NodeKindTrigger = "trigger"
	NodeKindAction  = "action"
)

type Node struct {
	// ID is the graph identifier referenced by edges.
	ID string `json:"id" validate:"required"`
	// NodeID is the catalogue identifier recorded in execution steps.
	NodeID   string   `json:"nodeId,omitempty"`
	Type     string   `json:"type"             validate:"required"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
}

type NodeData struct {
	Kind     string         `json:"kind"               validate:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsTrigger reports whether the node kind is trigger, ignoring case.
func (n *Node) IsTrigger() bool {
	return strings.EqualFold(n.Data.Kind, NodeKindTrigger)
}

// IsAction reports whether the node kind is action, ignoring case.
func (n *Node) IsAction() bool {
	return strings.EqualFold(n.Data.Kind, NodeKindAction)
}

// StepID is the identifier written into execution steps for this node.
func (n *Node) StepID() string {
	if n.NodeID != "" {
		return n.NodeID
	}

	return n.ID
}

// Symbol returns the trading symbol from metadata, if any.
func (n *Node) Symbol() string {
	return n.String("symbol")
}

// Condition returns the node-level boolean condition used by the legacy branch gating.
// Non-boolean values (e.g. "above" on price triggers) are reported as absent.
func (n *Node) Condition() (bool, bool) {
	value, ok := n.Data.Metadata["condition"].(bool)

	return value, ok
}

// Number reads a numeric metadata value. JSON-decoded metadata holds float64; graphs built in code may hold ints.
func (n *Node) Number(key string) (float64, bool) {
	switch value := n.Data.Metadata[key].(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}

// String reads a string metadata value, trimmed.
func (n *Node) String(key string) string {
	value, _ := n.Data.Metadata[key].(string)

	return strings.TrimSpace(value)
}
