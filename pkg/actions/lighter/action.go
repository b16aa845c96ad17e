// Package lighter trades perpetuals on the Lighter exchange. No transport ships by default;
// without one every node fails.
package lighter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quantnest/executor/pkg/actions/broker"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/protocol"
)

const (
	NodeType = "Lighter Action"

	MessageFailed = "Lighter execution failed"
)

var ErrNoTransport = errors.New("no Lighter transport configured")

type metadata struct {
	Type        string  `json:"type"                  validate:"required,oneof=buy sell long short"`
	Amount      float64 `json:"amount"                validate:"gt=0"`
	Symbol      string  `json:"symbol"                validate:"required"`
	APIKey      string  `json:"apiKey,omitempty"`
	AccountIdx  int     `json:"accountIndex,omitempty"`
	APIKeyIndex int     `json:"apiKeyIndex,omitempty"`
}

type Action struct {
	logger *slog.Logger
	orders broker.OrderPlacer
}

// NewAction builds the action. orders may be nil.
func NewAction(logger *slog.Logger, orders broker.OrderPlacer) *Action {
	return &Action{
		logger: logger.With("module", "lighter_action"),
		orders: orders,
	}
}

func (a *Action) ID() string {
	return models.NodeTypeLighter
}

func (a *Action) Name() string {
	return NodeType
}

func (a *Action) Description() string {
	return "Places a market order on Lighter."
}

func (a *Action) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":         map[string]any{"type": "string", "enum": []string{"buy", "sell", "long", "short"}},
			"amount":       map[string]any{"type": "number", "exclusiveMinimum": 0},
			"symbol":       map[string]any{"type": "string", "minLength": 1},
			"apiKey":       map[string]any{"type": "string"},
			"accountIndex": map[string]any{"type": "integer", "minimum": 0},
			"apiKeyIndex":  map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"type", "amount", "symbol"},
	}
}

func (a *Action) Execute(ctx context.Context, node *models.Node, run *models.ExecutionContext) protocol.Result {
	logger := a.logger.With("workflow_id", run.WorkflowID(), "node_id", node.StepID())

	meta, err := models.DecodeMetadata[metadata](node.Data.Metadata)
	if err != nil {
		logger.WarnContext(ctx, "Invalid Lighter node", "error", err)

		return protocol.Failure(MessageFailed)
	}

	if a.orders == nil {
		logger.WarnContext(ctx, "Lighter order not placed", "error", ErrNoTransport)

		return protocol.Failure(MessageFailed + ": " + ErrNoTransport.Error())
	}

	order := broker.Order{
		Symbol:   meta.Symbol,
		Quantity: meta.Amount,
		Side:     meta.Type,
		Exchange: "LIGHTER",
		APIKey:   meta.APIKey,
	}

	orderID, err := a.orders.PlaceOrder(ctx, order)
	if err != nil {
		logger.WarnContext(ctx, "Lighter order failed", "symbol", order.Symbol, "error", err)

		return protocol.Failure(MessageFailed)
	}

	logger.InfoContext(ctx, "Lighter order placed", "symbol", order.Symbol, "order_id", orderID)

	return protocol.Success(broker.SuccessMessage(order))
}
