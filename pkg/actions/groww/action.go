// Package groww places equity orders on Groww with the access token stored on the node.
package groww

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantnest/executor/pkg/actions/broker"
	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/protocol"
)

const (
	NodeType = "Groww Action"

	ReasonMissingToken = "Groww access token is required"
)

type Action struct {
	logger *slog.Logger
	orders broker.OrderPlacer
	now    func() time.Time
}

func NewAction(logger *slog.Logger, orders broker.OrderPlacer) *Action {
	return &Action{
		logger: logger.With("module", "groww_action"),
		orders: orders,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for the market hours check.
func (a *Action) WithClock(now func() time.Time) *Action {
	a.now = now

	return a
}

func (a *Action) ID() string {
	return models.NodeTypeGroww
}

func (a *Action) Name() string {
	return NodeType
}

func (a *Action) Description() string {
	return "Places a market order on Groww during NSE market hours."
}

func (a *Action) Schema() map[string]any {
	return broker.TradeSchema(map[string]any{
		"accessToken": map[string]any{
			"type":        "string",
			"description": "Groww trade API access token",
			"minLength":   1,
		},
	}, "accessToken")
}

func (a *Action) Execute(ctx context.Context, node *models.Node, run *models.ExecutionContext) protocol.Result {
	logger := a.logger.With("workflow_id", run.WorkflowID(), "node_id", node.StepID())

	meta, err := broker.DecodeTrade(node)
	if err != nil {
		order := broker.Order{Symbol: node.Symbol(), Exchange: "NSE", Side: node.String("type")}
		broker.RecordFailure(run, order, err.Error())

		return protocol.Failure(err.Error())
	}

	status := market.StatusAt(a.now())
	if !status.Open {
		return protocol.Failure(status.ClosedMessage())
	}

	order := broker.OrderFor(meta, meta.AccessToken)

	if order.AccessToken == "" {
		broker.RecordFailure(run, order, ReasonMissingToken)

		return protocol.Failure(ReasonMissingToken)
	}

	orderID, err := a.orders.PlaceOrder(ctx, order)
	if err != nil {
		reason, message := broker.Outcome(order, err)
		logger.WarnContext(ctx, "Groww order failed", "symbol", order.Symbol, "error", err)
		broker.RecordFailure(run, order, reason)

		return protocol.Failure(message)
	}

	logger.InfoContext(ctx, "Groww order placed", "symbol", order.Symbol, "side", order.Side, "order_id", orderID)
	broker.RecordSuccess(run, order)

	return protocol.Success(broker.SuccessMessage(order))
}
