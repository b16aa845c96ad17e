// Package zerodha places equity orders on Zerodha using the workflow's daily access token.
package zerodha

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantnest/executor/pkg/actions/broker"
	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/protocol"
	"github.com/quantnest/executor/pkg/tokens"
)

const (
	NodeType = "Zerodha Action"

	MessageTokenUnavailable = "Workflow paused: Access token not available. Please provide your Zerodha access token."
)

// TokenSource is the part of the token store the action needs.
type TokenSource interface {
	Status(ctx context.Context, userID, workflowID string) (tokens.Status, error)
	AccessToken(ctx context.Context, userID, workflowID string) (string, error)
}

type Action struct {
	logger *slog.Logger
	orders broker.OrderPlacer
	tokens TokenSource
	now    func() time.Time
}

func NewAction(logger *slog.Logger, orders broker.OrderPlacer, tokens TokenSource) *Action {
	return &Action{
		logger: logger.With("module", "zerodha_action"),
		orders: orders,
		tokens: tokens,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for the market hours check.
func (a *Action) WithClock(now func() time.Time) *Action {
	a.now = now

	return a
}

func (a *Action) ID() string {
	return models.NodeTypeZerodha
}

func (a *Action) Name() string {
	return NodeType
}

func (a *Action) Description() string {
	return "Places a market order on Zerodha Kite during NSE market hours."
}

func (a *Action) Schema() map[string]any {
	return broker.TradeSchema(map[string]any{
		"apiKey": map[string]any{
			"type":        "string",
			"description": "Kite Connect API key",
			"minLength":   1,
		},
	}, "apiKey")
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

	tokenStatus, err := a.tokens.Status(ctx, run.UserID(), run.WorkflowID())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check token status", "error", err)

		return protocol.Failure("Workflow paused: " + tokens.MessageStatusError + ": " + err.Error())
	}

	if !tokenStatus.Valid {
		message := "Workflow paused: " + tokenStatus.Message
		if tokenStatus.RequestID != "" {
			message += " (Request ID: " + tokenStatus.RequestID + ")"
		}

		return protocol.Failure(message)
	}

	accessToken, err := a.tokens.AccessToken(ctx, run.UserID(), run.WorkflowID())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read access token", "error", err)
	}

	if accessToken == "" {
		return protocol.Failure(MessageTokenUnavailable)
	}

	order := broker.OrderFor(meta, accessToken)

	orderID, err := a.orders.PlaceOrder(ctx, order)
	if err != nil {
		reason, message := broker.Outcome(order, err)
		logger.WarnContext(ctx, "Zerodha order failed", "symbol", order.Symbol, "error", err)
		broker.RecordFailure(run, order, reason)

		return protocol.Failure(message)
	}

	logger.InfoContext(ctx, "Zerodha order placed", "symbol", order.Symbol, "side", order.Side, "order_id", orderID)
	broker.RecordSuccess(run, order)

	return protocol.Success(broker.SuccessMessage(order))
}
