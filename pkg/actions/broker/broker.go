// Package broker holds what the order-placing actions share: the order contract, the
// run-context bookkeeping of a trade outcome and the common metadata schema.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quantnest/executor/pkg/models"
)

// ErrOrderRejected marks a well-formed broker response that refused the order.
var ErrOrderRejected = errors.New("order rejected")

const RejectedReason = "Trade execution failed. Please check your broker account and credentials."

type Order struct {
	Symbol      string
	Quantity    float64
	Side        string
	Exchange    string
	APIKey      string
	AccessToken string
}

// OrderPlacer submits a market order and returns the broker's order id.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order Order) (string, error)
}

func DecodeTrade(node *models.Node) (*models.TradeMetadata, error) {
	return models.DecodeMetadata[models.TradeMetadata](node.Data.Metadata)
}

func OrderFor(meta *models.TradeMetadata, accessToken string) Order {
	return Order{
		Symbol:      meta.Symbol,
		Quantity:    meta.Qty,
		Side:        strings.ToLower(meta.Type),
		Exchange:    meta.ExchangeOrDefault(),
		APIKey:      meta.APIKey,
		AccessToken: accessToken,
	}
}

// RecordSuccess makes the executed trade the run's current event.
func RecordSuccess(run *models.ExecutionContext, order Order) {
	run.RecordEvent(models.EventType(order.Side), models.EventDetails{
		Symbol:   order.Symbol,
		Quantity: order.Quantity,
		Exchange: order.Exchange,
	})
}

// RecordFailure makes the failed trade the run's current event.
func RecordFailure(run *models.ExecutionContext, order Order, reason string) {
	run.RecordEvent(models.EventTradeFailed, models.EventDetails{
		Symbol:        order.Symbol,
		Quantity:      order.Quantity,
		Exchange:      order.Exchange,
		TradeType:     order.Side,
		FailureReason: reason,
	})
}

// Outcome maps a PlaceOrder error to the recorded failure reason and the step message.
// A rejection gets the generic wording; transport and decoding errors are reported as they are.
func Outcome(order Order, err error) (string, string) {
	if errors.Is(err, ErrOrderRejected) {
		return RejectedReason, FailureMessage(order)
	}

	return err.Error(), err.Error()
}

func SuccessMessage(order Order) string {
	return fmt.Sprintf("%s order executed for %s", strings.ToUpper(order.Side), order.Symbol)
}

func FailureMessage(order Order) string {
	return "Trade execution failed for " + order.Symbol
}

// TradeSchema is the metadata schema shared by the trade actions. extra adds broker specific properties.
func TradeSchema(extra map[string]any, required ...string) map[string]any {
	properties := map[string]any{
		"type": map[string]any{
			"type":        "string",
			"description": "Order side",
			"enum":        []string{"buy", "sell"},
		},
		"qty": map[string]any{
			"type":             "number",
			"description":      "Number of units to trade",
			"exclusiveMinimum": 0,
		},
		"symbol": map[string]any{
			"type":        "string",
			"description": "Trading symbol, e.g. TCS",
			"minLength":   1,
		},
		"exchange": map[string]any{
			"type":        "string",
			"description": "Exchange the order is routed to",
			"default":     "NSE",
			"enum":        []string{"NSE", "BSE"},
		},
		"condition": map[string]any{
			"type":        "boolean",
			"description": "Deprecated branch selector; prefer a sourceHandle on the incoming edge",
		},
	}

	for key, value := range extra {
		properties[key] = value
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   append([]string{"type", "qty", "symbol"}, required...),
	}
}
