package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/models"
)

const (
	conditionAbove = "above"
	conditionBelow = "below"
)

// PriceEvaluator fires when any downstream action's symbol crosses the trigger's target price.
type PriceEvaluator struct {
	logger *slog.Logger
	prices market.PriceSource
}

func NewPriceEvaluator(logger *slog.Logger, prices market.PriceSource) *PriceEvaluator {
	return &PriceEvaluator{
		logger: logger.With("module", "price_trigger"),
		prices: prices,
	}
}

// Evaluate looks up each distinct action symbol once. Invalid metadata and unsupported symbols
// are reported as errors and never fire.
func (e *PriceEvaluator) Evaluate(ctx context.Context, workflow *models.Workflow, node *models.Node) (bool, error) {
	meta, err := models.DecodeMetadata[models.PriceTriggerMetadata](node.Data.Metadata)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	marketType := models.ParseMarketType(meta.MarketType)
	symbols := workflow.ActionSymbols()

	if len(symbols) == 0 {
		return false, nil
	}

	var unsupported []error

	for _, symbol := range symbols {
		if !market.IsSupported(marketType, symbol) {
			e.logger.WarnContext(ctx, "Unsupported asset", "workflow_id", workflow.ID, "symbol", symbol, "market", marketType)
			unsupported = append(unsupported, &UnsupportedAssetError{Market: marketType, Symbol: symbol})
		}
	}

	if len(unsupported) > 0 {
		return false, errors.Join(unsupported...)
	}

	prices := make(map[string]float64, len(symbols))

	for _, symbol := range symbols {
		price, err := e.prices.CurrentPrice(ctx, symbol, marketType)
		if err != nil {
			return false, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
		}

		prices[symbol] = price
	}

	for _, symbol := range symbols {
		if crosses(prices[symbol], meta.Condition, *meta.TargetPrice) {
			return true, nil
		}
	}

	return false, nil
}

func crosses(price float64, condition string, target float64) bool {
	switch strings.ToLower(condition) {
	case conditionAbove:
		return price > target
	case conditionBelow:
		return price < target
	default:
		return false
	}
}
