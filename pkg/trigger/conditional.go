package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantnest/executor/pkg/expression"
	"github.com/quantnest/executor/pkg/indicator"
	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/models"
)

// ConditionalEvaluator evaluates conditional nodes against the indicator engine's latest snapshot.
// Nodes without an expression fall back to a single price comparison on their asset.
type ConditionalEvaluator struct {
	logger *slog.Logger
	engine indicator.Engine
	prices market.PriceSource
	now    func() time.Time
}

func NewConditionalEvaluator(logger *slog.Logger, engine indicator.Engine, prices market.PriceSource) *ConditionalEvaluator {
	return &ConditionalEvaluator{
		logger: logger.With("module", "conditional_trigger"),
		engine: engine,
		prices: prices,
		now:    time.Now,
	}
}

// WithClock replaces the evaluator's clock.
func (e *ConditionalEvaluator) WithClock(now func() time.Time) *ConditionalEvaluator {
	e.now = now

	return e
}

// Evaluate is the per-tick trigger check: outside the time window it never fires, inside it fires
// iff the condition holds. Evaluation errors mean the trigger does not fire this tick.
func (e *ConditionalEvaluator) Evaluate(ctx context.Context, node *models.Node) (Result, error) {
	meta, err := decodeConditional(node)
	if err != nil {
		return Result{}, err
	}

	if !WithinWindow(meta, e.now()) {
		return Result{}, nil
	}

	ok, err := e.evaluate(ctx, meta)
	if err != nil {
		return Result{}, err
	}

	return Result{Fire: ok, Condition: &ok}, nil
}

// EvaluateNode evaluates a conditional node reached mid-graph. The time window does not apply.
func (e *ConditionalEvaluator) EvaluateNode(ctx context.Context, node *models.Node) (bool, error) {
	meta, err := decodeConditional(node)
	if err != nil {
		return false, err
	}

	return e.evaluate(ctx, meta)
}

func (e *ConditionalEvaluator) evaluate(ctx context.Context, meta *models.ConditionalMetadata) (bool, error) {
	if meta.Expression != nil {
		refs := expression.References(meta.Expression)

		values, err := e.engine.SnapshotForReferences(ctx, refs)
		if err != nil {
			return false, fmt.Errorf("failed to load indicator snapshot: %w", err)
		}

		return expression.Evaluate(meta.Expression, expression.NewSnapshot(values))
	}

	if meta.Asset == "" || meta.TargetPrice == nil || meta.Condition == "" {
		return false, fmt.Errorf("%w: conditional node needs an expression or asset, targetPrice and condition", ErrInvalidMetadata)
	}

	marketType := models.ParseMarketType(meta.MarketType)

	price, err := e.prices.CurrentPrice(ctx, meta.Asset, marketType)
	if err != nil {
		return false, fmt.Errorf("failed to fetch price for %s: %w", meta.Asset, err)
	}

	return crosses(price, string(meta.Condition), *meta.TargetPrice), nil
}

// WithinWindow reports whether now falls in [startTime, startTime+timeWindowMinutes].
// A node without both fields is not window-gated.
func WithinWindow(meta *models.ConditionalMetadata, now time.Time) bool {
	if meta.StartTime == nil || meta.TimeWindowMinutes == nil {
		return true
	}

	start := *meta.StartTime
	end := start.Add(time.Duration(*meta.TimeWindowMinutes * float64(time.Minute)))

	return !now.Before(start) && !now.After(end)
}

// ConditionalReferences returns the indicator references of a conditional node, or nil for
// nodes without an expression or with unreadable metadata.
func ConditionalReferences(node *models.Node) []models.IndicatorReference {
	meta, err := decodeConditional(node)
	if err != nil || meta.Expression == nil {
		return nil
	}

	return expression.References(meta.Expression)
}

func decodeConditional(node *models.Node) (*models.ConditionalMetadata, error) {
	meta, err := models.DecodeMetadata[models.ConditionalMetadata](node.Data.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	return meta, nil
}
