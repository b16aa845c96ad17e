package trigger_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  map[string]int
	err    error
}

func newFakePrices(prices map[string]float64) *fakePrices {
	return &fakePrices{prices: prices, calls: make(map[string]int)}
}

func (f *fakePrices) CurrentPrice(_ context.Context, symbol string, _ models.MarketType) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[symbol]++
	if f.err != nil {
		return 0, f.err
	}

	return f.prices[symbol], nil
}

type fakeEngine struct {
	values []models.IndicatorValue
	err    error
}

func (f *fakeEngine) RegisterReferences([]models.IndicatorReference) {}

func (f *fakeEngine) SetReferences([]models.IndicatorReference) {}

func (f *fakeEngine) RefreshSubscribedSymbols(context.Context) error { return nil }

func (f *fakeEngine) SnapshotForReferences(context.Context, []models.IndicatorReference) ([]models.IndicatorValue, error) {
	return f.values, f.err
}

func action(id, nodeType, symbol string) *models.Node {
	return &models.Node{ID: id, Type: nodeType, Data: models.NodeData{Kind: "action", Metadata: map[string]any{"symbol": symbol}}}
}

func TestTimerDue(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	interval := 60

	assert.True(t, trigger.TimerDue(nil, interval, last), "never run fires")
	assert.False(t, trigger.TimerDue(&last, interval, last.Add(59*time.Second+999*time.Millisecond)))
	assert.True(t, trigger.TimerDue(&last, interval, last.Add(60*time.Second)))
	assert.True(t, trigger.TimerDue(&last, interval, last.Add(time.Hour)))
}

func TestTimerDue_Monotonic(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	boundary := last.Add(90 * time.Second)

	for offset := -5 * time.Second; offset <= 5*time.Second; offset += 250 * time.Millisecond {
		now := boundary.Add(offset)
		assert.Equal(t, !now.Before(boundary), trigger.TimerDue(&last, 90, now), "offset %s", offset)
	}
}

func TestTimerInterval(t *testing.T) {
	t.Parallel()

	interval, err := trigger.TimerInterval(&models.Node{Data: models.NodeData{Metadata: map[string]any{"time": 300}}})
	require.NoError(t, err)
	assert.Equal(t, 300, interval)

	_, err = trigger.TimerInterval(&models.Node{Data: models.NodeData{Metadata: map[string]any{}}})
	assert.ErrorIs(t, err, trigger.ErrInvalidMetadata)
}

func priceWorkflow(meta map[string]any, actions ...*models.Node) (*models.Workflow, *models.Node) {
	node := &models.Node{ID: "t1", Type: models.NodeTypePriceTrigger, Data: models.NodeData{Kind: "trigger", Metadata: meta}}

	return &models.Workflow{ID: "wf-price", Nodes: append([]*models.Node{node}, actions...)}, node
}

func TestPriceEvaluator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		meta     map[string]any
		prices   map[string]float64
		expected bool
		err      error
	}{
		{
			name:     "above crosses",
			meta:     map[string]any{"condition": "above", "targetPrice": 3500},
			prices:   map[string]float64{"TCS": 3501, "INFY": 1400},
			expected: true,
		},
		{
			name:     "above at target does not cross",
			meta:     map[string]any{"condition": "above", "targetPrice": 3500},
			prices:   map[string]float64{"TCS": 3500, "INFY": 1400},
			expected: false,
		},
		{
			name:     "below crosses on any symbol",
			meta:     map[string]any{"condition": "below", "targetPrice": 1500},
			prices:   map[string]float64{"TCS": 3600, "INFY": 1400},
			expected: true,
		},
		{
			name: "missing condition",
			meta: map[string]any{"targetPrice": 1500},
			err:  trigger.ErrInvalidMetadata,
		},
		{
			name: "non numeric target",
			meta: map[string]any{"condition": "below", "targetPrice": "1500"},
			err:  trigger.ErrInvalidMetadata,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prices := newFakePrices(tt.prices)
			evaluator := trigger.NewPriceEvaluator(slog.Default(), prices)
			workflow, node := priceWorkflow(tt.meta,
				action("a1", models.NodeTypeZerodha, "TCS"),
				action("a2", models.NodeTypeGmail, "TCS"),
				action("a3", models.NodeTypeGroww, "INFY"),
			)

			fire, err := evaluator.Evaluate(t.Context(), workflow, node)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.False(t, fire)
				assert.Empty(t, prices.calls)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, fire)
			assert.Equal(t, 1, prices.calls["TCS"], "one lookup per distinct symbol")
			assert.Equal(t, 1, prices.calls["INFY"])
		})
	}
}

func TestPriceEvaluator_UnsupportedAssets(t *testing.T) {
	t.Parallel()

	prices := newFakePrices(map[string]float64{"TCS": 5000})
	evaluator := trigger.NewPriceEvaluator(slog.Default(), prices)
	workflow, node := priceWorkflow(map[string]any{"condition": "above", "targetPrice": 1},
		action("a1", models.NodeTypeZerodha, "TCS"),
		action("a2", models.NodeTypeZerodha, "WIPRO"),
		action("a3", models.NodeTypeZerodha, "ADANI"),
	)

	fire, err := evaluator.Evaluate(t.Context(), workflow, node)
	require.ErrorIs(t, err, trigger.ErrUnsupportedAsset)
	assert.False(t, fire)
	assert.Contains(t, err.Error(), "WIPRO")
	assert.Contains(t, err.Error(), "ADANI")
	assert.Empty(t, prices.calls)
}

func TestPriceEvaluator_NoActions(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewPriceEvaluator(slog.Default(), newFakePrices(nil))
	workflow, node := priceWorkflow(map[string]any{"condition": "above", "targetPrice": 1})

	fire, err := evaluator.Evaluate(t.Context(), workflow, node)
	require.NoError(t, err)
	assert.False(t, fire)
}

func TestPriceEvaluator_PriceError(t *testing.T) {
	t.Parallel()

	prices := newFakePrices(nil)
	prices.err = errors.New("timeout")
	evaluator := trigger.NewPriceEvaluator(slog.Default(), prices)
	workflow, node := priceWorkflow(map[string]any{"condition": "above", "targetPrice": 1},
		action("a1", models.NodeTypeZerodha, "TCS"),
	)

	fire, err := evaluator.Evaluate(t.Context(), workflow, node)
	require.Error(t, err)
	assert.False(t, fire)
}

func rsiNode(meta map[string]any) *models.Node {
	base := map[string]any{
		"marketType": "Indian",
		"expression": map[string]any{
			"type":     "group",
			"operator": "AND",
			"conditions": []any{
				map[string]any{
					"type": "clause",
					"left": map[string]any{"type": "indicator", "indicator": map[string]any{
						"symbol": "HDFC", "marketType": "Indian", "timeframe": "5m", "indicator": "rsi", "params": map[string]any{"period": 14},
					}},
					"operator": "<",
					"right":    map[string]any{"type": "value", "value": 30},
				},
			},
		},
	}

	for key, value := range meta {
		base[key] = value
	}

	return &models.Node{ID: "c1", Type: models.NodeTypeConditional, Data: models.NodeData{Kind: "trigger", Metadata: base}}
}

func rsiValue(value float64) []models.IndicatorValue {
	return []models.IndicatorValue{{
		Reference: models.IndicatorReference{Symbol: "HDFC", MarketType: "Indian", Timeframe: "5m", Indicator: "rsi", Params: &models.IndicatorParams{Period: 14}},
		Value:     value,
	}}
}

func TestConditionalEvaluator_RSINotMet(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewConditionalEvaluator(slog.Default(), &fakeEngine{values: rsiValue(45)}, newFakePrices(nil))

	result, err := evaluator.Evaluate(t.Context(), rsiNode(nil))
	require.NoError(t, err)
	assert.False(t, result.Fire)
	require.NotNil(t, result.Condition)
	assert.False(t, *result.Condition)
}

func TestConditionalEvaluator_RSIMet(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewConditionalEvaluator(slog.Default(), &fakeEngine{values: rsiValue(25)}, newFakePrices(nil))

	result, err := evaluator.Evaluate(t.Context(), rsiNode(nil))
	require.NoError(t, err)
	assert.True(t, result.Fire)
	require.NotNil(t, result.Condition)
	assert.True(t, *result.Condition)
}

func TestConditionalEvaluator_InsufficientData(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewConditionalEvaluator(slog.Default(), &fakeEngine{}, newFakePrices(nil))

	result, err := evaluator.Evaluate(t.Context(), rsiNode(nil))
	require.Error(t, err)
	assert.False(t, result.Fire)
}

func TestConditionalEvaluator_TimeWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 10, 16, 4, 0, 0, 0, time.UTC)
	node := rsiNode(map[string]any{"startTime": start.Format(time.RFC3339), "timeWindowMinutes": 30})

	tests := []struct {
		name string
		now  time.Time
		fire bool
	}{
		{name: "before window", now: start.Add(-time.Second), fire: false},
		{name: "window start", now: start, fire: true},
		{name: "window end inclusive", now: start.Add(30 * time.Minute), fire: true},
		{name: "after window", now: start.Add(30*time.Minute + time.Second), fire: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			evaluator := trigger.NewConditionalEvaluator(slog.Default(), &fakeEngine{values: rsiValue(10)}, newFakePrices(nil)).
				WithClock(func() time.Time { return tt.now })

			result, err := evaluator.Evaluate(t.Context(), node)
			require.NoError(t, err)
			assert.Equal(t, tt.fire, result.Fire)
		})
	}
}

func TestConditionalEvaluator_EvaluateNodeIgnoresWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	node := rsiNode(map[string]any{"startTime": start.Format(time.RFC3339), "timeWindowMinutes": 1})
	evaluator := trigger.NewConditionalEvaluator(slog.Default(), &fakeEngine{values: rsiValue(10)}, newFakePrices(nil))

	ok, err := evaluator.EvaluateNode(t.Context(), node)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConditionalEvaluator_LegacyPriceComparison(t *testing.T) {
	t.Parallel()

	prices := newFakePrices(map[string]float64{"BTC": 70000})
	evaluator := trigger.NewConditionalEvaluator(slog.Default(), &fakeEngine{}, prices)
	node := &models.Node{ID: "c1", Type: models.NodeTypeConditional, Data: models.NodeData{Kind: "trigger", Metadata: map[string]any{
		"marketType": "Crypto", "asset": "BTC", "targetPrice": 65000, "condition": "above",
	}}}

	result, err := evaluator.Evaluate(t.Context(), node)
	require.NoError(t, err)
	assert.True(t, result.Fire)

	empty := &models.Node{ID: "c2", Type: models.NodeTypeConditional, Data: models.NodeData{Kind: "action", Metadata: map[string]any{"condition": true}}}
	_, err = evaluator.EvaluateNode(t.Context(), empty)
	require.ErrorIs(t, err, trigger.ErrInvalidMetadata)
}

func TestConditionalReferences(t *testing.T) {
	t.Parallel()

	refs := trigger.ConditionalReferences(rsiNode(nil))
	require.Len(t, refs, 1)
	assert.Equal(t, "Indian:HDFC:5m:rsi:14", refs[0].Key())

	assert.Nil(t, trigger.ConditionalReferences(&models.Node{Data: models.NodeData{Metadata: map[string]any{"asset": "TCS"}}}))
}
