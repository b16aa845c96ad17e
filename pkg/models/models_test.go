package models_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/quantnest/executor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rsiExpression = `{
	"type": "group",
	"operator": "AND",
	"conditions": [
		{
			"type": "clause",
			"left": {"type": "indicator", "indicator": {"symbol": "HDFC", "marketType": "Indian", "timeframe": "5m", "indicator": "rsi", "params": {"period": 14}}},
			"operator": "<",
			"right": {"type": "value", "value": 30}
		},
		{
			"type": "group",
			"operator": "or",
			"conditions": [
				{
					"type": "clause",
					"left": {"type": "indicator", "indicator": {"symbol": "HDFC", "marketType": "Indian", "timeframe": "5m", "indicator": "price"}},
					"operator": ">",
					"right": {"type": "value", "value": 1500}
				}
			]
		}
	]
}`

func TestGroup_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var group models.Group

	err := json.Unmarshal([]byte(rsiExpression), &group)
	require.NoError(t, err)

	assert.Equal(t, models.LogicalAnd, group.Operator)
	require.Len(t, group.Conditions, 2)

	clause := group.Conditions[0].Clause
	require.NotNil(t, clause)
	assert.Equal(t, models.ComparatorLess, clause.Operator)
	require.NotNil(t, clause.Left.Indicator)
	assert.Equal(t, "rsi", clause.Left.Indicator.Indicator)
	assert.Equal(t, 14, clause.Left.Indicator.Period())
	require.NotNil(t, clause.Right.Value)
	assert.InDelta(t, 30.0, *clause.Right.Value, 0.0001)

	nested := group.Conditions[1].Group
	require.NotNil(t, nested)
	assert.Equal(t, models.LogicalOr, nested.Operator)
	assert.Equal(t, 0, nested.Conditions[0].Clause.Left.Indicator.Period())
}

func TestGroup_MarshalRoundTrip(t *testing.T) {
	t.Parallel()

	var group models.Group
	require.NoError(t, json.Unmarshal([]byte(rsiExpression), &group))

	encoded, err := json.Marshal(group)
	require.NoError(t, err)

	var decoded models.Group
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, group, decoded)
}

func TestCondition_UnknownType(t *testing.T) {
	t.Parallel()

	var group models.Group

	err := json.Unmarshal([]byte(`{"operator":"AND","conditions":[{"type":"loop"}]}`), &group)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidExpression)
}

func TestIndicatorReference_Key(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ref      models.IndicatorReference
		expected string
	}{
		{
			name:     "default rsi period",
			ref:      models.IndicatorReference{Symbol: "hdfc", MarketType: "Indian", Timeframe: "5m", Indicator: "RSI"},
			expected: "Indian:HDFC:5m:rsi:14",
		},
		{
			name:     "web3 maps to crypto",
			ref:      models.IndicatorReference{Symbol: "BTC", MarketType: "web3", Timeframe: "1h", Indicator: "ema", Params: &models.IndicatorParams{Period: 20}},
			expected: "Crypto:BTC:1h:ema:20",
		},
		{
			name:     "price ignores period",
			ref:      models.IndicatorReference{Symbol: "TCS", Timeframe: "1m", Indicator: "price", Params: &models.IndicatorParams{Period: 9}},
			expected: "Indian:TCS:1m:price:0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.ref.Key())
		})
	}
}

func TestIndicatorReference_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, models.IndicatorReference{Symbol: "TCS", Timeframe: "15m", Indicator: "sma"}.Validate())
	assert.ErrorIs(t, models.IndicatorReference{Symbol: "TCS", Timeframe: "4h", Indicator: "sma"}.Validate(), models.ErrInvalidExpression)
	assert.ErrorIs(t, models.IndicatorReference{Symbol: "TCS", Timeframe: "1m", Indicator: "macd"}.Validate(), models.ErrInvalidExpression)
	assert.ErrorIs(t, models.IndicatorReference{Timeframe: "1m", Indicator: "price"}.Validate(), models.ErrInvalidExpression)
}

func TestWorkflow_Navigation(t *testing.T) {
	t.Parallel()

	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.Node{
			{ID: "a1", Type: models.NodeTypeZerodha, Data: models.NodeData{Kind: "action", Metadata: map[string]any{"symbol": "TCS"}}},
			{ID: "t1", Type: models.NodeTypeTimer, Data: models.NodeData{Kind: "TRIGGER", Metadata: map[string]any{"time": 60}}},
			{ID: "a2", Type: models.NodeTypeGroww, Data: models.NodeData{Kind: "ACTION", Metadata: map[string]any{"symbol": "INFY"}}},
			{ID: "a3", Type: models.NodeTypeGmail, Data: models.NodeData{Kind: "action", Metadata: map[string]any{"symbol": "TCS"}}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "t1", Target: "a1"},
			{ID: "e2", Source: "a1", Target: "a3"},
			{ID: "e3", Source: "t1", Target: "a2"},
		},
	}

	trigger := workflow.Trigger()
	require.NotNil(t, trigger)
	assert.Equal(t, "t1", trigger.ID)

	outgoing := workflow.OutgoingEdges("t1")
	require.Len(t, outgoing, 2)
	assert.Equal(t, "e1", outgoing[0].ID)
	assert.Equal(t, "e3", outgoing[1].ID)

	assert.Equal(t, []string{"TCS", "INFY"}, workflow.ActionSymbols())
	assert.Nil(t, workflow.NodeByID("missing"))
	assert.Empty(t, workflow.OutgoingEdges("a3"))
}

func TestNode_Condition(t *testing.T) {
	t.Parallel()

	withBool := &models.Node{Data: models.NodeData{Metadata: map[string]any{"condition": false}}}
	value, ok := withBool.Condition()
	assert.True(t, ok)
	assert.False(t, value)

	withString := &models.Node{Data: models.NodeData{Metadata: map[string]any{"condition": "above"}}}
	_, ok = withString.Condition()
	assert.False(t, ok)

	assert.Equal(t, "n-1", (&models.Node{ID: "graph-1", NodeID: "n-1"}).StepID())
	assert.Equal(t, "graph-1", (&models.Node{ID: "graph-1"}).StepID())
}

func TestDecodeMetadata(t *testing.T) {
	t.Parallel()

	t.Run("valid price trigger", func(t *testing.T) {
		t.Parallel()

		meta, err := models.DecodeMetadata[models.PriceTriggerMetadata](map[string]any{
			"condition":   "above",
			"targetPrice": 3500.5,
		})
		require.NoError(t, err)
		assert.Equal(t, "above", meta.Condition)
		assert.InDelta(t, 3500.5, *meta.TargetPrice, 0.0001)
	})

	t.Run("non numeric target", func(t *testing.T) {
		t.Parallel()

		_, err := models.DecodeMetadata[models.PriceTriggerMetadata](map[string]any{
			"condition":   "above",
			"targetPrice": "3500",
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidMetadata))
	})

	t.Run("missing condition", func(t *testing.T) {
		t.Parallel()

		_, err := models.DecodeMetadata[models.PriceTriggerMetadata](map[string]any{"targetPrice": 10})
		assert.ErrorIs(t, err, models.ErrInvalidMetadata)
	})

	t.Run("conditional with expression", func(t *testing.T) {
		t.Parallel()

		var expression map[string]any
		require.NoError(t, json.Unmarshal([]byte(rsiExpression), &expression))

		meta, err := models.DecodeMetadata[models.ConditionalMetadata](map[string]any{
			"marketType":        "Indian",
			"timeWindowMinutes": 30,
			"startTime":         "2026-10-16T09:00:00Z",
			"expression":        expression,
		})
		require.NoError(t, err)
		require.NotNil(t, meta.Expression)
		require.NotNil(t, meta.StartTime)
		assert.Len(t, meta.Expression.Conditions, 2)
	})

	t.Run("trade defaults exchange", func(t *testing.T) {
		t.Parallel()

		meta, err := models.DecodeMetadata[models.TradeMetadata](map[string]any{"type": "buy", "qty": 2, "symbol": "TCS", "condition": true})
		require.NoError(t, err)
		assert.Equal(t, "NSE", meta.ExchangeOrDefault())
	})
}

func TestStatusFromSteps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, models.ExecutionStatusSuccess, models.StatusFromSteps(nil))
	assert.Equal(t, models.ExecutionStatusSuccess, models.StatusFromSteps([]models.ExecutionStep{{Status: models.ExecutionStatusSuccess}}))
	assert.Equal(t, models.ExecutionStatusFailed, models.StatusFromSteps([]models.ExecutionStep{
		{Status: models.ExecutionStatusSuccess},
		{Status: models.ExecutionStatusFailed},
	}))
}

func TestExecutionContext_RecordEventKeepsAIContext(t *testing.T) {
	t.Parallel()

	rc := models.NewExecutionContext("user-1", "wf-1")
	rc.SetAIContext(&models.AIContext{TriggerType: models.NodeTypeTimer, MarketType: models.MarketIndian})

	rc.RecordEvent(models.EventBuy, models.EventDetails{Symbol: "TCS", Quantity: 1, Exchange: "NSE"})

	snapshot := rc.Snapshot()
	assert.Equal(t, models.EventBuy, snapshot.EventType)
	require.NotNil(t, snapshot.Details)
	assert.Equal(t, "TCS", snapshot.Details.Symbol)
	require.NotNil(t, snapshot.Details.AIContext)
	assert.Equal(t, models.NodeTypeTimer, snapshot.Details.AIContext.TriggerType)
}

func TestExecutionContext_ConcurrentWritersLastWins(t *testing.T) {
	t.Parallel()

	rc := models.NewExecutionContext("user-1", "wf-1")
	symbols := []string{"TCS", "INFY", "HDFC", "CDSL", "RELIANCE"}

	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(2)

		go func() {
			defer wg.Done()
			rc.RecordEvent(models.EventSell, models.EventDetails{Symbol: symbol, Quantity: 3})
		}()

		go func() {
			defer wg.Done()
			_ = rc.Snapshot()
		}()
	}

	wg.Wait()

	snapshot := rc.Snapshot()
	assert.Equal(t, models.EventSell, snapshot.EventType)
	require.NotNil(t, snapshot.Details)
	assert.Contains(t, symbols, snapshot.Details.Symbol)
	assert.InDelta(t, 3.0, snapshot.Details.Quantity, 0.0001)
}
