package workflow_test

import (
	"testing"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContext_Timer(t *testing.T) {
	t.Parallel()

	trigger := &models.Node{ID: "t", Type: models.NodeTypeTimer, Data: models.NodeData{Kind: "trigger", Metadata: map[string]any{"time": 60}}}
	wf := &models.Workflow{
		ID:     "wf-1",
		UserID: "user-1",
		Nodes: []*models.Node{
			trigger,
			{ID: "a", Type: models.NodeTypeZerodha, Data: models.NodeData{Kind: "action", Metadata: map[string]any{"symbol": "TCS"}}},
			{ID: "b", Type: models.NodeTypeGroww, Data: models.NodeData{Kind: "ACTION", Metadata: map[string]any{"symbol": "INFY"}}},
		},
	}

	run := workflow.BuildContext(wf, trigger, nil)
	snapshot := run.Snapshot()

	assert.Equal(t, "user-1", snapshot.UserID)
	assert.Equal(t, "wf-1", snapshot.WorkflowID)
	assert.Empty(t, snapshot.EventType)
	require.NotNil(t, snapshot.Details)
	assert.Equal(t, "TCS", snapshot.Details.Symbol)

	ai := snapshot.Details.AIContext
	require.NotNil(t, ai)
	assert.Equal(t, models.NodeTypeTimer, ai.TriggerType)
	assert.Equal(t, models.MarketIndian, ai.MarketType)
	assert.Equal(t, []string{"TCS", "INFY"}, ai.ConnectedSymbols)
	require.NotNil(t, ai.TimerIntervalSeconds)
	assert.Equal(t, 60, *ai.TimerIntervalSeconds)
	assert.Nil(t, ai.EvaluatedCondition)
}

func TestBuildContext_PriceTrigger(t *testing.T) {
	t.Parallel()

	trigger := &models.Node{ID: "t", Type: models.NodeTypePriceTrigger, Data: models.NodeData{Kind: "trigger", Metadata: map[string]any{
		"asset": "BTC", "marketType": "web3", "targetPrice": 65000.0, "condition": "above",
	}}}
	wf := &models.Workflow{ID: "wf-2", Nodes: []*models.Node{trigger}}

	snapshot := workflow.BuildContext(wf, trigger, nil).Snapshot()

	assert.Equal(t, models.EventPriceTrigger, snapshot.EventType)
	require.NotNil(t, snapshot.Details)
	assert.Equal(t, "BTC", snapshot.Details.Symbol)
	assert.Equal(t, "above", snapshot.Details.Condition)
	require.NotNil(t, snapshot.Details.TargetPrice)
	assert.InDelta(t, 65000.0, *snapshot.Details.TargetPrice, 0)
	require.NotNil(t, snapshot.Details.AIContext)
	assert.Equal(t, models.MarketCrypto, snapshot.Details.AIContext.MarketType)
}

func TestBuildContext_Conditional(t *testing.T) {
	t.Parallel()

	trigger := &models.Node{ID: "t", Type: models.NodeTypeConditional, Data: models.NodeData{Kind: "trigger", Metadata: map[string]any{
		"marketType": "Crypto",
		"expression": map[string]any{"type": "group", "operator": "OR", "conditions": []any{}},
	}}}
	wf := &models.Workflow{ID: "wf-3", Nodes: []*models.Node{trigger}}

	ai := workflow.BuildContext(wf, trigger, boolPtr(true)).AIContext()

	require.NotNil(t, ai)
	require.NotNil(t, ai.Expression)
	assert.Equal(t, models.LogicalOr, ai.Expression.Operator)
	require.NotNil(t, ai.EvaluatedCondition)
	assert.True(t, *ai.EvaluatedCondition)
}
