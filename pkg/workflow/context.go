package workflow

import (
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/trigger"
)

// BuildContext creates the run context from the trigger node. The primary symbol is the
// trigger's own asset, else the first symbol of a downstream action. Price triggers start the
// run with a price_trigger event so notifiers downstream can describe the crossing.
func BuildContext(workflow *models.Workflow, triggerNode *models.Node, condition *bool) *models.ExecutionContext {
	run := models.NewExecutionContext(workflow.UserID, workflow.ID)

	connected := workflow.ActionSymbols()
	asset := triggerNode.String("asset")

	symbol := asset
	if symbol == "" && len(connected) > 0 {
		symbol = connected[0]
	}

	aiContext := &models.AIContext{
		TriggerType:        triggerNode.Type,
		MarketType:         models.ParseMarketType(triggerNode.String("marketType")),
		Symbol:             symbol,
		ConnectedSymbols:   connected,
		TargetPrice:        numberPtr(triggerNode, "targetPrice"),
		Condition:          triggerNode.String("condition"),
		EvaluatedCondition: condition,
	}

	switch triggerNode.Type {
	case models.NodeTypeTimer:
		if interval, err := trigger.TimerInterval(triggerNode); err == nil {
			aiContext.TimerIntervalSeconds = &interval
		}
	case models.NodeTypeConditional:
		aiContext.Expression = conditionalExpression(triggerNode)
	case models.NodeTypePriceTrigger:
		run.RecordEvent(models.EventPriceTrigger, models.EventDetails{
			Symbol:      symbol,
			TargetPrice: aiContext.TargetPrice,
			Condition:   aiContext.Condition,
			AIContext:   aiContext,
		})

		return run
	}

	run.SetDetails(models.EventDetails{
		Symbol:    symbol,
		AIContext: aiContext,
	})

	return run
}

// recordConditional refreshes the diagnostic context after a conditional node was evaluated.
func recordConditional(run *models.ExecutionContext, node *models.Node, evaluated bool) {
	previous := run.AIContext()

	aiContext := &models.AIContext{
		TriggerType:        models.NodeTypeConditional,
		MarketType:         models.ParseMarketType(node.String("marketType")),
		Symbol:             node.String("asset"),
		TargetPrice:        numberPtr(node, "targetPrice"),
		Condition:          node.String("condition"),
		Expression:         conditionalExpression(node),
		EvaluatedCondition: &evaluated,
	}

	if previous != nil {
		aiContext.ConnectedSymbols = previous.ConnectedSymbols
		aiContext.TimerIntervalSeconds = previous.TimerIntervalSeconds

		if aiContext.Symbol == "" {
			aiContext.Symbol = previous.Symbol
		}
	}

	run.SetAIContext(aiContext)
}

func conditionalExpression(node *models.Node) *models.Group {
	meta, err := models.DecodeMetadata[models.ConditionalMetadata](node.Data.Metadata)
	if err != nil {
		return nil
	}

	return meta.Expression
}

func numberPtr(node *models.Node, key string) *float64 {
	value, ok := node.Number(key)
	if !ok {
		return nil
	}

	return &value
}
