// Package notification renders the subject and body sent to users when a workflow reports an event.
package notification

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/quantnest/executor/pkg/expression"
	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/models"
)

const (
	Brand        = "QuantNest Trading"
	SupportEmail = "support@quantnest.trading"
	DefaultName  = "User"
)

type Content struct {
	Subject string
	Message string
}

type templateData struct {
	Name     string
	Details  models.EventDetails
	Exchange string
	At       string
	Side     string
	Brand    string
	Support  string
	Context  []string
}

var subjects = map[models.EventType]string{
	models.EventBuy:          "Trade Executed: Buy Order Completed",
	models.EventSell:         "Trade Executed: Sell Order Completed",
	models.EventPriceTrigger: "Price Alert: Target Price Reached",
	models.EventTradeFailed:  "Trade Failed: Action Required",
	models.EventNotification: "Workflow Notification",
}

const executedBody = `Dear {{.Name}},

Your {{.Side}} order has been successfully executed on {{.Brand}}.

Trade Details:
• Symbol: {{.Details.Symbol}}
• Quantity: {{number .Details.Quantity}} units
• Exchange: {{.Exchange}}
• Executed At: {{.At}}

Your position has been updated accordingly. You can view your portfolio in the dashboard.
`

const priceBody = `Dear {{.Name}},

Your price alert has been triggered on {{.Brand}}.

Price Alert Details:
• Symbol: {{.Details.Symbol}}
• Target Price: ₹{{price .Details.TargetPrice}}
• Condition: Price went {{.Details.Condition}} target
• Current Time: {{.At}}

Your workflow has been executed as configured. Check your dashboard for execution details.
`

const failedBody = `Dear {{.Name}},

Unfortunately, your {{or .Details.TradeType "trade"}} order could not be executed on {{.Brand}}.

Trade Details:
• Symbol: {{.Details.Symbol}}
• Quantity: {{number .Details.Quantity}} units
• Exchange: {{.Exchange}}
• Trade Type: {{upper .Details.TradeType}}
• Failed At: {{.At}}

Failure Reason:
{{or .Details.FailureReason "Unknown error occurred"}}

Common reasons for trade failures:
• Insufficient funds in your trading account
• API key or access token expired/invalid
• Market hours - Trading is closed
• Invalid trading symbol or quantity
• Broker server connectivity issues
• Rate limits exceeded
• Incorrect exchange or trading permissions

Recommended Actions:
1. Check your account balance and ensure sufficient funds
2. Verify your API credentials are valid and not expired
3. Ensure you're trading during market hours
4. Review your broker account permissions
5. Check the symbol and exchange settings
`

const genericBody = `Dear {{.Name}},

Your workflow on {{.Brand}} has run and reached this notification step.

Details:
{{- if .Details.Symbol}}
• Symbol: {{.Details.Symbol}}
{{- end}}
• Exchange: {{.Exchange}}
{{- if .Details.TargetPrice}}
• Target Price: ₹{{price .Details.TargetPrice}}
{{- end}}
• Time: {{.At}}
`

const footer = `{{if .Context}}
Trigger Context:
{{- range .Context}}
• {{.}}
{{- end}}
{{end}}
If you have any questions or concerns, please reach out to our support team at {{.Support}}.

Best regards,
{{.Brand}} Team`

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"number": func(value float64) string {
		return strconv.FormatFloat(value, 'f', -1, 64)
	},
	"price": func(value *float64) string {
		if value == nil {
			return "-"
		}

		return strconv.FormatFloat(*value, 'f', -1, 64)
	},
}

var bodies = map[models.EventType]*template.Template{
	models.EventBuy:          parse("buy", executedBody),
	models.EventSell:         parse("sell", executedBody),
	models.EventPriceTrigger: parse("price_trigger", priceBody),
	models.EventTradeFailed:  parse("trade_failed", failedBody),
	models.EventNotification: parse("notification", genericBody),
}

func parse(name, body string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(body + footer))
}

// Render builds the notification for an event. Unknown event types use the generic notification.
func Render(name string, eventType models.EventType, details models.EventDetails, now time.Time) (Content, error) {
	body, ok := bodies[eventType]
	if !ok {
		eventType = models.EventNotification
		body = bodies[eventType]
	}

	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}

	exchange := details.Exchange
	if exchange == "" {
		exchange = "NSE"
	}

	data := templateData{
		Name:     name,
		Details:  details,
		Exchange: exchange,
		At:       now.In(market.IST).Format("02 Jan 2006, 15:04:05 IST"),
		Side:     string(eventType),
		Brand:    Brand,
		Support:  SupportEmail,
		Context:  contextLines(details.AIContext),
	}

	var message strings.Builder

	err := body.Execute(&message, data)
	if err != nil {
		return Content{}, fmt.Errorf("failed to render %s notification: %w", eventType, err)
	}

	return Content{Subject: subjects[eventType], Message: message.String()}, nil
}

// HTML converts a rendered message to the minimal HTML used by email bodies.
func HTML(message string) string {
	return strings.ReplaceAll(template.HTMLEscapeString(message), "\n", "<br>")
}

func contextLines(ai *models.AIContext) []string {
	if ai == nil {
		return nil
	}

	lines := []string{fmt.Sprintf("Trigger: %s (%s market)", ai.TriggerType, ai.MarketType)}

	if ai.TimerIntervalSeconds != nil {
		lines = append(lines, fmt.Sprintf("Runs every %d seconds", *ai.TimerIntervalSeconds))
	}

	if ai.Expression != nil {
		lines = append(lines, "Condition: "+expression.Describe(ai.Expression))
	} else if ai.TargetPrice != nil && ai.Condition != "" {
		lines = append(lines, fmt.Sprintf("Condition: price %s %s", ai.Condition, strconv.FormatFloat(*ai.TargetPrice, 'f', -1, 64)))
	}

	if ai.EvaluatedCondition != nil {
		lines = append(lines, fmt.Sprintf("Condition evaluated to %t", *ai.EvaluatedCondition))
	}

	if len(ai.ConnectedSymbols) > 0 {
		lines = append(lines, "Symbols: "+strings.Join(ai.ConnectedSymbols, ", "))
	}

	return lines
}
