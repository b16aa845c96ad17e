// Package notion writes a once-a-day summary of a workflow's runs to a Notion page after the
// Indian market closes.
package notion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/protocol"
)

const (
	NodeType = "Notion Daily Report"

	// lookback covers any run whose IST day is today.
	lookback = 48 * time.Hour

	maxListedFailures = 10

	MessageNoWorkflowID = "Workflow ID is required to generate daily report"
	MessageNoUserID     = "User ID is required to generate daily report"
	MessageNoAPIKey     = "Missing Notion API key"
	MessageFailed       = "Failed to create Notion report"
)

var tradeNodeTypes = map[string]struct{}{
	"Zerodha Action": {},
	"Groww Action":   {},
	"Lighter Action": {},
}

// ExecutionLister is the persistence query the report reads.
type ExecutionLister interface {
	ExecutionsByWorkflow(ctx context.Context, workflowID string, since time.Time) ([]*models.Execution, error)
}

type PageCreator interface {
	CreatePage(ctx context.Context, apiKey, parentPageID, title string, children []Block) (string, error)
}

type Action struct {
	logger     *slog.Logger
	executions ExecutionLister
	pages      PageCreator
	now        func() time.Time
}

func NewAction(logger *slog.Logger, executions ExecutionLister, pages PageCreator) *Action {
	return &Action{
		logger:     logger.With("module", "notion_action"),
		executions: executions,
		pages:      pages,
		now:        time.Now,
	}
}

func (a *Action) WithClock(now func() time.Time) *Action {
	a.now = now

	return a
}

func (a *Action) ID() string {
	return models.NodeTypeNotionDailyReport
}

func (a *Action) Name() string {
	return NodeType
}

func (a *Action) Description() string {
	return "Creates a daily Notion page summarising the workflow's runs, once per day after market close."
}

func (a *Action) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"notionApiKey": map[string]any{"type": "string", "minLength": 1},
			"parentPageId": map[string]any{"type": "string", "description": "Page id or URL; the workspace root when empty"},
			"condition":    map[string]any{"type": "boolean"},
		},
		"required": []string{"notionApiKey"},
	}
}

func (a *Action) Execute(ctx context.Context, node *models.Node, run *models.ExecutionContext) protocol.Result {
	logger := a.logger.With("workflow_id", run.WorkflowID(), "node_id", node.StepID())

	if run.WorkflowID() == "" {
		return protocol.Failure(MessageNoWorkflowID)
	}

	if run.UserID() == "" {
		return protocol.Failure(MessageNoUserID)
	}

	now := a.now()

	if !market.AfterClose(now) {
		return protocol.Skipped("report window opens at market close")
	}

	executions, err := a.executions.ExecutionsByWorkflow(ctx, run.WorkflowID(), now.Add(-lookback))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load executions for report", "error", err)

		return protocol.Failure(MessageFailed)
	}

	today := market.DayKey(now)

	if ReportedOn(executions, node.StepID(), today) {
		return protocol.Skipped("report already created today")
	}

	meta, err := models.DecodeMetadata[models.ReportMetadata](node.Data.Metadata)
	if err != nil {
		return protocol.Failure(MessageNoAPIKey)
	}

	blocks := ReportBlocks(Summarize(executions, today))
	title := "Daily Report - " + now.In(market.IST).Format("02 Jan 2006")

	pageID, err := a.pages.CreatePage(ctx, meta.NotionAPIKey, meta.ParentPageID, title, blocks)
	if err != nil {
		logger.WarnContext(ctx, "Failed to create Notion page", "error", err)

		return protocol.Failure(err.Error())
	}

	logger.InfoContext(ctx, "Notion report created", "page_id", pageID)

	return protocol.Success(fmt.Sprintf("Notion report created (%s)", pageID))
}

// ReportedOn reports whether a run on day already has a finished report step for nodeID.
// A failed attempt counts: the report is tried at most once a day.
func ReportedOn(executions []*models.Execution, nodeID, day string) bool {
	for _, execution := range executions {
		if market.DayKey(execution.StartTime) != day {
			continue
		}

		for _, step := range execution.Steps {
			if step.NodeID == nodeID && step.NodeType == NodeType &&
				(step.Status == models.ExecutionStatusSuccess || step.Status == models.ExecutionStatusFailed) {
				return true
			}
		}
	}

	return false
}

// Summary counts one day of runs.
type Summary struct {
	Day          string
	Runs         int
	Succeeded    int
	Failed       int
	InProgress   int
	Trades       int
	FailedTrades int
	Failures     []string
}

func Summarize(executions []*models.Execution, day string) Summary {
	summary := Summary{Day: day}

	for _, execution := range executions {
		if market.DayKey(execution.StartTime) != day {
			continue
		}

		summary.Runs++

		switch execution.Status {
		case models.ExecutionStatusSuccess:
			summary.Succeeded++
		case models.ExecutionStatusFailed:
			summary.Failed++
		case models.ExecutionStatusInProgress:
			summary.InProgress++
		}

		for _, step := range execution.Steps {
			if _, ok := tradeNodeTypes[step.NodeType]; ok {
				if step.Status == models.ExecutionStatusSuccess {
					summary.Trades++
				} else {
					summary.FailedTrades++
				}
			}

			if step.Status == models.ExecutionStatusFailed && len(summary.Failures) < maxListedFailures {
				summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %s", step.NodeType, step.Message))
			}
		}
	}

	return summary
}

func ReportBlocks(summary Summary) []Block {
	completion := 0
	if total := summary.Trades + summary.FailedTrades; total > 0 {
		completion = summary.Trades * 100 / total
	}

	blocks := []Block{
		Heading("Run summary"),
		Paragraph(fmt.Sprintf("Runs on %s: %d (%d succeeded, %d failed, %d in progress).",
			summary.Day, summary.Runs, summary.Succeeded, summary.Failed, summary.InProgress)),
		Heading("Trade performance snapshot"),
		Paragraph(fmt.Sprintf("Order completion: %d%% (%d/%d).",
			completion, summary.Trades, summary.Trades+summary.FailedTrades)),
		Heading("Failures"),
	}

	if len(summary.Failures) == 0 {
		return append(blocks, Paragraph("No failed steps today."))
	}

	for _, failure := range summary.Failures {
		blocks = append(blocks, Bullet(failure))
	}

	return blocks
}
