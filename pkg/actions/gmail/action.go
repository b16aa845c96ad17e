// Package gmail emails the run's current event to the node's recipient.
package gmail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/notification"
	"github.com/quantnest/executor/pkg/protocol"
)

const (
	NodeType = "Gmail Action"

	MessageSent   = "Email notification sent"
	MessageFailed = "Failed to send email notification"
)

var (
	ErrNoRecipient = errors.New("recipient email is required")
	ErrNoSender    = errors.New("no email sender configured")
)

type Action struct {
	logger *slog.Logger
	sender Sender
	now    func() time.Time
}

func NewAction(logger *slog.Logger, sender Sender) *Action {
	return &Action{
		logger: logger.With("module", "gmail_action"),
		sender: sender,
		now:    time.Now,
	}
}

func (a *Action) ID() string {
	return models.NodeTypeGmail
}

func (a *Action) Name() string {
	return NodeType
}

func (a *Action) Description() string {
	return "Emails the latest trade or alert of the run to a recipient."
}

func (a *Action) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipientName":  map[string]any{"type": "string"},
			"recipientEmail": map[string]any{"type": "string", "format": "email", "minLength": 3},
			"symbol":         map[string]any{"type": "string"},
			"exchange":       map[string]any{"type": "string"},
			"targetPrice":    map[string]any{"type": "number"},
			"condition":      map[string]any{"type": "boolean"},
		},
		"required": []string{"recipientEmail"},
	}
}

func (a *Action) Execute(ctx context.Context, node *models.Node, run *models.ExecutionContext) protocol.Result {
	logger := a.logger.With("workflow_id", run.WorkflowID(), "node_id", node.StepID())

	err := a.send(ctx, node, run)
	if err != nil {
		logger.WarnContext(ctx, "Email notification failed", "error", err)

		return protocol.Failure(MessageFailed)
	}

	return protocol.Success(MessageSent)
}

func (a *Action) send(ctx context.Context, node *models.Node, run *models.ExecutionContext) error {
	meta, err := models.DecodeMetadata[models.NotificationMetadata](node.Data.Metadata)
	if err != nil {
		return err
	}

	if meta.RecipientEmail == "" {
		return ErrNoRecipient
	}

	if a.sender == nil {
		return ErrNoSender
	}

	eventType, details := notification.EventFor(run.Snapshot(), meta)

	content, err := notification.Render(meta.RecipientName, eventType, details, a.now())
	if err != nil {
		return err
	}

	return a.sender.Send(ctx, meta.RecipientEmail, content.Subject, notification.HTML(content.Message))
}
