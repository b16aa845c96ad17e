// Package discord posts the run's current event to a Discord channel webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/notification"
	"github.com/quantnest/executor/pkg/protocol"
)

const (
	NodeType = "Discord Action"

	MessageSent   = "Discord notification sent"
	MessageFailed = "Failed to send Discord notification"

	Username = "QuantNest Trading Bot"

	// Discord rejects message content longer than 2000 characters.
	maxContentLength = 2000
)

var (
	ErrNoWebhook        = errors.New("webhook url is required")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

type payload struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

type Action struct {
	logger *slog.Logger
	client *http.Client
	now    func() time.Time
}

func NewAction(logger *slog.Logger, client *http.Client) *Action {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Action{
		logger: logger.With("module", "discord_action"),
		client: client,
		now:    time.Now,
	}
}

func (a *Action) ID() string {
	return models.NodeTypeDiscord
}

func (a *Action) Name() string {
	return NodeType
}

func (a *Action) Description() string {
	return "Posts the latest trade or alert of the run to a Discord webhook."
}

func (a *Action) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"webhookUrl":    map[string]any{"type": "string", "format": "uri", "minLength": 1},
			"recipientName": map[string]any{"type": "string"},
			"symbol":        map[string]any{"type": "string"},
			"exchange":      map[string]any{"type": "string"},
			"targetPrice":   map[string]any{"type": "number"},
			"condition":     map[string]any{"type": "boolean"},
		},
		"required": []string{"webhookUrl"},
	}
}

func (a *Action) Execute(ctx context.Context, node *models.Node, run *models.ExecutionContext) protocol.Result {
	logger := a.logger.With("workflow_id", run.WorkflowID(), "node_id", node.StepID())

	err := a.post(ctx, node, run)
	if err != nil {
		logger.WarnContext(ctx, "Discord notification failed", "error", err)

		return protocol.Failure(MessageFailed)
	}

	return protocol.Success(MessageSent)
}

func (a *Action) post(ctx context.Context, node *models.Node, run *models.ExecutionContext) error {
	meta, err := models.DecodeMetadata[models.NotificationMetadata](node.Data.Metadata)
	if err != nil {
		return err
	}

	if meta.WebhookURL == "" {
		return ErrNoWebhook
	}

	eventType, details := notification.EventFor(run.Snapshot(), meta)

	content, err := notification.Render(meta.RecipientName, eventType, details, a.now())
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload{
		Content:  truncate("**"+content.Subject+"**\n\n"+content.Message, maxContentLength),
		Username: Username,
	})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, meta.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, detail)
	}

	return nil
}

func truncate(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}

	return string(runes[:limit-1]) + "…"
}
