package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAPIURL = "https://api.notion.com"
	APIVersion    = "2025-09-03"
)

var ErrUnexpectedStatus = errors.New("unexpected status code")

// Block is one Notion content block.
type Block map[string]any

func text(content string) map[string]any {
	return map[string]any{"type": "text", "text": map[string]any{"content": content}}
}

func Heading(content string) Block {
	return Block{"object": "block", "type": "heading_2", "heading_2": map[string]any{"rich_text": []any{text(content)}}}
}

func Paragraph(content string) Block {
	return Block{"object": "block", "type": "paragraph", "paragraph": map[string]any{"rich_text": []any{text(content)}}}
}

func Bullet(content string) Block {
	return Block{"object": "block", "type": "bulleted_list_item", "bulleted_list_item": map[string]any{"rich_text": []any{text(content)}}}
}

// Client creates pages through the Notion REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// CreatePage creates a page titled title under parentPageID, or at the workspace root when
// parentPageID is empty, and returns its id.
func (c *Client) CreatePage(ctx context.Context, apiKey, parentPageID, title string, children []Block) (string, error) {
	parent := map[string]any{"workspace": true}
	if id := NormalizeID(parentPageID); id != "" {
		parent = map[string]any{"type": "page_id", "page_id": id}
	}

	body, err := json.Marshal(map[string]any{
		"parent": parent,
		"properties": map[string]any{
			"title": map[string]any{"title": []any{text(title)}},
		},
		"children": children,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode page: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/pages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build page request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("notion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return "", fmt.Errorf("%w %d from notion: %s", ErrUnexpectedStatus, resp.StatusCode, detail)
	}

	var page struct {
		ID string `json:"id"`
	}

	err = json.NewDecoder(resp.Body).Decode(&page)
	if err != nil {
		return "", fmt.Errorf("failed to decode notion page: %w", err)
	}

	if page.ID == "" {
		return "created", nil
	}

	return page.ID, nil
}

// NormalizeID accepts a bare page id or a page URL and returns the id.
func NormalizeID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	segment := value[strings.LastIndex(value, "/")+1:]
	if i := strings.Index(segment, "?"); i >= 0 {
		segment = segment[:i]
	}

	if segment == "" {
		return value
	}

	return segment
}
