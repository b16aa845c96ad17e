package lint_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/quantnest/executor/pkg/actions/discord"
	"github.com/quantnest/executor/pkg/lint"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLinter(t *testing.T) *lint.Linter {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	reg := registry.NewRegistry(logger)
	reg.RegisterAction(discord.NewAction(logger, nil))

	linter, err := lint.New(reg)
	require.NoError(t, err)

	return linter
}

func node(id, nodeType, kind string, metadata map[string]any) *models.Node {
	return &models.Node{ID: id, Type: nodeType, Data: models.NodeData{Kind: kind, Metadata: metadata}}
}

func messages(findings []lint.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, finding := range findings {
		out = append(out, string(finding.Severity)+": "+finding.Message)
	}

	return out
}

func TestLint_CleanWorkflow(t *testing.T) {
	t.Parallel()

	wf := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.Node{
			node("t", models.NodeTypeTimer, "trigger", map[string]any{"time": 60}),
			node("d", models.NodeTypeDiscord, "action", map[string]any{"webhookUrl": "https://discord.com/api/webhooks/1/abc"}),
		},
		Edges: []*models.Edge{{ID: "e1", Source: "t", Target: "d"}},
	}

	findings := newLinter(t).Lint(wf)

	assert.Empty(t, findings)
	assert.False(t, lint.HasErrors(findings))
}

func TestLint_SchemaViolations(t *testing.T) {
	t.Parallel()

	wf := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.Node{
			node("t", models.NodeTypeTimer, "trigger", map[string]any{"time": 60}),
			node("d", models.NodeTypeDiscord, "action", nil),
			node("x", "telegram", "action", nil),
		},
	}

	findings := newLinter(t).Lint(wf)

	require.Len(t, findings, 2)
	assert.True(t, lint.HasErrors(findings))
	assert.Equal(t, "d", findings[0].NodeID)
	assert.Equal(t, lint.SeverityError, findings[0].Severity)
	assert.Contains(t, findings[0].Message, "webhookUrl")
	assert.Equal(t, lint.SeverityWarning, findings[1].Severity)
	assert.Contains(t, findings[1].Message, `"telegram"`)
}

func TestLint_GraphProblems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		workflow *models.Workflow
		expected []string
	}{
		{
			name:     "no trigger",
			workflow: &models.Workflow{ID: "wf", Nodes: []*models.Node{}},
			expected: []string{"error: workflow has no trigger node"},
		},
		{
			name: "two triggers",
			workflow: &models.Workflow{ID: "wf", Nodes: []*models.Node{
				node("t1", models.NodeTypeTimer, "trigger", map[string]any{"time": 60}),
				node("t2", models.NodeTypeTimer, "trigger", map[string]any{"time": 60}),
			}},
			expected: []string{"warning: workflow has 2 trigger nodes, only the first one is used"},
		},
		{
			name: "malformed trigger",
			workflow: &models.Workflow{ID: "wf", Nodes: []*models.Node{
				node("t", models.NodeTypePriceTrigger, "trigger", map[string]any{"targetPrice": "high"}),
			}},
		},
		{
			name: "dangling edge",
			workflow: &models.Workflow{
				ID:    "wf",
				Nodes: []*models.Node{node("t", models.NodeTypeTimer, "trigger", map[string]any{"time": 60})},
				Edges: []*models.Edge{{ID: "e1", Source: "t", Target: "gone"}},
			},
			expected: []string{"error: edge e1 ends at unknown node gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			findings := newLinter(t).Lint(tt.workflow)

			if tt.expected == nil {
				require.Len(t, findings, 1)
				assert.Equal(t, lint.SeverityError, findings[0].Severity)

				return
			}

			assert.Equal(t, tt.expected, messages(findings))
		})
	}
}

func TestDeprecatedConditions(t *testing.T) {
	t.Parallel()

	legacy := node("legacy", models.NodeTypeDiscord, "action", map[string]any{"webhookUrl": "https://x.test/hook", "condition": true})
	tagged := node("tagged", models.NodeTypeDiscord, "action", map[string]any{"webhookUrl": "https://x.test/hook", "condition": false})
	plain := node("plain", models.NodeTypeDiscord, "action", map[string]any{"webhookUrl": "https://x.test/hook"})

	wf := &models.Workflow{
		ID: "wf",
		Nodes: []*models.Node{
			node("c", models.NodeTypeConditional, "trigger", map[string]any{"asset": "TCS", "targetPrice": 3500, "condition": "above"}),
			legacy, tagged, plain,
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "c", Target: "legacy"},
			{ID: "e2", Source: "c", Target: "tagged", SourceHandle: models.SourceHandleFalse},
			{ID: "e3", Source: "c", Target: "plain"},
		},
	}

	deprecated := lint.DeprecatedConditions(wf)
	require.Len(t, deprecated, 1)
	assert.Equal(t, "legacy", deprecated[0].ID)

	findings := newLinter(t).Lint(wf)
	require.Len(t, findings, 1)
	assert.Equal(t, lint.SeverityWarning, findings[0].Severity)
	assert.Equal(t, "legacy", findings[0].NodeID)
	assert.Equal(t, `wf/legacy [warning] node-level condition is deprecated, tag the incoming edge with sourceHandle "true" or "false"`, findings[0].String())
}
