package log_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/quantnest/executor/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for input, expected := range tests {
		assert.Equal(t, expected, log.ParseLevel(input), input)
	}
}

func TestSetupWriter(t *testing.T) {
	var buf bytes.Buffer

	logger := log.SetupWriter(&buf, "warn")
	logger.Info("hidden")
	log.WithModule("poller").Warn("visible", "workflow_id", "wf-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "module=poller")
	assert.Contains(t, out, "workflow_id=wf-1")
}
