package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/findoc_analyzer/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWithWriters_FansOut(t *testing.T) {
	var text, js bytes.Buffer
	logger := NewWithWriters(&text, &js, slog.LevelInfo)

	logger.Info("job finished", "job_id", "Job_1", "outcome", "completed")
	logger.Debug("hidden")

	assert.Contains(t, text.String(), "job_id=Job_1")
	assert.NotContains(t, text.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &entry))
	assert.Equal(t, "job finished", entry["msg"])
	assert.Equal(t, "completed", entry["outcome"])
}

func TestSetup_WritesJSONFile(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	path := filepath.Join(t.TempDir(), "logs", "worker.log")
	logger, cleanup := Setup(config.LogConfig{Level: "info", File: path})

	logger.Info("worker started", "worker", 0)
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"worker started"`)
}

func TestSetup_StderrOnly(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	logger, cleanup := Setup(config.LogConfig{Level: "debug"})
	assert.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.NoError(t, cleanup())
}
