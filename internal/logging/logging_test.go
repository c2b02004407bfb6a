package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/storyblok-devtools/internal/config"
	"github.com/scrypster/storyblok-devtools/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logging.ParseLevel(tt.in))
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "token_present", true)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, true, line["token_present"])
}

func TestNewWithWriter_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(config.LoggingConfig{}, &buf)
	logger.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNewWithWriter_AutoUsesJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(config.LoggingConfig{Format: "auto"}, &buf)
	logger.Info("piped")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "piped", line["msg"])
}
