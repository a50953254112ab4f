package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "info")

	log.Info("catalog refreshed", "countries", 9)
	log.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "catalog refreshed", line["msg"])
	assert.Equal(t, "docbridge", line["service"])
	assert.EqualValues(t, 9, line["countries"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}
