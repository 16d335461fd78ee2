package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestAdapter_WithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewAdapter(NewWithWriter(&buf, "info"))

	adapter.With("message_id", "m-1").Warn("rejected", "kind", "Unauthorized")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rejected", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "m-1", entry["message_id"])
	assert.Equal(t, "Unauthorized", entry["kind"])
}

func TestAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewAdapter(NewWithWriter(&buf, "error"))

	adapter.Info("dropped")
	assert.Empty(t, buf.String())

	adapter.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}
