package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelWarn,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseHandler(t *testing.T) {
	h, err := ParseHandler("json")
	require.NoError(t, err)
	assert.Equal(t, JSONHandler, h)

	h, err = ParseHandler("")
	require.NoError(t, err)
	assert.Equal(t, DevHandler, h)

	_, err = ParseHandler("xml")
	assert.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithHandler(JSONHandler), WithLevel(slog.LevelInfo))

	l.Debug("hidden")
	l.Info("session initialized", "tools", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "session initialized", rec["msg"])
	assert.Equal(t, float64(3), rec["tools"])
}

func TestNew_DevHandler(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithLevel(slog.LevelDebug), WithNoColor())

	l.Debug("mcp send", "method", "tools/list")

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "mcp send")
	assert.Contains(t, out, "method=tools/list")
	assert.NotContains(t, out, "\x1b[")
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithHandler(TextHandler), WithLevel(slog.LevelInfo))

	ctx := WithContext(context.Background(), l)
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	// Missing logger falls back to a discarding one
	FromContext(context.Background()).Error("dropped")
}
