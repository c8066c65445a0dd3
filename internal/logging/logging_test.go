package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("escrow created", "sequence", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "escrow created", rec["msg"])
	assert.Equal(t, float64(7), rec["sequence"])
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Same(t, logger, FromContext(ctx, nil))

	L(ctx, nil).Info("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	fallback := Discard()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.Equal(t, "", RequestID(context.Background()))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.log")
	logger := New("info", "text", path)
	logger.Info("written")
	assert.FileExists(t, path)
}
