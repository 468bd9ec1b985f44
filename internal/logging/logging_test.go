package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Info("hello", "component", "router")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "hello", decoded["msg"])
	assert.Equal(t, "router", decoded["component"])
}

func TestNew_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Info("authenticating", "token", "super-secret-value")

	assert.Contains(t, buf.String(), redactedPlaceholder)
	assert.NotContains(t, buf.String(), "super-secret-value")
}

func TestNew_RedactsBearerInAttributeValue(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Info("received header", "raw", "Bearer abc123XYZtoken")

	assert.NotContains(t, buf.String(), "abc123XYZtoken")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})
	scoped := WithComponent(logger, "discovery")
	scoped.Info("scanning")

	assert.Contains(t, buf.String(), `"component":"discovery"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestDiscard_EmitsNothing(t *testing.T) {
	logger := Discard()
	logger.Info("should not panic or write anywhere")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestBuffer_RecentReturnsInOrder(t *testing.T) {
	buf := NewBuffer(3)
	handler := NewTeeHandler(slog.NewTextHandler(bytesDiscard{}, nil), buf)
	logger := slog.New(handler)

	logger.Info("one")
	logger.Info("two")
	logger.Info("three")
	logger.Info("four")

	recent := buf.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "two", recent[0].Message)
	assert.Equal(t, "three", recent[1].Message)
	assert.Equal(t, "four", recent[2].Message)
}

type bytesDiscard struct{}

func (bytesDiscard) Write(p []byte) (int, error) { return len(p), nil }
