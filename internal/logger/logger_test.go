package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextHelpers checks that names and fields stored in a context reach the output.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := New(zap.NewAtomicLevelAt(zapcore.DebugLevel), &buf)

	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "deploy")
	ctx = WithKV(ctx, "host", "web-01")

	InfoKV(ctx, "step finished", "step", "wipe")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "deploy")
	assert.Contains(t, out, "step finished")
	assert.Contains(t, out, `"host": "web-01"`)
	assert.Contains(t, out, `"step": "wipe"`)
}

// TestFromContextFallsBackToGlobal ensures a bare context still yields a logger.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	assert.Same(t, Logger(), FromContext(context.Background()))
}

// TestLevelFiltering drops messages below the configured level.
func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(zap.NewAtomicLevelAt(zapcore.WarnLevel), &buf))

	Infof(ctx, "hidden %d", 1)
	Warnf(ctx, "shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")
}
