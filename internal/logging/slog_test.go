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

func textLogger(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_EachLevelReachesHandler(t *testing.T) {
	log, buf := textLogger(slog.LevelDebug)
	ctx := context.Background()

	log.Debug(ctx, "probe", "service", "credkeeper.Auth")
	log.Info(ctx, "user registered", "user_id", "u1")
	log.Warn(ctx, "notifier failed", "kind", "reset")
	log.Error(ctx, "sweep failed", "table", "refresh_tokens")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "level=DEBUG")
	assert.Contains(t, lines[0], "service=credkeeper.Auth")
	assert.Contains(t, lines[1], `msg="user registered"`)
	assert.Contains(t, lines[1], "user_id=u1")
	assert.Contains(t, lines[2], "level=WARN")
	assert.Contains(t, lines[3], "level=ERROR")
	assert.Contains(t, lines[3], "table=refresh_tokens")
}

func TestSlogLogger_WithIsSticky(t *testing.T) {
	log, buf := textLogger(slog.LevelInfo)

	child := log.With("module", "sweeper")
	child.Info(context.TODO(), "swept", "removed", 3)
	log.Info(context.TODO(), "plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "module=sweeper")
	assert.Contains(t, lines[0], "removed=3")
	assert.NotContains(t, lines[1], "module=")
}

func TestNewJSONLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, "warn")
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown", "user_id", "u1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), "exactly one JSON line expected")
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "WARN", line["level"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNopLogger().With("k", "v").Error(context.Background(), "nothing")
	})
}
