package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetupConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn := setup(&buf, "warn", "")
	defer closeFn()
	log.Info("hidden")
	log.Warn("shown", "input", "orig.csv")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "input=orig.csv")
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	log := slog.New(h).With("run_id", "r1")
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	log.Debug("detail")
	log.Error("boom")
	assert.Equal(t, 2, strings.Count(a.String(), "run_id=r1"))
	assert.Equal(t, 1, strings.Count(b.String(), "run_id=r1"))
	assert.NotContains(t, b.String(), "detail")
}
