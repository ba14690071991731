package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	log "log/slog"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_AddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)})

	ctx := context.WithValue(context.Background(), TraceIDKey, "abc")
	l.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc", rec[TraceIDKey])
}

func TestRemoteFilterHandler_DropsUntraced(t *testing.T) {
	var local, remote bytes.Buffer
	h := &ContextHandler{NewTeeHandler(
		log.NewJSONHandler(&local, nil),
		NewRemoteFilterHandler(log.NewJSONHandler(&remote, nil), TraceIDKey, "session_id"),
	)}
	l := log.New(h)

	l.Info("background")
	assert.NotEmpty(t, local.String())
	assert.Empty(t, remote.String())

	l.InfoContext(WithTraceID(context.Background(), "job"), "traced")
	assert.Contains(t, remote.String(), `"trace_id":"job-`)
}

func TestRemoteFilterHandler_MatchesBoundSessionID(t *testing.T) {
	var remote bytes.Buffer
	l := log.New(NewRemoteFilterHandler(log.NewJSONHandler(&remote, nil), TraceIDKey, "session_id"))

	l.With("session_id", "").Info("empty id")
	assert.Empty(t, remote.String())

	l.With("session_id", "s1").WithGroup("ws").Info("bound")
	assert.Contains(t, remote.String(), `"session_id":"s1"`)
}

type failingHandler struct {
	log.Handler
}

func (failingHandler) Handle(context.Context, log.Record) error {
	return errors.New("sink down")
}

func TestTeeHandler_KeepsWritingAfterSinkFailure(t *testing.T) {
	var after bytes.Buffer
	tee := NewTeeHandler(
		failingHandler{log.NewJSONHandler(io.Discard, nil)},
		log.NewJSONHandler(&after, nil),
	)

	err := tee.Handle(context.Background(), log.NewRecord(time.Now(), log.LevelInfo, "hello", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Contains(t, after.String(), `"msg":"hello"`)
}

func TestTeeHandler_EnabledIfAnySinkIs(t *testing.T) {
	var debug bytes.Buffer
	tee := NewTeeHandler(
		log.NewJSONHandler(io.Discard, &log.HandlerOptions{Level: log.LevelWarn}),
		log.NewJSONHandler(&debug, &log.HandlerOptions{Level: log.LevelDebug}),
	)
	assert.True(t, tee.Enabled(context.Background(), log.LevelDebug))

	log.New(tee).Debug("detail")
	assert.Contains(t, debug.String(), `"msg":"detail"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, log.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, log.LevelInfo, ParseLevel("nonsense"))
}
