package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(t *testing.T, level slog.Level) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t, slog.LevelDebug)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG msg=dbg a=1",
		"level=INFO msg=inf b=2",
		"level=WARN msg=wrn c=3",
		"level=ERROR msg=err d=4",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_FiltersBelowLevel(t *testing.T) {
	log, buf := newTestLogger(t, slog.LevelWarn)

	log.Info(context.Background(), "dropped")
	assert.Empty(t, buf.String())
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newTestLogger(t, slog.LevelInfo)

	log.With("component", "sync").Info(context.Background(), "hello", "sale_id", "s1")
	assert.Contains(t, buf.String(), "msg=hello component=sync sale_id=s1")
}

func TestContextWith_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t, slog.LevelInfo)

	ctx := ContextWith(context.Background(), "op", "sync")
	ctx = ContextWith(ctx, "task", "push outbox")
	log.Info(ctx, "entry pushed", "id", "e1")

	assert.Contains(t, buf.String(), `msg="entry pushed" op=sync task="push outbox" id=e1`)
}

func TestContextWith_DoesNotLeakToParent(t *testing.T) {
	log, buf := newTestLogger(t, slog.LevelInfo)

	parent := ContextWith(context.Background(), "op", "sync")
	_ = ContextWith(parent, "task", "x")
	log.Info(parent, "m")

	assert.NotContains(t, buf.String(), "task=")
}

func TestSlogLogger_NilContext(t *testing.T) {
	log, buf := newTestLogger(t, slog.LevelInfo)

	log.Info(nil, "ok")
	assert.Contains(t, buf.String(), "msg=ok")
}
