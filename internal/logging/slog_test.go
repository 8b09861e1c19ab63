package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug, // so Debug is emitted too
	})
	l := slog.New(h)
	return NewSlogLogger(l), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(l *SlogLogger, ctx context.Context)
		want  []string
	}{
		{"DEBUG", func(l *SlogLogger, ctx context.Context) { l.Debug(ctx, "tree rebuilt", "map", 3) }, []string{"msg=\"tree rebuilt\"", "map=3"}},
		{"INFO", func(l *SlogLogger, ctx context.Context) { l.Info(ctx, "snapshot stored", "key", "maps/3.json") }, []string{"msg=\"snapshot stored\"", "key=maps/3.json"}},
		{"WARN", func(l *SlogLogger, ctx context.Context) { l.Warn(ctx, "count refresh failed", "component", 9) }, []string{"msg=\"count refresh failed\"", "component=9"}},
		{"ERROR", func(l *SlogLogger, ctx context.Context) {
			l.Error(ctx, "publish propagation failed", "ref", "/api/maps/3/")
		}, []string{"msg=\"publish propagation failed\"", "ref=/api/maps/3/"}},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			log, buf := newTestLogger(t)
			tc.log(log, context.Background())

			out := buf.String()
			for _, s := range append(tc.want, "level="+tc.level) {
				if !strings.Contains(out, s) {
					t.Fatalf("expected %q in output:\n%s", s, out)
				}
			}
			if strings.Contains(out, "request_id=") {
				t.Fatalf("unexpected request_id on bare context:\n%s", out)
			}
		})
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log2 := log.With("module", "catalog", "map", "12")
	log2.Info(ctx, "hello", "k", "v")

	out := buf.String()
	wantSubs := []string{
		"level=INFO",
		"msg=hello",
		"module=catalog",
		"map=12",
		"k=v",
	}
	for _, s := range wantSubs {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output, got:\n%s", s, out)
		}
	}
}

func TestSlogLogger_AppendsRequestIDFromContext(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := WithRequestID(context.Background(), "b0c6a6f2")

	log.Warn(ctx, "count refresh failed", "component", 5)

	out := buf.String()
	for _, s := range []string{"level=WARN", "request_id=b0c6a6f2", "component=5"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output, got:\n%s", s, out)
		}
	}
	if RequestID(context.Background()) != "" {
		t.Fatalf("expected empty request id on bare context")
	}
}
