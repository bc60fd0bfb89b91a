package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithComponent_ReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf).WithComponent(ComponentHTTP).WithComponent(ComponentLoan)

	logger.Info("Loan changed")

	out := buf.String()
	if n := strings.Count(out, "component="); n != 1 {
		t.Errorf("component attribute appears %d times, want 1:\n%s", n, out)
	}
	if !strings.Contains(out, "component=loan") {
		t.Errorf("output missing component=loan:\n%s", out)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("FromContext(empty).Component() = %q, want unknown", got)
	}

	logger := Discard().WithComponent(ComponentWorker)
	ctx := NewContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Errorf("FromContext() = %p, want %p", got, logger)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	events := NewStructuredLogger(newBufferLogger(&buf).With(FieldRequestID, "req_1"))
	ctx := context.Background()

	events.LogLoanChanged(ctx, OpCreate, "car", "fixed", 1200.5)
	events.LogProjection(ctx, "monthly", 3, true)
	events.LogError(ctx, "Request failed", errors.New("disk full"), ComponentHTTP, "GET", nil)
	events.LogHTTPEnd(ctx, httptest.NewRequest("GET", "/api/loans?x=1", nil), 503, 20*time.Millisecond, "192.0.2.1")

	out := buf.String()
	for _, want := range []string{
		"loan_id=car", "loan_kind=fixed", "current_balance=1200.5", "operation=create",
		"series=monthly", "loan_count=3", "cache_hit=true",
		"error=\"disk full\"", "component=http",
		"level=ERROR msg=\"HTTP request completed\"", "status_code=503", "client_ip=192.0.2.1",
		"request_id=req_1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
