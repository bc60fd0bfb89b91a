package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "shakkin/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})

	var seenID string
	var seenLogger *applog.Logger
	m := NewMiddleware(logger, func(*http.Request) string { return "198.51.100.1" })
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		seenLogger = applog.FromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/loans", nil))

	if !strings.HasPrefix(seenID, "req_") {
		t.Errorf("request ID = %q, want req_ prefix", seenID)
	}
	if got := rr.Header().Get(RequestIDHeader); got != seenID {
		t.Errorf("%s header = %q, want %q", RequestIDHeader, got, seenID)
	}
	if seenLogger.Component() != applog.ComponentTrace {
		t.Errorf("context logger component = %q, want %q", seenLogger.Component(), applog.ComponentTrace)
	}

	out := buf.String()
	for _, want := range []string{"HTTP request completed", "status_code=201", "client_ip=198.51.100.1", "request_id=" + seenID} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestMiddleware_InboundRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "valid id kept", inbound: "abc-123", keep: true},
		{name: "invalid id replaced", inbound: "bad id\n", keep: false},
		{name: "too long replaced", inbound: strings.Repeat("a", 65), keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMiddleware(applog.Discard(), nil)
			h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(RequestIDHeader, tt.inbound)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			got := rr.Header().Get(RequestIDHeader)
			if (got == tt.inbound) != tt.keep {
				t.Errorf("request ID = %q, inbound %q, keep %v", got, tt.inbound, tt.keep)
			}
		})
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	m := NewMiddleware(applog.Discard(), nil)
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Errorf("TotalRequests = %d, want 3", got)
	}
}
