package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady reports whether the loan store and optional dependencies
// answer within the deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	fail := func(name string, err error) {
		checks[name] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if _, err := s.portfolio.Loans(ctx); err != nil {
		fail("loans", err)
	} else {
		checks["loans"] = "ok"
	}

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			fail(name, err)
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	metrics := []struct {
		name, help, kind string
		value            float64
	}{
		{"http_requests_total", "Total number of HTTP requests", "counter", float64(traceMetrics.TotalRequests)},
		{"http_request_duration_avg_microseconds", "Mean request latency", "gauge", float64(traceMetrics.AverageResponseTime)},
		{"loan_changes_total", "Loans created, updated or deleted through the API", "counter", float64(atomic.LoadInt64(&s.loansChanged))},
		{"projection_cache_hits_total", "Projection responses served from cache", "counter", float64(atomic.LoadInt64(&s.cacheHits))},
		{"projection_cache_misses_total", "Projection responses computed", "counter", float64(atomic.LoadInt64(&s.cacheMisses))},
		{"rate_limit_hits_total", "Total rate limit hits", "counter", float64(rateMetrics.TotalHits)},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", float64(rateMetrics.ClientCount)},
		{"suspicious_requests_total", "Total suspicious requests detected", "counter", float64(securityMetrics.SuspiciousRequests)},
		{"uptime_seconds", "Application uptime in seconds", "gauge", time.Since(s.startedAt).Seconds()},
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].name < metrics[j].name })

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %.0f\n\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}
}
