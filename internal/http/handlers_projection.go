package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"shakkin/internal/core"
	"shakkin/internal/projection"
	"shakkin/internal/services"
)

// Projection responses depend only on the loan snapshot and on the date
// used for labels and payoff dates, so both form the cache key.
const (
	seriesSummary = "summary"
	seriesMonthly = "monthly"
	seriesYearly  = "yearly"
	seriesBalance = "balance"
)

const (
	defaultSnapshotLimit = 12
	maxSnapshotLimit     = 120
)

type projectionBuilder func(ctx context.Context, list []core.Loan, now time.Time) (any, error)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.serveProjection(w, r, seriesSummary, dateLayout, func(ctx context.Context, list []core.Loan, now time.Time) (any, error) {
		sum, err := services.Summarize(ctx, list, now)
		if err != nil {
			return nil, err
		}
		return toSummaryResponse(sum), nil
	})
}

func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	s.serveProjection(w, r, seriesMonthly, "2006-01", func(_ context.Context, list []core.Loan, now time.Time) (any, error) {
		return toMonthlyResponse(projection.StackedMonthlySeries(list), now), nil
	})
}

func (s *Server) handleYearlySeries(w http.ResponseWriter, r *http.Request) {
	s.serveProjection(w, r, seriesYearly, "2006-01", func(_ context.Context, list []core.Loan, now time.Time) (any, error) {
		return toYearlyResponse(projection.StackedYearlySeries(list), now), nil
	})
}

func (s *Server) handleBalanceSeries(w http.ResponseWriter, r *http.Request) {
	s.serveProjection(w, r, seriesBalance, "2006-01", func(_ context.Context, list []core.Loan, now time.Time) (any, error) {
		return toBalanceResponse(projection.BalanceSeries(list), now), nil
	})
}

// handleSnapshots lists recorded portfolio snapshots, newest first. The
// optional limit query parameter defaults to defaultSnapshotLimit and is
// capped at maxSnapshotLimit.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := defaultSnapshotLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		limit = min(n, maxSnapshotLimit)
	}

	snaps, err := s.snapshots.RecentSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, r, fmt.Errorf("list snapshots: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotsResponse(snaps))
}

// serveProjection loads a fresh loan snapshot and serves the projection
// built from it, consulting the response cache first.
func (s *Server) serveProjection(w http.ResponseWriter, r *http.Request, series, asOfLayout string, build projectionBuilder) {
	ctx := r.Context()
	list, err := s.portfolio.Loans(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := s.now()
	key := projectionCacheKey(series, now.Format(asOfLayout), list)

	if s.cache != nil {
		if body, ok := s.cache.Get(ctx, key); ok {
			s.recordCache(true)
			s.events.LogProjection(ctx, series, len(list), true)
			w.Header().Set("X-Cache", "HIT")
			writeRawJSON(w, http.StatusOK, body)
			return
		}
	}
	s.recordCache(false)

	v, err := build(ctx, list, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, fmt.Errorf("encode %s projection: %w", series, err))
		return
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, body)
	}

	s.events.LogProjection(ctx, series, len(list), false)
	w.Header().Set("X-Cache", "MISS")
	writeRawJSON(w, http.StatusOK, body)
}

// projectionCacheKey fingerprints the inputs of a projection: the series
// name, the as-of date and every loan field in list order.
func projectionCacheKey(series, asOf string, list []core.Loan) string {
	h := sha256.New()
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, l := range list {
		fmt.Fprintf(h, "%q|%q|%s|%s|%s|%s|%s\n",
			l.ID, l.Title, l.Kind, f(l.Principal), f(l.CurrentBalance), f(l.InterestRate), f(l.MonthlyPayment))
	}
	return "projection:" + series + ":" + asOf + ":" + hex.EncodeToString(h.Sum(nil))
}
