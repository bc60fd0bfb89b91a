package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"shakkin/internal/cache"
	"shakkin/internal/loans"
	applog "shakkin/internal/log"
	"shakkin/internal/middleware/ratelimit"
	"shakkin/internal/middleware/security"
	"shakkin/internal/middleware/trace"
	"shakkin/internal/services"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Deps are the collaborators the server needs. Cache, Snapshots and
// ReadinessChecks are optional.
type Deps struct {
	Loans     *services.LoanService
	Portfolio *services.PortfolioService
	Snapshots loans.SnapshotReader
	Cache     cache.Cache[[]byte]
	Logger    *applog.Logger

	// ReadinessChecks are probed by /readyz in addition to listing loans.
	ReadinessChecks map[string]func(context.Context) error
}

type Server struct {
	http.Server

	loans     *services.LoanService
	portfolio *services.PortfolioService
	snapshots loans.SnapshotReader
	cache     cache.Cache[[]byte]
	checks    map[string]func(context.Context) error
	logger    *applog.Logger
	events    *applog.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	now       func() time.Time
	startedAt time.Time

	cacheHits    int64
	cacheMisses  int64
	loansChanged int64

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Call Shutdown to stop it and its background goroutines.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		loans:     deps.Loans,
		portfolio: deps.Portfolio,
		snapshots: deps.Snapshots,
		cache:     deps.Cache,
		checks:    deps.ReadinessChecks,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
		limiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:  security.NewDetector(),
		now:       time.Now,
		startedAt: time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/loans", s.handleListLoans)
	mux.HandleFunc("POST /api/loans", s.handleCreateLoan)
	mux.HandleFunc("GET /api/loans/{id}", s.handleGetLoan)
	mux.HandleFunc("PATCH /api/loans/{id}", s.handleUpdateLoan)
	mux.HandleFunc("DELETE /api/loans/{id}", s.handleDeleteLoan)
	mux.HandleFunc("GET /api/titles", s.handlePreviousTitles)

	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates/{id}/loans", s.handleCreateFromTemplate)

	mux.HandleFunc("GET /api/projection/summary", s.handleSummary)
	mux.HandleFunc("GET /api/projection/monthly", s.handleMonthlySeries)
	mux.HandleFunc("GET /api/projection/yearly", s.handleYearlySeries)
	mux.HandleFunc("GET /api/projection/balance", s.handleBalanceSeries)
	if s.snapshots != nil {
		mux.HandleFunc("GET /api/projection/snapshots", s.handleSnapshots)
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP)(h)
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) recordCache(hit bool) {
	if hit {
		atomic.AddInt64(&s.cacheHits, 1)
	} else {
		atomic.AddInt64(&s.cacheMisses, 1)
	}
}
