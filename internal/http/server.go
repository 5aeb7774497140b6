package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"scadenze/internal/core"
	applog "scadenze/internal/log"
	"scadenze/internal/middleware/ratelimit"
	"scadenze/internal/middleware/security"
	"scadenze/internal/middleware/trace"
	"scadenze/internal/services"
)

// Services are the collaborators the API is served from. Postings and
// Ready are optional.
type Services struct {
	Rules    *services.RuleService
	Schedule *services.ScheduleService
	Postings *services.PostingService
	Ready    func(context.Context) error
}

// Options tune the middleware chain.
type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
	DefaultWindowDays  int
}

type Server struct {
	http.Server

	rules    *services.RuleService
	schedule *services.ScheduleService
	postings *services.PostingService
	ready    func(context.Context) error

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	records  *applog.StructuredLogger
	logger   *applog.Logger

	windowDays int
	today      func() core.Date

	shutdownOnce sync.Once
}

// NewServer wires the API routes behind security headers, probe blocking,
// request tracing and a per-client limit on writes.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.DefaultWindowDays <= 0 {
		opts.DefaultWindowDays = 30
	}

	s := &Server{
		rules:      svc.Rules,
		schedule:   svc.Schedule,
		postings:   svc.Postings,
		ready:      svc.Ready,
		limiter:    ratelimit.NewLimiter(ratelimit.PerMinute(opts.RateLimitPerMinute)),
		detector:   security.NewDetector(),
		records:    applog.NewStructuredLogger(logger),
		logger:     logger,
		windowDays: opts.DefaultWindowDays,
		today:      core.Today,
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/rules", s.handleListRules)
	mux.HandleFunc("POST /api/rules", s.handleCreateRule)
	mux.HandleFunc("GET /api/rules/{id}", s.handleGetRule)
	mux.HandleFunc("PUT /api/rules/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", s.handleDeleteRule)

	mux.HandleFunc("GET /api/rules/{id}/overrides", s.handleListOverrides)
	mux.HandleFunc("PUT /api/rules/{id}/overrides/{date}", s.handleAmendOverride)
	mux.HandleFunc("DELETE /api/rules/{id}/overrides/{date}", s.handleRevertOverride)
	mux.HandleFunc("POST /api/rules/{id}/overrides/{date}/skip", s.handleSkip)
	mux.HandleFunc("POST /api/rules/{id}/overrides/{date}/unskip", s.handleUnskip)

	mux.HandleFunc("GET /api/oneoffs", s.handleListOneOffs)
	mux.HandleFunc("POST /api/oneoffs", s.handleCreateOneOff)
	mux.HandleFunc("POST /api/oneoffs/{id}/paid", s.handleMarkPaid)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)

	mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/postings", s.handleListPostings)

	var handler http.Handler = mux
	handler = s.limitWrites(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.detector.Middleware(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})(handler)
	handler = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// limitWrites applies the rate limit to requests that change state.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
			WarnContext(r.Context(), "Rate limit exceeded", applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)

		traffic, probes, limits := s.tracer.GetMetrics(), s.detector.GetMetrics(), s.limiter.GetMetrics()
		s.logger.Info("Request totals",
			"requests", traffic.TotalRequests,
			"server_errors", traffic.ServerErrors,
			"suspicious", probes.SuspiciousRequests,
			"blocked", probes.Blocked,
			"rate_limited", limits.Rejected)
	})
	return err
}
