package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gigtracker/internal/cache"
	"gigtracker/internal/core"
	applog "gigtracker/internal/log"
	"gigtracker/internal/middleware/ratelimit"
	"gigtracker/internal/middleware/security"
	"gigtracker/internal/middleware/trace"
	"gigtracker/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	Addr      string
	Logger    *applog.Logger
	Pinger    Pinger
	CacheTTL  time.Duration
	CacheSize int
	RateLimit ratelimit.Config
	// Now is the clock stamped on calendar exports.
	Now func() time.Time
}

// Server is the JSON API over a GigService.
type Server struct {
	http.Server
	gigs   *services.GigService
	pinger Pinger
	now    func() time.Time

	// Daily earnings keyed by selector, purged on every write.
	earnings *cache.LRUCache[[]core.DayEarning]
	caches   *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(gigs *services.GigService, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentHTTP})
	}

	s := &Server{
		gigs:     gigs,
		pinger:   opts.Pinger,
		now:      opts.Now,
		earnings: cache.NewLRUCache[[]core.DayEarning](opts.CacheSize, opts.CacheTTL),
		caches:   cache.NewManager(),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.caches.Register(s.earnings)
	if opts.CacheTTL > 0 {
		s.caches.StartCleanup(opts.CacheTTL)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/gigs", s.handleListGigs)
	mux.HandleFunc("POST /api/gigs", s.writes(s.handleCreateGig))
	mux.HandleFunc("GET /api/gigs/{id}", s.handleGetGig)
	mux.HandleFunc("PUT /api/gigs/{id}", s.writes(s.handleUpdateGig))
	mux.HandleFunc("DELETE /api/gigs/{id}", s.writes(s.handleDeleteGig))
	mux.HandleFunc("GET /api/gigs/{id}/occurrences", s.handleOccurrences)
	mux.HandleFunc("POST /api/gigs/{id}/occurrences/{date}/complete", s.writes(s.handleCompleteOccurrence))
	mux.HandleFunc("GET /api/gigs/{id}/overrides", s.handleListOverrides)
	mux.HandleFunc("GET /api/gigs/{id}/overrides/{date}", s.handleGetOverride)
	mux.HandleFunc("PUT /api/gigs/{id}/overrides/{date}", s.writes(s.handleSetOverride))
	mux.HandleFunc("DELETE /api/gigs/{id}/overrides/{date}", s.writes(s.handleDeleteOverride))

	mux.HandleFunc("GET /api/places", s.handleListPlaces)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.writes(s.handleCreateExpense))

	mux.HandleFunc("GET /api/earnings/daily", s.handleDailyEarnings)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/calendar.ics", s.handleCalendar)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})

	var h http.Handler = mux
	h = limit(h)
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// writes wraps a mutating handler so that a successful write drops every
// cached derived view.
func (s *Server) writes(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)
		if rw.status < 400 {
			s.earnings.Purge()
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops background cleanup and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
