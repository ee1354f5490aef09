// Package http exposes the aggregations and the write path as a JSON API.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bilancio/internal/log"
	"bilancio/internal/metrics"
	"bilancio/internal/services"
	"bilancio/internal/store"
)

// Options tunes the server. Zero values select the defaults.
type Options struct {
	// Location interprets date-only query values.
	Location *time.Location
	// WritesPerMinute limits POST, PUT and DELETE requests per client IP.
	WritesPerMinute int
	// RequestTimeout bounds /api requests.
	RequestTimeout time.Duration
	// Store is pinged by /readyz when it implements store.Pinger.
	Store store.Reader
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.WritesPerMinute == 0 {
		o.WritesPerMinute = 60
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	return o
}

type Server struct {
	http.Server
	aggregation *services.AggregationService
	records     *services.RecordService
	options     Options
	limiter     *rateLimiter
	logger      *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(addr string, aggregation *services.AggregationService, records *services.RecordService, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	opts = opts.withDefaults()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		aggregation: aggregation,
		records:     records,
		options:     opts,
		limiter:     newRateLimiter(opts.WritesPerMinute),
		logger:      logger.WithComponent(log.ComponentHTTP),
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(requestLogger)
	r.Use(securityHeaders)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.options.RequestTimeout))

		r.Get("/accounts/{id}/ledger", s.handleLedger)
		r.Get("/trial-balance", s.handleTrialBalance)
		r.Get("/budgets", s.handleBudgets)
		r.Get("/budgets/{id}/periods", s.handleBudgetPeriods)
		r.Get("/summary", s.handleSummary)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Post("/transactions", s.handleAppendTransaction)
			r.Delete("/accounts/{id}", s.handleDeleteAccount)
			r.Put("/accounts/{id}", s.handleSaveAccount)
			r.Put("/budgets/{id}", s.handleSaveBudget)
			r.Put("/currencies/{id}", s.handleSaveCurrency)
		})
	})

	return r
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// requestLogger logs request completion and counts it by route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		log.LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds())
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.options.Store.(store.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable", Type: "not_ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
