// Package httpapi exposes a planning session over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aaileenssyed/LocalFlow/metrics"
	"github.com/aaileenssyed/LocalFlow/session"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server serves the session API.
type Server struct {
	engine      *session.Engine
	metrics     *metrics.Collector
	logger      *slog.Logger
	validator   *Validator
	corsOrigins []string
	version     string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records per-route metrics and serves GET /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCORSOrigins sets the allowed CORS origins. Empty disables CORS.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithVersion sets the version reported by the OpenAPI document.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a Server for engine.
func New(engine *session.Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    slog.Default(),
		validator: NewValidator(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler configures all routes and middleware.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.observe)

	if len(s.corsOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", s.health)
	if s.metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/openapi.yaml", s.openAPI)

		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", s.getPreferences)
			r.Put("/", s.putPreferences)
		})

		r.Route("/commitments", func(r chi.Router) {
			r.Get("/", s.listCommitments)
			r.Post("/", s.addCommitment)
			r.Delete("/{commitmentID}", s.removeCommitment)
		})

		r.Route("/itinerary", func(r chi.Router) {
			r.Get("/", s.getItinerary)
			r.Post("/", s.generate)
			r.Delete("/", s.reset)
			r.Post("/recalculate", s.recalculate)
			r.Get("/links", s.getLinks)
			r.Get("/export", s.exportItinerary)
		})
	})

	return router
}

// observe logs each request and records it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
		}
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
