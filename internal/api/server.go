// Package api provides the fitquest HTTP server: per-user gamification
// projections and entry points over a cached session per user.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/myeasy-ai/fitquest/internal/domain"
	"github.com/myeasy-ai/fitquest/internal/health"
)

// DefaultRequestTimeout bounds a single request.
const DefaultRequestTimeout = 30 * time.Second

// Server is the fitquest HTTP API server.
type Server struct {
	sessions       *Registry
	health         *health.Checker
	metricsEnabled bool
	version        string
	timeout        time.Duration
	log            *slog.Logger
}

// NewServer creates a new API server.
func NewServer(sessions *Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		sessions: sessions,
		version:  "dev",
		timeout:  DefaultRequestTimeout,
		log:      log.With("component", "api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth reports checker results on /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// SetRequestTimeout overrides DefaultRequestTimeout.
func (s *Server) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/users/{userID}/gamification", func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/summary", s.handleSummary)
		r.Get("/streak", s.handleStreak)
		r.Get("/level", s.handleLevel)
		r.Get("/trophies", s.handleTrophies)
		r.Get("/badges", s.handleBadges)
		r.Get("/challenges", s.handleChallenges)
		r.Get("/goals", s.handleGoals)
		r.Get("/activities", s.handleActivities)
		r.Get("/celebrations", s.handleCelebrations)

		r.Post("/workouts", s.handleWorkout)
		r.Post("/diet", s.handleDiet)
		r.Post("/challenges/daily/{id}/complete", s.handleCompleteDaily)
		r.Post("/challenges/weekly/{id}/complete", s.handleCompleteWeekly)
		r.Post("/xp", s.handleAddXP)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/save", s.handleSave)
		r.Put("/profile", s.handleProfile)
		r.Post("/celebrations/ack", s.handleAckCelebrations)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrInvalidXPAmount),
		errors.Is(err, domain.ErrInvalidTrainingDays),
		errors.Is(err, domain.ErrInvalidHour):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrChallengeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrChallengeTypeMismatch),
		errors.Is(err, domain.ErrChallengeExpired):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStateUnavailable):
		status = http.StatusServiceUnavailable
		s.log.Warn("store unavailable", "path", r.URL.Path, "error", err)
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
	}
	writeError(w, status, err.Error())
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "error"
	}
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
