// Package http exposes the JSON API the mobile client consumes.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/catalog"
	"fintrack/internal/services"
)

type Server struct {
	http.Server

	auth           *Authenticator
	transactions   *services.TransactionService
	categorization *services.CategorizationService
	analytics      *services.AnalyticsService
	catalog        catalog.Source

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// requestsPerMinute bounds each authenticated client.
const requestsPerMinute = 60

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(
	addr string,
	auth *Authenticator,
	transactions *services.TransactionService,
	categorization *services.CategorizationService,
	analytics *services.AnalyticsService,
	src catalog.Source,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		auth:           auth,
		transactions:   transactions,
		categorization: categorization,
		analytics:      analytics,
		catalog:        src,
		rateLimiter:    newRateLimiter(requestsPerMinute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /transactions", s.protected(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions", s.protected(s.handleListTransactions))
	mux.HandleFunc("GET /transactions/{id}", s.protected(s.handleGetTransaction))
	mux.HandleFunc("POST /transactions/{id}/suggestion", s.protected(s.handleRequestSuggestion))
	mux.HandleFunc("PUT /transactions/{id}/category", s.protected(s.handleSetCategory))
	mux.HandleFunc("DELETE /transactions/{id}/category", s.protected(s.handleClearCategory))

	mux.HandleFunc("POST /accounts", s.protected(s.handleCreateAccount))
	mux.HandleFunc("GET /accounts", s.protected(s.handleListAccounts))

	mux.HandleFunc("GET /categories", s.protected(s.handleListCategories))
	mux.HandleFunc("GET /analytics/summary", s.protected(s.handleSummary))
	mux.HandleFunc("GET /analytics/trend", s.protected(s.handleTrend))
	mux.HandleFunc("GET /analytics/forecast", s.protected(s.handleForecast))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// protected authenticates the request, applies rate limiting keyed by the
// owner, and logs start and completion with a request ID for tracing.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)

		ownerID, err := s.auth.OwnerFromRequest(r)
		if err != nil {
			slog.WarnContext(ctx, "Authentication failed",
				"request_id", requestID,
				"method", r.Method,
				"url", r.URL.Path,
				"error", err)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx = context.WithValue(ctx, ownerIDKey, ownerID)
		r = r.WithContext(ctx)

		if !s.rateLimiter.allow(ownerID) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"request_id", requestID,
				"owner_id", ownerID,
				"url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"owner_id", ownerID)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
