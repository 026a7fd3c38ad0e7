// Package http implements the REST surface of the ranking hub: the public
// ranking endpoints, the status probe, and the admin endpoints that drive
// the gated writes and the finalization workflows.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdhttp "net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/camr-club/ranking-hub/internal/domain/shared"
	"github.com/camr-club/ranking-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AdminToken guards the admin endpoints. Empty disables them entirely;
	// the club runs without an admin surface until a token is configured.
	AdminToken string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *stdhttp.Server
	router     chi.Router
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates the server and wires all routes.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	s.router = r
	s.setupRoutes()

	s.httpServer = &stdhttp.Server{
		Addr:         config.Address(),
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/ranking/{scope}/{population}", s.handleGetRanking)
		r.Get("/tiers", s.handleGetTiers)
		r.Get("/status", s.handleStatus)

		if s.config.AdminToken != "" {
			r.Group(func(r chi.Router) {
				r.Use(s.adminAuthMiddleware)

				r.Patch("/{resource}/{id}", s.handleGatedUpdate)
				r.Delete("/{resource}/{id}", s.handleGatedDelete)
				r.Post("/{resource}/{id}/restore", s.handleRestore)

				r.Post("/admin/seasons/{id}/close", s.handleCloseSeason)
				r.Post("/admin/tournaments/{id}/finalize", s.handleFinalizeTournament)
				r.Post("/admin/cache/reset", s.handleCacheReset)
			})
		}
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// requestIDMiddleware honors an incoming X-Request-ID or assigns a fresh
// UUID, and stores it where middleware.GetReqID finds it.
func requestIDMiddleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) recoveryMiddleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
				)
				writeError(w, stdhttp.StatusInternalServerError, "internal_server_error", "an unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminAuthMiddleware(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.config.AdminToken {
			writeError(w, stdhttp.StatusUnauthorized, "unauthorized", "invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() stdhttp.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the standard response envelope.
type JSONResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError carries an error code, message and optional structured details.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w stdhttp.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func writeError(w stdhttp.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}

// conflictDetails is the payload of an optimistic-lock conflict so the
// client can offer a reload-and-retry flow.
type conflictDetails struct {
	CurrentVersion int       `json:"current_version"`
	LastModified   time.Time `json:"last_modified"`
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w stdhttp.ResponseWriter, err error) {
	var conflict *shared.LockConflictError
	if errors.As(err, &conflict) {
		writeError(w, stdhttp.StatusConflict, "version_conflict", err.Error(), conflictDetails{
			CurrentVersion: conflict.CurrentVersion,
			LastModified:   conflict.LastModified,
		})
		return
	}

	switch {
	case errors.Is(err, shared.ErrDuplicateKey):
		writeError(w, stdhttp.StatusConflict, "duplicate", err.Error(), nil)
	case errors.Is(err, shared.ErrOptimisticLock):
		writeError(w, stdhttp.StatusConflict, "version_conflict", err.Error(), nil)
	case shared.IsPrecondition(err):
		writeError(w, stdhttp.StatusConflict, "precondition_failed", err.Error(), nil)
	case shared.IsNotFound(err):
		writeError(w, stdhttp.StatusNotFound, "not_found", err.Error(), nil)
	case shared.IsValidation(err):
		writeError(w, stdhttp.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, shared.ErrInvalidState):
		writeError(w, stdhttp.StatusConflict, "invalid_state", err.Error(), nil)
	default:
		writeError(w, stdhttp.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
