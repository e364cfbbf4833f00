package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	authService       driving.AuthService
	exportService     driving.ExportService
	exportJobs        driving.ExportJobService // nil disables async exports
	connectionService driving.ConnectionService

	// Infrastructure, checked by /ready. Either may be nil.
	db   Pinger
	lock Pinger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// WriteTimeout bounds a whole export request, which makes one round of
	// LMS calls per target.
	WriteTimeout time.Duration

	// AllowedOrigins enables CORS for these origins; "*" allows any.
	AllowedOrigins []string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		Version:      "dev",
		WriteTimeout: 5 * time.Minute,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	exportService driving.ExportService,
	exportJobs driving.ExportJobService, // can be nil
	connectionService driving.ConnectionService,
	db Pinger, // can be nil
	lock Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultConfig().WriteTimeout
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		logger:            logger,
		authService:       authService,
		exportService:     exportService,
		exportJobs:        exportJobs,
		connectionService: connectionService,
		db:                db,
		lock:              lock,
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	if len(cfg.AllowedOrigins) > 0 {
		handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	}
	handler = NewRecoveryMiddleware(logger).Handler(
		NewLoggingMiddleware(logger).Handler(handler))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Export
	s.router.Handle("POST /api/v1/courses/{id}/export",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleExportCourse)))
	s.router.Handle("GET /api/v1/exports/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetExportJob)))

	// LMS connections
	s.router.Handle("GET /api/v1/lms/{type}/connection",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetConnection)))
	s.router.Handle("PUT /api/v1/lms/{type}/connection",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSaveConnection)))
	s.router.Handle("DELETE /api/v1/lms/{type}/connection",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDeleteConnection)))
	s.router.Handle("POST /api/v1/lms/{type}/connection/test",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleTestConnection)))

	// Remote courses
	s.router.Handle("GET /api/v1/lms/{type}/courses",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListRemoteCourses)))
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr, "version", s.version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
