// Package server runs the corpus HTTP API and the background sweep that
// drives documents through the pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/corpus/internal/api"
	"github.com/jackzampolin/corpus/internal/config"
	"github.com/jackzampolin/corpus/internal/gateway"
	"github.com/jackzampolin/corpus/internal/home"
	"github.com/jackzampolin/corpus/internal/objectstore"
	"github.com/jackzampolin/corpus/internal/pipeline"
	"github.com/jackzampolin/corpus/internal/server/endpoints"
	"github.com/jackzampolin/corpus/internal/store"
	"github.com/jackzampolin/corpus/internal/svcctx"
)

// Server is the corpus HTTP server. It owns the document store, the object
// store client, and the pipeline orchestrator, and optionally runs the
// reconciliation sweep on a ticker.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	homeDir    *home.Dir
	logger     *slog.Logger

	store        *store.SQLite
	objects      *objectstore.Minio
	orchestrator *pipeline.Orchestrator

	// services holds the core services for request-context enrichment.
	services *svcctx.Services

	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the corpus home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		homeDir:   cfg.Home,
		logger:    cfg.Logger,
	}

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireReady)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens the store, prepares the object buckets, wires the pipeline,
// and serves HTTP. It blocks until the context is cancelled or an error
// occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	cfg := s.configMgr.Get().Resolved()

	if err := s.homeDir.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to prepare home directory: %w", err)
	}

	st, err := store.Open(s.homeDir.DatabasePath())
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open document store: %w", err)
	}
	s.store = st

	objects, err := objectstore.NewMinio(cfg.Storage, s.logger)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to create object store client: %w", err)
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to prepare buckets: %w", err)
	}
	s.objects = objects

	gw := gateway.New(cfg, objects, s.logger)
	s.orchestrator = pipeline.New(st, objects, gw, s.logger)

	s.services = &svcctx.Services{
		Config:       s.configMgr,
		Logger:       s.logger,
		Home:         s.homeDir,
		Store:        st,
		Objects:      objects,
		Orchestrator: s.orchestrator,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.Pipeline.AutoProcess {
		go s.sweep(sweepCtx, cfg.Pipeline.SweepEvery())
	} else {
		s.logger.Info("auto-processing disabled; documents advance on demand only")
	}

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// sweep runs Drain on a fixed interval until ctx is cancelled. Overlapping
// runs coalesce on the orchestrator's sweep lock, so a slow sweep delays
// rather than stacks.
func (s *Server) sweep(ctx context.Context, every time.Duration) {
	s.logger.Info("sweep ticker started", "interval", every)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep ticker stopped")
			return
		case <-ticker.C:
			if err := s.orchestrator.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// shutdown performs graceful shutdown of the HTTP server and the store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
		s.store = nil
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Orchestrator returns the pipeline orchestrator.
// Returns nil if the server hasn't started yet.
func (s *Server) Orchestrator() *pipeline.Orchestrator {
	return s.orchestrator
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireReady is middleware that ensures the store and pipeline are wired
// before a handler runs. Returns 503 Service Unavailable otherwise.
func (s *Server) requireReady(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil || s.orchestrator == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
