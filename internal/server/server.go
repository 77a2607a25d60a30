package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/assemble"
	"github.com/jackzampolin/binder/internal/config"
	"github.com/jackzampolin/binder/internal/flatten"
	"github.com/jackzampolin/binder/internal/home"
	"github.com/jackzampolin/binder/internal/preview"
	"github.com/jackzampolin/binder/internal/section"
	"github.com/jackzampolin/binder/internal/server/endpoints"
	"github.com/jackzampolin/binder/internal/svcctx"
)

// Server is the main Binder HTTP server.
// It owns the section list and the preview regenerator for its lifetime.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	home       *home.Dir
	logger     *slog.Logger

	// flattener is fixed by Config or chosen from configuration in Init
	flattener flatten.Flattener

	// services holds all core services for context enrichment
	services atomic.Pointer[svcctx.Services]

	// endpoints registry for HTTP routes
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
	// Home is the binder home directory (uploads, exports, scratch)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Flattener overrides engine selection from configuration
	Flattener flatten.Flattener
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
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		flattener: cfg.Flattener,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	s.endpointRegistry.Register(endpoints.All()...)

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 5 * time.Minute, // multipart uploads of large PDFs
		// No WriteTimeout: POST /api/preview?wait=true blocks for a whole run.
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

// Init creates the section list, the flattener and the preview regenerator.
// Runs started by the regenerator stop when ctx is done.
func (s *Server) Init(ctx context.Context) error {
	if s.services.Load() != nil {
		return errors.New("server already initialized")
	}
	// Sections are not persisted, so uploads from an earlier process are orphans
	if err := s.home.ClearUploads(); err != nil {
		s.logger.Warn("failed to clear stale uploads", "error", err)
	}
	if err := s.home.EnsureExists(); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	conf := config.DefaultConfig()
	if s.configMgr != nil {
		conf = s.configMgr.Get()
	}

	if s.flattener == nil {
		fl, err := flatten.New(ctx, conf.FlattenerConfig(s.home.ScratchDir(), s.logger))
		if err != nil {
			return fmt.Errorf("failed to create flattener: %w", err)
		}
		s.flattener = fl
	}
	s.logger.Info("flattening engine selected", "engine", s.flattener.Engine())

	sections := section.NewList()
	regen, err := preview.New(ctx, preview.Config{
		Assembler: &assemble.Assembler{Flattener: s.flattener, Logger: s.logger},
		Sections:  sections,
		Layout:    conf.Layout,
		Logger:    s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}

	if s.configMgr != nil {
		s.configMgr.OnChange(func(c *config.Config) {
			if err := regen.SetLayout(c.Layout); err != nil {
				s.logger.Error("ignoring layout from config", "error", err)
				return
			}
			s.logger.Info("layout reloaded from config")
		})
	}

	s.services.Store(&svcctx.Services{
		Sections:  sections,
		Preview:   regen,
		Flattener: s.flattener,
		Config:    s.configMgr,
		Logger:    s.logger,
		Home:      s.home,
	})
	return nil
}

// Start initializes services and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Init(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
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

// shutdown stops the HTTP server and releases the flattener.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// The docker engine holds an API client.
	if c, ok := s.flattener.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Error("flattener close error", "error", err)
		}
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

// Handler returns the root handler, including service injection.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Services returns the initialized services, or nil before Init.
func (s *Server) Services() *svcctx.Services {
	return s.services.Load()
}

// Registry returns the endpoint registry.
func (s *Server) Registry() *api.Registry {
	return s.endpointRegistry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc := s.services.Load(); svc != nil {
			ctx = svcctx.WithServices(ctx, svc)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until Init has completed.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services.Load() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
