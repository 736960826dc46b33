package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"proxi-hq/guardian/pkg/audit"
	"proxi-hq/guardian/pkg/config"
	"proxi-hq/guardian/pkg/policy/engine"
	"proxi-hq/guardian/pkg/server/middleware"
	"proxi-hq/guardian/pkg/tools"
)

// Options collects the components the server composes.
type Options struct {
	// Config is the runtime configuration. Required.
	Config *config.Config

	// Engine is the policy engine gating tool execution. Required.
	Engine *engine.Engine

	// Registry routes tool execution by name. Required.
	Registry *tools.Registry

	// Infra is the simulated infrastructure behind the tools. Required.
	Infra *tools.CloudInfra

	// Recorder receives decision audit records. Optional.
	Recorder *audit.Recorder

	// AuditStore backs the audit query endpoint. Optional.
	AuditStore audit.Storage

	// MetricsHandler serves the Prometheus endpoint. Optional.
	MetricsHandler http.Handler
}

// Server is the guardian HTTP server.
type Server struct {
	config         *config.Config
	engine         *engine.Engine
	registry       *tools.Registry
	infra          *tools.CloudInfra
	recorder       *audit.Recorder
	auditStore     audit.Storage
	metricsHandler http.Handler

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new guardian server.
func NewServer(opts Options) *Server {
	return &Server{
		config:         opts.Config,
		engine:         opts.Engine,
		registry:       opts.Registry,
		infra:          opts.Infra,
		recorder:       opts.Recorder,
		auditStore:     opts.AuditStore,
		metricsHandler: opts.MetricsHandler,
		shutdownChan:   make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting guardian server",
			"address", s.config.Server.ListenAddress,
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("guardian server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/policy/status", s.handlePolicyStatus)
	mux.HandleFunc("/policy/set-mode", s.handleSetMode)
	mux.HandleFunc("/policy/grant-temporary", s.handleGrantTemporary)
	mux.HandleFunc("/policy/extend-temporary", s.handleExtendTemporary)
	mux.HandleFunc("/policy/revoke-temporary", s.handleRevokeTemporary)
	mux.HandleFunc("/tools/execute", s.handleExecuteTool)
	mux.HandleFunc("/tools/catalog", s.handleToolCatalog)
	mux.HandleFunc("/infrastructure/status", s.handleInfraStatus)
	mux.HandleFunc("/infrastructure/simulate-incident", s.handleSimulateIncident)

	if s.auditStore != nil {
		mux.HandleFunc("/audit/records", s.handleAuditRecords)
	}

	if s.metricsHandler != nil {
		mux.Handle(s.config.Metrics.Path, s.metricsHandler)
	}

	var handler http.Handler = mux
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// IsRunning reports whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
