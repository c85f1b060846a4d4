// Package server wires handlers and middleware into the API and probe HTTP servers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/item-service/internal/config"
	"github.com/vyrodovalexey/item-service/internal/handler"
	"github.com/vyrodovalexey/item-service/internal/middleware"
)

// Server runs the item API and, when configured, a separate probe listener.
type Server struct {
	httpServer  *http.Server
	probeServer *http.Server
	router      *mux.Router
	probeRouter *mux.Router
	config      *config.Config
	logger      *zap.Logger
	wsHandler   *handler.WebSocketHandler
}

// New creates a Server serving svc. wsHandler streams item events on /ws and
// may be nil to disable the stream.
func New(cfg *config.Config, logger *zap.Logger, svc handler.ItemService, wsHandler *handler.WebSocketHandler) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		probeRouter: mux.NewRouter(),
		config:      cfg,
		logger:      logger,
		wsHandler:   wsHandler,
	}

	restHandler := handler.NewRESTHandler(svc, logger)

	s.setupMiddleware()
	s.setupRoutes(restHandler)
	s.setupProbeRoutes(restHandler)
	s.setupHTTPServers()

	return s
}

// setupMiddleware installs the API middleware; the first one is outermost.
func (s *Server) setupMiddleware() {
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.CORS(s.config.CORSOrigins)))

	// Preflight requests need a matching route for mux to run the CORS middleware.
	s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) setupRoutes(restHandler *handler.RESTHandler) {
	restHandler.RegisterRoutes(s.router)

	if s.wsHandler != nil {
		s.wsHandler.RegisterRoutes(s.router)
	}

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupProbeRoutes builds the probe router. It is built even when the probe
// listener is disabled.
func (s *Server) setupProbeRoutes(restHandler *handler.RESTHandler) {
	s.probeRouter.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.probeRouter.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))

	restHandler.RegisterProbeRoutes(s.probeRouter)

	if s.config.MetricsEnabled {
		s.probeRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

func (s *Server) setupHTTPServers() {
	s.httpServer = newHTTPServer(s.config.Address(), s.router)

	if s.config.ProbePort > 0 {
		s.probeServer = newHTTPServer(s.config.ProbeAddress(), s.probeRouter)
	}
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Start serves until Shutdown is called or a listener fails. The probe
// listener, when enabled, runs alongside the API listener.
func (s *Server) Start() error {
	errCh := make(chan error, 2)

	if s.probeServer != nil {
		s.logger.Info("starting probe server", zap.String("address", s.probeServer.Addr))
		go func() {
			errCh <- serve(s.probeServer, "probe server")
		}()
	}

	s.logger.Info("starting server",
		zap.String("address", s.httpServer.Addr),
		zap.String("store_backend", s.config.StoreBackend),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
	)
	go func() {
		errCh <- serve(s.httpServer, "server")
	}()

	return <-errCh
}

func serve(srv *http.Server, name string) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listen and serve: %w", name, err)
	}
	return nil
}

// Shutdown closes WebSocket clients and gracefully stops both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("probe server shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the API router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ProbeRouter returns the probe router.
func (s *Server) ProbeRouter() *mux.Router {
	return s.probeRouter
}
