/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-quota/log"
	"github.com/acronis/go-quota/quota"
	"github.com/acronis/go-quota/quotahttp"
)

// Opts represents options for creating Server.
type Opts struct {
	// Gatherer serves /metrics. prometheus.DefaultGatherer is used if nil.
	Gatherer prometheus.Gatherer

	// CleanupInterval is how often idle records are removed when the limiter uses quota.LRUStore.
	// Zero disables the cleanup.
	CleanupInterval time.Duration

	// Listener is a pre-configured network listener. A TCP listener on Config.Address is created if nil.
	Listener net.Listener

	// ShutdownSignals stop the server gracefully. SIGINT and SIGTERM are used if empty.
	ShutdownSignals []os.Signal
}

// Server exposes the quota limiter over HTTP.
type Server struct {
	cfg        *Config
	limiter    *quota.Limiter
	logger     log.FieldLogger
	opts       Opts
	router     chi.Router
	httpServer *http.Server
}

// New creates a new Server.
func New(cfg *Config, limiter *quota.Limiter, logger log.FieldLogger, opts Opts) (*Server, error) {
	if limiter == nil {
		return nil, fmt.Errorf("limiter must be specified")
	}
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if len(opts.ShutdownSignals) == 0 {
		opts.ShutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	quotaMiddleware, err := quotahttp.MiddlewareWithOpts(limiter, cfg.ErrorDomain, quotahttp.Opts{
		DryRun:         cfg.Middleware.DryRun,
		BacklogLimit:   cfg.Middleware.BacklogLimit,
		BacklogTimeout: time.Duration(cfg.Middleware.BacklogTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("new quota middleware: %w", err)
	}

	s := &Server{cfg: cfg, limiter: limiter, logger: logger, opts: opts}
	s.router = s.newRouter(quotaMiddleware)
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadTimeout:       time.Duration(cfg.Timeouts.Read),
		ReadHeaderTimeout: time.Duration(cfg.Timeouts.Read),
		WriteTimeout:      time.Duration(cfg.Timeouts.Write),
		IdleTimeout:       time.Duration(cfg.Timeouts.Idle),
	}
	return s, nil
}

// Handler returns the root HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP requests and removes idle caller records in background
// until ctx is done or one of the shutdown signals is received.
// The server is shut down gracefully in both cases.
func (s *Server) Run(ctx context.Context) error {
	ctx, stopSignals := signal.NotifyContext(ctx, s.opts.ShutdownSignals...)
	defer stopSignals()

	listener := s.opts.Listener
	if listener == nil {
		var err error
		if listener, err = net.Listen("tcp", s.cfg.Address); err != nil {
			return fmt.Errorf("listen %s: %w", s.cfg.Address, err)
		}
	}

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	defer func() {
		cancelCleanup()
		cleanupWG.Wait()
	}()
	if lruStore, ok := s.limiter.Store().(*quota.LRUStore); ok && s.opts.CleanupInterval > 0 {
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			lruStore.RunPeriodicCleanup(cleanupCtx, s.opts.CleanupInterval, s.logger)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting quota HTTP server...",
			log.String("address", listener.Addr().String()),
			log.String("strategy", s.limiter.Strategy().Name()),
		)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			s.logger.Error("quota HTTP server error", log.Error(err))
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("quota HTTP server is stopping", log.NamedError("reason", context.Cause(ctx)))
	}

	shutdownTimeout := time.Duration(s.cfg.Timeouts.Shutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down quota HTTP server...", log.Duration("timeout", shutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("quota HTTP server shutting down error", log.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	<-serveErr
	s.logger.Info("quota HTTP server shut down")
	return nil
}

func (s *Server) newRouter(quotaMiddleware func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()
	router.Use(quotahttp.RequestID(s.logger))
	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		s.respondNotFound(rw, r)
	})

	router.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	router.Route("/quota/{callerID}", func(r chi.Router) {
		r.Get("/", s.getCallerQuota)
		r.Delete("/", s.resetCallerQuota)
		r.Post("/decisions", s.decide)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(quotaMiddleware)
		r.Get("/ping", s.ping)
	})
	return router
}
