// Package api exposes the demo server: the scheme bridge endpoint plus the
// read side of the request journal, health, and metrics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/intercept/backend/httpbridge"
	"github.com/seantiz/intercept/internal/journal"
	"github.com/seantiz/intercept/scheme"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router   *chi.Mux
	store    journal.Store
	bridge   *httpbridge.Backend
	instance scheme.InstanceID
	logger   *slog.Logger
	addr     string
}

// NewServer creates and configures a new HTTP server. The bridge serves
// intercepted schemes for the given instance under /s/{scheme}/*.
func NewServer(addr string, store journal.Store, bridge *httpbridge.Backend, inst scheme.InstanceID, logger *slog.Logger) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		store:    store,
		bridge:   bridge,
		instance: inst,
		logger:   logger,
		addr:     addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/v1/requests", func(r chi.Router) {
		r.Get("/", s.handleListRequests)
		r.Get("/stats", s.handleGetStats)
		r.Get("/{id}", s.handleGetRequest)
	})

	s.router.Handle("/s/{scheme}/*", http.HandlerFunc(s.handleScheme))
	s.router.Handle("/s/{scheme}", http.HandlerFunc(s.handleScheme))
}

// handleScheme bridges one HTTP request into the scheme dispatch path. It
// blocks until delivery completes or the client goes away.
func (s *Server) handleScheme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "scheme")
	path := chi.URLParam(r, "*")
	s.bridge.ServeScheme(s.instance, name, path, w, r)
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// Streamed scheme responses are long-lived, so no server write timeout is set;
// the bridge clears per-request deadlines itself.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
