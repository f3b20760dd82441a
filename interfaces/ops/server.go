// Package ops serves the operational endpoints on a separate listener:
// Prometheus metrics, pprof and health probes. It stays off the public
// router so these are never exposed through the API gateway.
package ops

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"atlas-graph/pkg/observability"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ReadyCheck reports whether a dependency can take traffic.
type ReadyCheck func(ctx context.Context) error

// Server is the operational HTTP server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds the ops server. checks run on every /readyz request.
func NewServer(addr string, metrics *observability.Metrics, logger *zap.Logger, checks map[string]ReadyCheck) *Server {
	router := mux.NewRouter()

	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")

	router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("Readiness check failed",
					zap.String("check", name),
					zap.Error(err),
				)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"not ready","failed":"` + name + `"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods("GET")

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").Handler(http.HandlerFunc(pprof.Index))

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving. It blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("Ops server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
