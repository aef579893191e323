package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ppiankov/factbot/internal/metrics"
)

// Server exposes health, metrics and the payment webhook
type Server struct {
	srv     *http.Server
	router  *mux.Router
	logger  *zerolog.Logger
	started time.Time
	users   func() int
}

// Options configures optional routes
type Options struct {
	Metrics *metrics.Metrics
	Webhook http.Handler // POST /webhooks/payment, skipped when nil
	Users   func() int   // reported by /healthz when set
	Logger  *zerolog.Logger
}

// New creates a server listening on addr
func New(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		started: time.Now(),
		users:   opts.Users,
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if opts.Metrics != nil {
		s.router.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	if opts.Webhook != nil {
		s.router.Handle("/webhooks/payment", opts.Webhook).Methods(http.MethodPost)
	}
	s.router.Use(s.logRequests)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Users  *int   `json:"users,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.users != nil {
		n := s.users()
		resp.Users = &n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write health response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
