package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quarry-labs/quarry/internal/logger"
)

// shutdownTimeout bounds the graceful drain when the server stops.
const shutdownTimeout = 10 * time.Second

// Config holds the HTTP API listen address and identity.
type Config struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string

	// Version is reported by the banner and health endpoints.
	Version string

	// CORSOrigins lists origins allowed to call the API from a browser.
	// "*" allows any origin.
	CORSOrigins []string
}

// Server is the HTTP API for quarry.
type Server struct {
	cfg     Config
	ports   *Ports
	handler http.Handler
}

// NewServer creates a new HTTP API server with the given ports.
func NewServer(cfg Config, ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}

	s := &Server{cfg: cfg, ports: ports}

	router := mux.NewRouter()
	router.Use(instrument)
	router.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	router.HandleFunc("/", s.handleBanner).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.handler = cors(cfg.CORSOrigins, router)
	return s, nil
}

// Handler returns the assembled handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
// It blocks; the in-flight requests are drained before it returns.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. Split from Run so callers can
// bind an ephemeral port first.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// No WriteTimeout: /chat responses stay open for the whole workflow.
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	logger.Info("HTTP API listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
