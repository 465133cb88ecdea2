package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/nodeproxy/nodeproxy/internal/errors"
	"github.com/nodeproxy/nodeproxy/internal/observability"
	"github.com/nodeproxy/nodeproxy/internal/server/handlers"
	servermw "github.com/nodeproxy/nodeproxy/internal/server/middleware"
)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	mu     sync.Mutex
	server *http.Server
	host   string
	port   int

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	proxy          http.Handler
	landing        string
	health         *handlers.HealthManager
	rateLimits     handlers.RateLimitSource
	adminNetworks  *servermw.NetworkAllowList
	adminToken     string
	trustForwarded bool
	metricsPort    int
}

// Option configures a Server.
type Option func(*Server)

// WithTimeouts overrides the HTTP server timeouts. Zero keeps the default.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
	}
}

// WithProxy mounts the JSON-RPC handler on POST /.
func WithProxy(h http.Handler) Option {
	return func(s *Server) { s.proxy = h }
}

// WithLanding sets the GET / redirect target.
func WithLanding(target string) Option {
	return func(s *Server) { s.landing = target }
}

// WithHealth mounts the /health endpoints backed by manager.
func WithHealth(manager *handlers.HealthManager) Option {
	return func(s *Server) { s.health = manager }
}

// WithAdmin enables /admin/ratelimits for clients inside networks. A non-empty
// token additionally enables POST /admin/signal.
func WithAdmin(source handlers.RateLimitSource, networks *servermw.NetworkAllowList, token string) Option {
	return func(s *Server) {
		s.rateLimits = source
		s.adminNetworks = networks
		s.adminToken = token
	}
}

// WithTrustForwardedHeaders rewrites RemoteAddr from X-Forwarded-For and
// X-Real-IP before any other middleware runs.
func WithTrustForwardedHeaders(trust bool) Option {
	return func(s *Server) { s.trustForwarded = trust }
}

// WithMetricsPort is the exporter port /metrics proxies to when the exporter
// has not reported its own.
func WithMetricsPort(port int) Option {
	return func(s *Server) { s.metricsPort = port }
}

// New creates a new HTTP server instance
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		host:         host,
		port:         port,
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
		metricsPort:  9090,
	}
	for _, opt := range opts {
		opt(s)
	}
	r := s.router
	if s.trustForwarded {
		r.Use(middleware.RealIP)
	}

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
}

// Start listens on Addr and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           s.router,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.idleTimeout,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	observability.Logger().Info("Starting HTTP server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", ln.Addr().String()),
		zap.Bool("trust_forwarded_headers", s.trustForwarded))

	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	observability.Logger().Info("Shutting down HTTP server")
	return srv.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
