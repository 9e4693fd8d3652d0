package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/star/groundtrack/internal/auth"
	"github.com/star/groundtrack/internal/health"
	"github.com/star/groundtrack/internal/httputil"
	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/stream"
	"github.com/star/groundtrack/internal/track"
)

const (
	// DefaultMaxRecords caps a single request when no budget is configured.
	DefaultMaxRecords = 100_000

	defaultRequestTimeout = 30 * time.Second
	defaultStreamsPerIP   = 4
	maxBodyBytes          = 64 << 10
)

// Config controls the HTTP server.
type Config struct {
	Addr           string
	Auth           auth.Config
	RateLimit      float64 // requests per second per client IP; 0 disables limiting
	RateBurst      int
	TrustProxy     bool
	RequestTimeout time.Duration
	StreamsPerIP   int // concurrent SSE streams per client IP
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	ready      *health.Readiness
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. Ground track requests are
// evaluated with trackCfg; a zero MaxRecords is replaced by DefaultMaxRecords.
func NewServer(cfg Config, trackCfg track.Config, logger *slog.Logger) *Server {
	if trackCfg.MaxRecords == 0 {
		trackCfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.StreamsPerIP <= 0 {
		cfg.StreamsPerIP = defaultStreamsPerIP
	}

	ready := &health.Readiness{}
	driver := track.NewDriver(trackCfg, logger)

	var batch http.Handler = &groundtrackHandler{
		driver:     driver,
		maxRecords: trackCfg.MaxRecords,
		timeout:    cfg.RequestTimeout,
		logger:     logger,
	}
	var sse http.Handler = &streamHandler{
		driver:     driver,
		limiter:    stream.NewLimiter(cfg.StreamsPerIP, 0),
		maxRecords: trackCfg.MaxRecords,
		trustProxy: cfg.TrustProxy,
		logger:     logger,
	}
	if cfg.RateLimit > 0 {
		limiter := httputil.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.TrustProxy)
		batch = limiter.Middleware(batch)
		sse = limiter.Middleware(sse)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", ready.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("POST /api/v1/groundtrack", batch)
	mux.Handle("POST /api/v1/groundtrack/stream", sse)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ready:  ready,
		logger: logger,
	}
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe binds the configured address, marks the server ready and
// serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "component", "api", "addr", ln.Addr().String())
	s.ready.SetReady(true)
	return s.httpServer.Serve(ln)
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	http.NewResponseController(sr.ResponseWriter).Flush()
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}

// IsServerClosed reports whether err is the normal result of Shutdown.
func IsServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
