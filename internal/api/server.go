// Package api wires the HTTP surface: probes, metrics, the JSON API, the
// snapshot streams and the embedded dashboard.
package api

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/star/terrafusion/internal/auth"
	"github.com/star/terrafusion/internal/cache"
	"github.com/star/terrafusion/internal/health"
	"github.com/star/terrafusion/internal/httputil"
	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/metrics"
	"github.com/star/terrafusion/internal/registry"
	"github.com/star/terrafusion/internal/render"
	"github.com/star/terrafusion/internal/stream"
	"github.com/star/terrafusion/internal/telemetry"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool
}

// Deps are the running components the API exposes.
type Deps struct {
	Loop         *render.Loop
	Hub          *telemetry.Hub
	Registry     *registry.Registry
	Frames       *cache.FrameCache
	Stream       *stream.Handler
	Landmass     *landmass.Store // optional
	Web          fs.FS           // dashboard assets; nil disables the dashboard
	TickInterval time.Duration   // converts coverage ticks to seconds
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() (bool, string) {
		if deps.Loop.Frames() == 0 {
			return false, "no frame rendered yet"
		}
		return true, ""
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/registry", registryHandler(deps.Registry))
	mux.HandleFunc("GET /api/v1/telemetry", telemetryHandler(deps.Hub))
	mux.HandleFunc("GET /api/v1/status", statusHandler(deps))
	mux.HandleFunc("GET /api/v1/frame.png", frameHandler(deps.Frames, logger))
	mux.HandleFunc("GET /api/v1/highlight", getHighlightHandler(deps.Loop))
	mux.HandleFunc("PUT /api/v1/highlight", putHighlightHandler(deps.Loop, deps.Registry, logger))
	mux.HandleFunc("GET /api/v1/viewport", getViewportHandler(deps.Loop))
	mux.HandleFunc("PUT /api/v1/viewport", putViewportHandler(deps.Loop, logger))
	mux.HandleFunc("GET /api/v1/coverage/{poi_id}", coverageHandler(deps, logger))
	mux.HandleFunc("GET /api/v1/stream/telemetry", deps.Stream.HandleTelemetry)
	mux.HandleFunc("GET /api/v1/stream/ws", deps.Stream.HandleWebSocket)

	if deps.Web != nil {
		static := http.FileServerFS(deps.Web)
		mux.Handle("GET /{$}", static)
		mux.Handle("GET /app.js", static)
		mux.Handle("GET /styles.css", static)
	}

	// Build middleware chain: metrics -> logging -> auth -> gzip -> mux.
	// Streams bypass compression so every event is flushed as written.
	compressed := gzhttp.GzipHandler(mux)
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/v1/stream/") {
			mux.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	// Request contexts derive from base so Shutdown can end open streams,
	// which otherwise only return when the client goes away.
	base, cancel := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	httpServer.RegisterOnShutdown(cancel)

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the complete middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
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
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying writer does not support hijacking")
	}
	return h.Hijack()
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
