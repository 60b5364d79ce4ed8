// Package stream pushes telemetry snapshots to browsers. Clients connect via
// GET /api/v1/stream/telemetry (Server-Sent Events) or GET /api/v1/stream/ws
// (WebSocket) and receive every published snapshot until they disconnect.
//
// SSE message format:
//
//	data: {"type":"snapshot","seq":42,"time":"...","rotation":6.3,"bodies":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","session_id":"...","landmass_source":"...","landmass_age_seconds":120}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval of silence.
// Reconnecting clients receive a fresh metadata message and the latest
// snapshot on each connection.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/star/terrafusion/internal/httputil"
	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/metrics"
	"github.com/star/terrafusion/internal/telemetry"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // default: 10
	MaxConcurrent      int           // across all clients (default: 1000)
	KeepaliveInterval  time.Duration // default: 30s
	WriteTimeout       time.Duration // per message (default: 10s)
	TrustProxy         bool
}

// Feed is the snapshot source, normally a *telemetry.Hub.
type Feed interface {
	Subscribe() *telemetry.Subscription
	Unsubscribe(*telemetry.Subscription)
	Latest() *telemetry.Snapshot
}

// Handler manages streaming connections.
type Handler struct {
	feed     Feed
	landmass *landmass.Store
	config   Config
	limiter  *streamLimiter
	logger   *slog.Logger
}

// NewHandler creates a streaming handler. landmass may be nil.
func NewHandler(feed Feed, lm *landmass.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &Handler{
		feed:     feed,
		landmass: lm,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:   logger,
	}
}

// Active returns the number of open stream connections.
func (h *Handler) Active() int {
	return h.limiter.active()
}

// parseEvery reads the ?every=N downsampling parameter (1-50, default 1).
func parseEvery(r *http.Request) (int, error) {
	v := r.URL.Query().Get("every")
	if v == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 50 {
		return 0, errors.New("invalid every parameter, must be 1-50")
	}
	return n, nil
}

// admit applies the connection limits. On refusal it has already written the
// 429 response.
func (h *Handler) admit(w http.ResponseWriter, ip, transport string) bool {
	ok, reason := h.limiter.acquire(ip)
	if ok {
		return true
	}
	metrics.StreamRejected(reason)
	h.logger.Warn("stream limit exceeded",
		"remote_ip", ip,
		"transport", transport,
		"reason", reason,
		"current_count", h.limiter.count(ip),
	)
	w.Header().Set("Retry-After", "30")
	httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
	return false
}

// HandleTelemetry serves the SSE snapshot stream.
// GET /api/v1/stream/telemetry?every=1
func (h *Handler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	every, err := parseEvery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.admit(w, ip, "sse") {
		return
	}

	session := uuid.NewString()
	metrics.StreamOpened("sse")
	startTime := time.Now()
	h.logger.Info("stream connected",
		"transport", "sse",
		"session_id", session,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"every", every,
	)

	sub := h.feed.Subscribe()
	defer func() {
		h.feed.Unsubscribe(sub)
		h.limiter.release(ip)
		metrics.StreamClosed("sse")
		h.logger.Info("stream disconnected",
			"transport", "sse",
			"session_id", session,
			"remote_ip", ip,
			"dropped", sub.Dropped(),
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The server's WriteTimeout does not apply to a long-lived stream; each
	// write sets its own deadline instead.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		timeout: h.config.WriteTimeout,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.sendJSON(h.metadata(session, every)); err != nil {
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}
	if latest := h.feed.Latest(); latest != nil {
		if err := c.sendJSON(newSnapshotMessage(latest, 0)); err != nil {
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return
		}
	}

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	var n int
	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			n++
			if (n-1)%every != 0 {
				continue
			}
			if err := c.sendJSON(newSnapshotMessage(snap, sub.Dropped())); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
