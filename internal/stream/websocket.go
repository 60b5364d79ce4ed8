package stream

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/star/terrafusion/internal/httputil"
	"github.com/star/terrafusion/internal/metrics"
)

// maxClientMessage bounds what a WebSocket client may send; the stream is
// one-way so anything beyond a close frame is discarded.
const maxClientMessage = 512

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// HandleWebSocket serves the snapshot stream over a WebSocket. Messages are
// the same JSON documents as the SSE stream, one per text frame.
// GET /api/v1/stream/ws?every=1
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	every, err := parseEvery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.admit(w, ip, "ws") {
		return
	}
	defer h.limiter.release(ip)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Debug("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	metrics.StreamOpened("ws")
	startTime := time.Now()
	h.logger.Info("stream connected",
		"transport", "ws",
		"session_id", session,
		"remote_ip", ip,
		"every", every,
	)

	sub := h.feed.Subscribe()
	defer func() {
		h.feed.Unsubscribe(sub)
		metrics.StreamClosed("ws")
		h.logger.Info("stream disconnected",
			"transport", "ws",
			"session_id", session,
			"remote_ip", ip,
			"dropped", sub.Dropped(),
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// The read pump only services control frames and notices the close.
	pongWait := 2 * h.config.KeepaliveInterval
	closed := make(chan struct{})
	conn.SetReadLimit(maxClientMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(v any) error {
		conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
		return conn.WriteJSON(v)
	}

	if err := send(h.metadata(session, every)); err != nil {
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}
	if latest := h.feed.Latest(); latest != nil {
		if err := send(newSnapshotMessage(latest, 0)); err != nil {
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return
		}
	}

	ping := time.NewTicker(h.config.KeepaliveInterval)
	defer ping.Stop()

	ctx := r.Context()
	var n int
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return

		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			n++
			if (n-1)%every != 0 {
				continue
			}
			if err := send(newSnapshotMessage(snap, sub.Dropped())); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

		case <-ping.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.logger.Warn("stream ping error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
