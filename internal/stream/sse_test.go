package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testLandmass() *landmass.Store {
	store := landmass.NewStore()
	store.Set(&landmass.Dataset{Source: "embedded:outline", FetchedAt: time.Now().Add(-2 * time.Minute)})
	return store
}

func testSnapshot(tick uint64) *telemetry.Snapshot {
	return &telemetry.Snapshot{
		Time:     time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC),
		Tick:     tick,
		Rotation: float64(tick) * 0.15,
		Bodies: []telemetry.Entry{
			{ID: "S1", Label: "Sentinel-2A", Lat: 4.9, Lng: -12.5, AltKm: 1450, Color: "#38bdf8"},
		},
	}
}

// sseReader pulls "data:" events off a live SSE response.
type sseReader struct {
	t  *testing.T
	sc *bufio.Scanner
}

func (r *sseReader) next() map[string]any {
	r.t.Helper()
	for r.sc.Scan() {
		line := r.sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			if line != "" && line != ":" && !strings.HasPrefix(line, "retry: ") {
				r.t.Errorf("unexpected SSE line: %q", line)
			}
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			r.t.Fatalf("invalid JSON in SSE data line: %v", err)
		}
		return msg
	}
	r.t.Fatalf("stream ended: %v", r.sc.Err())
	return nil
}

func openSSE(t *testing.T, url string) (*http.Response, *sseReader) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp, &sseReader{t: t, sc: bufio.NewScanner(resp.Body)}
}

func TestSSEStream(t *testing.T) {
	hub := telemetry.NewHub()
	hub.Publish(testSnapshot(1))
	h := NewHandler(hub, testLandmass(), Config{KeepaliveInterval: 50 * time.Millisecond}, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleTelemetry))
	t.Cleanup(srv.Close)

	resp, rd := openSSE(t, srv.URL)
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	meta := rd.next()
	if meta["type"] != "metadata" {
		t.Fatalf("first message type = %v, want metadata", meta["type"])
	}
	if id, _ := meta["session_id"].(string); len(id) != 36 {
		t.Errorf("session_id = %v, want a uuid", meta["session_id"])
	}
	if meta["landmass_source"] != "embedded:outline" {
		t.Errorf("landmass_source = %v", meta["landmass_source"])
	}
	if age := meta["landmass_age_seconds"].(float64); age < 119 {
		t.Errorf("landmass_age_seconds = %v, want ~120", age)
	}

	latest := rd.next()
	if latest["type"] != "snapshot" || latest["seq"].(float64) != 1 {
		t.Fatalf("second message = %v, want latest snapshot seq 1", latest)
	}

	hub.Publish(testSnapshot(2))
	msg := rd.next()
	if msg["type"] != "snapshot" || msg["tick"].(float64) != 2 {
		t.Errorf("message = %v, want snapshot tick 2", msg)
	}
	bodies := msg["bodies"].([]any)
	if len(bodies) != 1 || bodies[0].(map[string]any)["id"] != "S1" {
		t.Errorf("bodies = %v", bodies)
	}
}

func TestSSEEvery(t *testing.T) {
	hub := telemetry.NewHub()
	h := NewHandler(hub, nil, Config{}, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleTelemetry))
	t.Cleanup(srv.Close)

	_, rd := openSSE(t, srv.URL+"?every=2")
	if meta := rd.next(); meta["every"].(float64) != 2 {
		t.Fatalf("metadata every = %v", meta["every"])
	}
	for tick := uint64(1); tick <= 4; tick++ {
		hub.Publish(testSnapshot(tick))
	}
	for _, want := range []float64{1, 3} {
		if msg := rd.next(); msg["tick"].(float64) != want {
			t.Errorf("tick = %v, want %v", msg["tick"], want)
		}
	}
}

func TestSSEKeepalive(t *testing.T) {
	hub := telemetry.NewHub()
	h := NewHandler(hub, nil, Config{KeepaliveInterval: 20 * time.Millisecond}, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleTelemetry))
	t.Cleanup(srv.Close)

	_, rd := openSSE(t, srv.URL)
	rd.next() // metadata
	for rd.sc.Scan() {
		if rd.sc.Text() == ":" {
			return
		}
	}
	t.Fatal("no keepalive comment received")
}

func TestInvalidEvery(t *testing.T) {
	h := NewHandler(telemetry.NewHub(), nil, Config{}, testLogger())

	for _, q := range []string{"?every=0", "?every=51", "?every=abc"} {
		t.Run(q, func(t *testing.T) {
			for _, fn := range []http.HandlerFunc{h.HandleTelemetry, h.HandleWebSocket} {
				req := httptest.NewRequest("GET", "/api/v1/stream/telemetry"+q, nil)
				w := httptest.NewRecorder()
				fn(w, req)
				if w.Code != http.StatusBadRequest {
					t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
				}
			}
		})
	}
}

// TestRateLimitHTTPResponse verifies the 429 response when the per-IP limit
// is reached and that the slot is released on disconnect.
func TestRateLimitHTTPResponse(t *testing.T) {
	hub := telemetry.NewHub()
	h := NewHandler(hub, nil, Config{MaxConcurrentPerIP: 1}, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleTelemetry))
	t.Cleanup(srv.Close)

	first, rd := openSSE(t, srv.URL)
	rd.next()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	first.Body.Close()
	deadline := time.Now().Add(2 * time.Second)
	for h.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slot not released after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Subscribers() != 0 {
		t.Errorf("subscribers = %d after disconnect, want 0", hub.Subscribers())
	}
}

func TestWebSocketStream(t *testing.T) {
	hub := telemetry.NewHub()
	hub.Publish(testSnapshot(7))
	h := NewHandler(hub, testLandmass(), Config{KeepaliveInterval: time.Second}, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil || msg["type"] != "metadata" {
		t.Fatalf("first message = %v (%v), want metadata", msg, err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg["tick"].(float64) != 7 {
		t.Fatalf("second message = %v (%v), want latest snapshot", msg, err)
	}

	hub.Publish(testSnapshot(8))
	if err := conn.ReadJSON(&msg); err != nil || msg["tick"].(float64) != 8 {
		t.Fatalf("message = %v (%v), want tick 8", msg, err)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 || h.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket session not cleaned up after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 5)

	for i := 0; i < 3; i++ {
		if ok, _ := limiter.acquire("10.0.0.1"); !ok {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if ok, reason := limiter.acquire("10.0.0.1"); ok || reason != reasonPerIP {
		t.Errorf("acquire beyond per-IP limit = %v, %q", ok, reason)
	}
	if ok, _ := limiter.acquire("10.0.0.2"); !ok {
		t.Error("different IP should not be rate limited")
	}
	if ok, _ := limiter.acquire("10.0.0.3"); !ok {
		t.Error("fifth connection should fit the global limit")
	}
	if ok, reason := limiter.acquire("10.0.0.4"); ok || reason != reasonGlobal {
		t.Errorf("acquire beyond global limit = %v, %q", ok, reason)
	}

	limiter.release("10.0.0.1")
	if ok, _ := limiter.acquire("10.0.0.1"); !ok {
		t.Error("acquire after release should succeed")
	}
	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}

	limiter.release("10.9.9.9") // unknown IP is a no-op
	if limiter.active() != 5 {
		t.Errorf("active = %d, want 5", limiter.active())
	}
}

func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.acquire("10.0.0.1"); ok {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}
