package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrafusion_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "terrafusion_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "terrafusion_frames_total",
		Help: "Frames rendered by the render loop.",
	})

	frameDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "terrafusion_frame_duration_seconds",
		Help:    "Time spent building and painting one frame.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.016, 0.025, 0.05, 0.1, 0.25},
	})

	frameElementsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrafusion_frame_elements_skipped_total",
			Help: "Frame elements skipped because computing them failed.",
		},
		[]string{"kind"},
	)

	snapshotsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "terrafusion_snapshots_published_total",
		Help: "Telemetry snapshots published.",
	})

	snapshotsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "terrafusion_snapshots_dropped_total",
		Help: "Snapshots not delivered to a subscriber whose buffer was full.",
	})

	snapshotSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "terrafusion_snapshot_subscribers",
		Help: "Current number of snapshot subscribers.",
	})

	streamConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "terrafusion_stream_connections",
			Help: "Open streaming connections by transport.",
		},
		[]string{"transport"},
	)

	streamRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrafusion_stream_rejected_total",
			Help: "Streaming connections rejected by the limiter.",
		},
		[]string{"reason"},
	)

	landmassLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrafusion_landmass_loads_total",
			Help: "Landmass load attempts by source and result.",
		},
		[]string{"source", "result"},
	)

	landmassPolygons = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "terrafusion_landmass_polygons",
		Help: "Polygons in the active landmass dataset.",
	})

	surfaceSamples = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "terrafusion_surface_samples",
			Help: "Surface grid samples by classification.",
		},
		[]string{"class"},
	)

	frameCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrafusion_frame_cache_requests_total",
			Help: "Encoded frame lookups by result.",
		},
		[]string{"result"},
	)

	coverageDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "terrafusion_coverage_prediction_seconds",
		Help:    "Time spent predicting coverage windows.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		framesTotal,
		frameDurationSeconds,
		frameElementsSkipped,
		snapshotsPublished,
		snapshotsDropped,
		snapshotSubscribers,
		streamConnections,
		streamRejected,
		landmassLoads,
		landmassPolygons,
		surfaceSamples,
		frameCacheRequests,
		coverageDurationSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFrame records one rendered frame.
func ObserveFrame(d time.Duration) {
	framesTotal.Inc()
	frameDurationSeconds.Observe(d.Seconds())
}

// ElementSkipped counts a frame element dropped from a frame.
func ElementSkipped(kind string) {
	frameElementsSkipped.WithLabelValues(kind).Inc()
}

// SnapshotPublished counts a published telemetry snapshot.
func SnapshotPublished() {
	snapshotsPublished.Inc()
}

// SnapshotDropped counts a snapshot a slow subscriber missed.
func SnapshotDropped() {
	snapshotsDropped.Inc()
}

// SetSubscribers sets the current snapshot subscriber count.
func SetSubscribers(n int) {
	snapshotSubscribers.Set(float64(n))
}

// StreamOpened and StreamClosed track open connections per transport.
func StreamOpened(transport string) {
	streamConnections.WithLabelValues(transport).Inc()
}

func StreamClosed(transport string) {
	streamConnections.WithLabelValues(transport).Dec()
}

// StreamRejected counts a connection refused by the stream limiter.
func StreamRejected(reason string) {
	streamRejected.WithLabelValues(reason).Inc()
}

// LandmassLoad records a landmass load attempt.
func LandmassLoad(source string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	landmassLoads.WithLabelValues(source, result).Inc()
}

// SetLandmassPolygons sets the polygon count of the active dataset.
func SetLandmassPolygons(n int) {
	landmassPolygons.Set(float64(n))
}

// SetSurfaceSamples sets the sample count for one classification.
func SetSurfaceSamples(class string, n int) {
	surfaceSamples.WithLabelValues(class).Set(float64(n))
}

// FrameCacheLookup records an encoded frame lookup.
func FrameCacheLookup(hit bool) {
	if hit {
		frameCacheRequests.WithLabelValues("hit").Inc()
		return
	}
	frameCacheRequests.WithLabelValues("miss").Inc()
}

// ObserveCoverage records how long a coverage prediction took.
func ObserveCoverage(d time.Duration) {
	coverageDurationSeconds.Observe(d.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// knownRoutes are the exact paths served by the API.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/registry":         true,
	"/api/v1/telemetry":        true,
	"/api/v1/status":           true,
	"/api/v1/frame.png":        true,
	"/api/v1/highlight":        true,
	"/api/v1/viewport":         true,
	"/api/v1/stream/telemetry": true,
	"/api/v1/stream/ws":        true,
	"/app.js":                  true,
	"/styles.css":              true,
}

// normalizeRoute maps a request path to a bounded label set so unknown paths
// and path parameters cannot explode metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, "/api/v1/coverage/"); ok && id != "" && !strings.Contains(id, "/") {
		return "/api/v1/coverage/{poi_id}"
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
