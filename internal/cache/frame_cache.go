// Package cache keeps encoded copies of the most recently painted frame.
//
// The render loop never waits on the cache. Readers ask for a format and get
// the last encoding while it is current or younger than MaxAge; only older
// entries are re-encoded. A background warmer re-encodes the PNG every
// WarmInterval, so with MaxAge above that HTTP requests usually hit.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/terrafusion/internal/metrics"
)

// ErrNoFrame is returned before the first frame has been painted.
var ErrNoFrame = errors.New("no frame painted yet")

// Format is an image encoding served by the cache.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// ParseFormat maps a file extension or format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "png", ".png":
		return PNG, nil
	case "jpg", "jpeg", ".jpg", ".jpeg":
		return JPEG, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

// Source is the painter the cache reads from.
type Source interface {
	Seq() uint64
	Snapshot() (img *image.RGBA, seq uint64, at time.Time, ok bool)
}

// Config holds cache configuration.
type Config struct {
	JPEGQuality  int           // default: 85
	WarmInterval time.Duration // how often the warmer re-encodes PNG (default: 250ms)
	MaxAge       time.Duration // how long a superseded encoding is still served (default: 2*WarmInterval)
}

// Entry is one encoded frame.
type Entry struct {
	Format    Format
	Data      []byte
	Seq       uint64
	PaintedAt time.Time
	EncodedAt time.Time
}

// FrameCache holds the latest encoding per format. Safe for concurrent use.
type FrameCache struct {
	mu      sync.Mutex
	entries map[Format]*Entry

	src    Source
	config Config
	logger *slog.Logger
	png    png.Encoder
	now    func() time.Time

	hits    atomic.Int64
	misses  atomic.Int64
	encodes atomic.Int64
}

// NewFrameCache creates a cache over src.
func NewFrameCache(src Source, config Config, logger *slog.Logger) *FrameCache {
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = 85
	}
	if config.WarmInterval <= 0 {
		config.WarmInterval = 250 * time.Millisecond
	}
	if config.MaxAge <= 0 {
		config.MaxAge = 2 * config.WarmInterval
	}
	return &FrameCache{
		entries: make(map[Format]*Entry),
		src:     src,
		config:  config,
		logger:  logger,
		png:     png.Encoder{CompressionLevel: png.BestSpeed},
		now:     time.Now,
	}
}

// Get returns a recent encoding of the painted canvas in format f. The entry
// may trail the painter by up to MaxAge.
func (c *FrameCache) Get(f Format) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[f]; ok && c.fresh(e) {
		c.hits.Add(1)
		metrics.FrameCacheLookup(true)
		return e, nil
	}
	c.misses.Add(1)
	metrics.FrameCacheLookup(false)

	e, err := c.encodeLocked(f)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// fresh reports whether e can be served: it shows the painter's current
// frame, or it was encoded less than MaxAge ago.
func (c *FrameCache) fresh(e *Entry) bool {
	return e.Seq == c.src.Seq() || c.now().Sub(e.EncodedAt) < c.config.MaxAge
}

// encodeLocked snapshots the source and encodes it. Caller holds mu.
func (c *FrameCache) encodeLocked(f Format) (*Entry, error) {
	img, seq, at, ok := c.src.Snapshot()
	if !ok {
		return nil, ErrNoFrame
	}

	var buf bytes.Buffer
	switch f {
	case PNG:
		if err := c.png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.config.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", f)
	}

	e := &Entry{
		Format:    f,
		Data:      buf.Bytes(),
		Seq:       seq,
		PaintedAt: at,
		EncodedAt: c.now(),
	}
	c.entries[f] = e
	c.encodes.Add(1)
	return e, nil
}

// Stats returns current cache statistics.
func (c *FrameCache) Stats() Stats {
	c.mu.Lock()
	var size int64
	var seq uint64
	for _, e := range c.entries {
		size += int64(len(e.Data))
		seq = max(seq, e.Seq)
	}
	count := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Entries:   count,
		SizeBytes: size,
		Seq:       seq,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Encodes:   c.encodes.Load(),
	}
}

// Stats holds cache statistics.
type Stats struct {
	Entries   int    `json:"entries"`
	SizeBytes int64  `json:"size_bytes"`
	Seq       uint64 `json:"seq"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Encodes   int64  `json:"encodes"`
}
