package landmass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/star/terrafusion/internal/metrics"
	"github.com/star/terrafusion/internal/observability"
)

// LoaderConfig selects where a landmass dataset may come from.
type LoaderConfig struct {
	URL        string
	Fetch      bool // allow the network fetch
	CacheDir   string
	MaxFiles   int
	UseOutline bool // fall back to the embedded outline
}

// Loader resolves one landmass dataset from cache, network or the embedded
// outline, in that order.
type Loader struct {
	cfg     LoaderConfig
	fetcher *Fetcher
	cache   *Cache
	logger  *slog.Logger
}

// NewLoader creates a Loader. An empty CacheDir disables the disk cache.
func NewLoader(cfg LoaderConfig, logger *slog.Logger) *Loader {
	l := &Loader{cfg: cfg, logger: logger}
	if cfg.Fetch {
		l.fetcher = NewFetcher(cfg.URL, logger)
	}
	if cfg.CacheDir != "" {
		l.cache = NewCache(cfg.CacheDir, cfg.MaxFiles)
	}
	return l
}

// ErrUnavailable is returned when every configured source failed.
var ErrUnavailable = errors.New("no landmass source available")

// Load returns the first dataset that resolves. Individual source failures
// are logged and the next source is tried.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	ctx, span := observability.Start(ctx, "landmass.load")
	defer span.End()

	ds, err := l.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("landmass.source", ds.Source),
		attribute.Int("landmass.polygons", len(ds.Polygons)),
	)
	metrics.SetLandmassPolygons(len(ds.Polygons))
	return ds, nil
}

func (l *Loader) load(ctx context.Context) (*Dataset, error) {
	if l.cache != nil {
		ds, err := l.fromCache()
		metrics.LandmassLoad("cache", err == nil)
		if err == nil {
			return ds, nil
		}
		if !errors.Is(err, ErrNoCache) {
			l.logger.Warn("landmass cache unusable", "error", err)
		}
	}

	if l.fetcher != nil {
		ds, err := l.fromNetwork(ctx)
		metrics.LandmassLoad("network", err == nil)
		if err == nil {
			return ds, nil
		}
		l.logger.Warn("landmass fetch failed", "url", l.fetcher.SourceURL(), "error", err)
	}

	if l.cfg.UseOutline {
		ds, err := Outline(l.logger)
		metrics.LandmassLoad("outline", err == nil)
		if err == nil {
			ds.FetchedAt = time.Now()
			return ds, nil
		}
		l.logger.Warn("embedded outline unusable", "error", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}

func (l *Loader) fromCache() (*Dataset, error) {
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return nil, err
	}
	ds, err := Parse(data, l.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing cached landmass: %w", err)
	}
	ds.Source = "cache"
	ds.FetchedAt = ts
	l.logger.Info("landmass loaded from cache", "polygons", len(ds.Polygons), "fetched_at", ts)
	return ds, nil
}

func (l *Loader) fromNetwork(ctx context.Context) (*Dataset, error) {
	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := Parse(data, l.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing fetched landmass: %w", err)
	}
	now := time.Now()
	ds.Source = l.fetcher.SourceURL()
	ds.FetchedAt = now

	if l.cache != nil {
		if err := l.cache.Write(data, now); err != nil {
			l.logger.Warn("landmass cache write failed", "error", err)
		}
	}
	l.logger.Info("landmass fetched", "polygons", len(ds.Polygons), "vertices", ds.Vertices)
	return ds, nil
}
