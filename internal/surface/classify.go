package surface

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/star/terrafusion/internal/metrics"
	"github.com/star/terrafusion/internal/observability"
	"github.com/star/terrafusion/internal/transform"
)

// Landmass answers whether a point is land, and whether that land is urban.
type Landmass interface {
	Locate(lng, lat float64) (land, urban bool)
}

// UrbanZone marks land within RadiusDeg degrees of arc of a centre as urban.
type UrbanZone struct {
	Lng, Lat  float64
	RadiusDeg float64
}

// chunkSize is the number of samples handed to a worker at a time.
const chunkSize = 512

type chunk struct{ lo, hi int }

// Classify computes a classification for every sample with a pool of workers
// and swaps it in as one complete slice. Each sample is written exactly once
// by exactly one worker. If ctx is cancelled first, the current
// classification is left untouched.
func Classify(ctx context.Context, g *Grid, lm Landmass, zones []UrbanZone, workers int, logger *slog.Logger) error {
	ctx, span := observability.Start(ctx, "surface.classify",
		attribute.Int("surface.samples", g.Len()),
		attribute.Int("surface.workers", workers),
	)
	defer span.End()

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	start := time.Now()
	out := make([]Class, g.Len())

	jobs := make(chan chunk, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				for j := c.lo; j < c.hi; j++ {
					s := g.Samples[j]
					out[j] = classifyOne(s.Lng, s.Lat, lm, zones)
				}
			}
		}()
	}

	// Feed jobs; stop early on cancellation.
	func() {
		defer close(jobs)
		for lo := 0; lo < len(out); lo += chunkSize {
			hi := min(lo+chunkSize, len(out))
			select {
			case jobs <- chunk{lo, hi}:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return err
	}

	g.setClasses(out)
	counts := g.Counts()
	for c, n := range counts {
		metrics.SetSurfaceSamples(c.String(), n)
	}
	logger.Info("surface classified",
		"samples", g.Len(),
		"land", counts[Land],
		"urban", counts[Urban],
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func classifyOne(lng, lat float64, lm Landmass, zones []UrbanZone) Class {
	if lm == nil {
		return Ocean
	}
	land, urban := lm.Locate(lng, lat)
	if !land {
		return Ocean
	}
	if urban {
		return Urban
	}
	for _, z := range zones {
		if transform.Degrees(transform.AngularDistance(lng, lat, z.Lng, z.Lat)) <= z.RadiusDeg {
			return Urban
		}
	}
	return Land
}
