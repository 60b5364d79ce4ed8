// Package passes predicts when tracked bodies will observe a point of interest.
//
// Prediction runs on a clone of the live simulation, so it never disturbs the
// render loop. Positions are evaluated tick by tick: a coarse scan finds a tick
// where the point lies inside a body's swath, then a one-tick scan from just
// before that hit pins down where the window opens and closes.
package passes

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/star/terrafusion/internal/metrics"
	"github.com/star/terrafusion/internal/observability"
	"github.com/star/terrafusion/internal/propagation"
	"github.com/star/terrafusion/internal/surface"
	"github.com/star/terrafusion/internal/transform"
)

// ErrInvalidRequest is returned for a request that cannot be predicted.
var ErrInvalidRequest = errors.New("invalid coverage request")

const (
	coarseStep     = 10 // ticks between coarse scan samples
	fineStep       = 1  // ticks between refinement samples
	trackStep      = 10 // ticks between ground track samples inside a window
	maxHorizon     = 1_000_000
	defaultWindows = 10
)

// TrackPoint is a nadir position during a window.
type TrackPoint struct {
	Tick uint64  `json:"tick"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Window is one interval during which the target lies inside a body's swath.
// Tick values are absolute simulation ticks; both ends are inclusive.
type Window struct {
	StartTick       uint64       `json:"start_tick"`
	ClosestTick     uint64       `json:"closest_tick"`
	EndTick         uint64       `json:"end_tick"`
	DurationTicks   uint64       `json:"duration_ticks"`
	StartInSeconds  float64      `json:"start_in_seconds"`
	DurationSeconds float64      `json:"duration_seconds"`
	MinDistanceRad  float64      `json:"min_distance_rad"`
	GroundTrack     []TrackPoint `json:"ground_track"`
}

// BodyCoverage holds the predicted windows for one body.
type BodyCoverage struct {
	BodyID  string   `json:"body_id"`
	Label   string   `json:"label"`
	Windows []Window `json:"windows"`
	Error   string   `json:"error,omitempty"`
}

// Request holds the parameters of a coverage prediction.
type Request struct {
	Sim          *propagation.Simulation // cloned before use
	Lng, Lat     float64                 // target, degrees
	HorizonTicks int
	MaxWindows   int           // per body (default: 10)
	TickInterval time.Duration // converts ticks to seconds; zero leaves the *_seconds fields at 0
}

func (r Request) validate() error {
	switch {
	case r.Sim == nil:
		return fmt.Errorf("%w: no simulation", ErrInvalidRequest)
	case r.HorizonTicks <= 0 || r.HorizonTicks > maxHorizon:
		return fmt.Errorf("%w: horizon %d outside 1..%d", ErrInvalidRequest, r.HorizonTicks, maxHorizon)
	case r.Lat < -90 || r.Lat > 90 || r.Lng < -180 || r.Lng > 180:
		return fmt.Errorf("%w: target (%v, %v) out of range", ErrInvalidRequest, r.Lng, r.Lat)
	}
	return nil
}

// Predict computes the coverage windows of every body in the simulation.
// Each body is scanned in its own goroutine, bounded by a semaphore.
func Predict(ctx context.Context, req Request) ([]BodyCoverage, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.MaxWindows <= 0 {
		req.MaxWindows = defaultWindows
	}

	ctx, span := observability.Start(ctx, "passes.predict",
		attribute.Int("horizon_ticks", req.HorizonTicks),
		attribute.Float64("target_lng", req.Lng),
		attribute.Float64("target_lat", req.Lat),
	)
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveCoverage(time.Since(start)) }()

	sim := req.Sim.Clone()
	results := make([]BodyCoverage, len(sim.Bodies))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, b := range sim.Bodies {
		wg.Add(1)
		go func(idx int, b propagation.Body) {
			defer wg.Done()
			results[idx] = BodyCoverage{BodyID: b.ID, Label: b.Label, Windows: []Window{}}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx].Error = "cancelled"
				return
			}

			sc := scanner{req: req, sim: sim, body: b}
			windows, err := sc.scan(ctx)
			results[idx].Windows = append(results[idx].Windows, windows...)
			if err != nil {
				results[idx].Error = err.Error()
			}
		}(i, b)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return results, err
	}
	return results, nil
}

// scanner evaluates one body against the target.
type scanner struct {
	req  Request
	sim  *propagation.Simulation
	body propagation.Body
}

// at returns the body's nadir k ticks after the cloned simulation.
func (s scanner) at(k int) propagation.State {
	b := s.body
	b.Advance(uint64(k))
	rotation := s.sim.Rotation + float64(k)*s.sim.Config.RotationStep
	return propagation.Derive(b, rotation, s.sim.Config.DriftDamping)
}

func (s scanner) inside(st propagation.State) bool {
	return surface.InSwath(s.req.Lng, s.req.Lat, st.Lng, st.Lat, s.body.Params.SwathHalfWidth)
}

func (s scanner) scan(ctx context.Context) ([]Window, error) {
	var windows []Window
	k := 0
	for k <= s.req.HorizonTicks && len(windows) < s.req.MaxWindows {
		if err := ctx.Err(); err != nil {
			return windows, err
		}
		if !s.inside(s.at(k)) {
			k += coarseStep
			continue
		}
		w, end := s.refine(max(k-coarseStep+1, 0))
		windows = append(windows, w)
		k = end + coarseStep
	}
	return windows, nil
}

// refine scans one tick at a time from `from` until the target leaves the
// swath or the horizon ends. It returns the window and its last inside tick.
func (s scanner) refine(from int) (Window, int) {
	var (
		w        Window
		closest  int
		minDist  float64
		lastSeen propagation.State
	)
	rise, last := -1, from
	for k := from; k <= s.req.HorizonTicks; k += fineStep {
		st := s.at(k)
		if !s.inside(st) {
			if rise >= 0 {
				break
			}
			continue
		}
		d := transform.AngularDistance(s.req.Lng, s.req.Lat, st.Lng, st.Lat)
		if rise < 0 {
			rise, closest, minDist = k, k, d
		} else if d < minDist {
			closest, minDist = k, d
		}
		if (k-rise)%trackStep == 0 {
			w.GroundTrack = append(w.GroundTrack, s.track(k, st))
		}
		last, lastSeen = k, st
	}
	if last != rise && (last-rise)%trackStep != 0 {
		w.GroundTrack = append(w.GroundTrack, s.track(last, lastSeen))
	}

	base := s.sim.Tick
	w.StartTick = base + uint64(rise)
	w.ClosestTick = base + uint64(closest)
	w.EndTick = base + uint64(last)
	w.DurationTicks = uint64(last-rise) + 1
	w.MinDistanceRad = minDist
	if iv := s.req.TickInterval.Seconds(); iv > 0 {
		w.StartInSeconds = float64(rise) * iv
		w.DurationSeconds = float64(w.DurationTicks) * iv
	}
	return w, last
}

func (s scanner) track(k int, st propagation.State) TrackPoint {
	return TrackPoint{Tick: s.sim.Tick + uint64(k), Lat: st.Lat, Lng: st.Lng}
}
