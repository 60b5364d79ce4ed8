// Package render runs the frame loop: it advances the simulation, projects
// the globe, hands each frame to a Surface for painting and publishes
// throttled telemetry snapshots.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/terrafusion/internal/highlight"
	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/metrics"
	"github.com/star/terrafusion/internal/propagation"
	"github.com/star/terrafusion/internal/surface"
	"github.com/star/terrafusion/internal/telemetry"
)

var (
	// ErrNoSurface is returned when there is nothing to paint on: a nil
	// surface or a viewport without area.
	ErrNoSurface = errors.New("no rendering surface")
	// ErrStopped is returned when a loop is used after Stop.
	ErrStopped = errors.New("render loop stopped")
	// ErrRunning is returned when Run is called on a loop that is already running.
	ErrRunning = errors.New("render loop already running")
)

const (
	DefaultFrameInterval   = 16 * time.Millisecond
	DefaultPublishInterval = 100 * time.Millisecond
)

// Surface paints frames. Paint is only ever called from the loop goroutine.
type Surface interface {
	Paint(f *Frame) error
}

// Publisher receives telemetry snapshots.
type Publisher interface {
	Publish(s *telemetry.Snapshot)
}

// Options configures a Loop.
type Options struct {
	Width, Height   int
	FrameInterval   time.Duration // default 16ms
	PublishInterval time.Duration // default 100ms

	// Ticker drives frames. Nil uses a wall clock ticker at FrameInterval.
	Ticker Ticker

	Markers   []Marker
	Agencies  []AgencyStatus
	Landmass  *landmass.Store // optional outline source
	Publisher Publisher       // optional
	Logger    *slog.Logger
}

type viewport struct{ width, height int }

// Loop owns the simulation and renders it frame by frame. The simulation,
// the last publish time and the frame sequence are touched only by the
// goroutine running the loop; Resize and SetHighlight may be called from
// anywhere and take effect on the next frame.
type Loop struct {
	opts    Options
	surface Surface
	grid    *surface.Grid
	logger  *slog.Logger

	simMu sync.Mutex
	sim   *propagation.Simulation

	viewport  atomic.Pointer[viewport]
	highlight atomic.Pointer[highlight.Inputs]
	rotation  atomic.Uint64 // math.Float64bits of the last rendered rotation
	frames    atomic.Uint64

	lastPublish time.Time
	seq         uint64

	mu       sync.Mutex
	running  bool
	stopped  bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop validates its inputs and creates a loop. It fails with
// ErrNoSurface when surf is nil or the viewport has no area.
func NewLoop(sim *propagation.Simulation, grid *surface.Grid, surf Surface, opts Options) (*Loop, error) {
	if surf == nil {
		return nil, fmt.Errorf("%w: surface is nil", ErrNoSurface)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: viewport %dx%d", ErrNoSurface, opts.Width, opts.Height)
	}
	if sim == nil {
		return nil, errors.New("render loop needs a simulation")
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = DefaultPublishInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	l := &Loop{
		opts:    opts,
		surface: surf,
		grid:    grid,
		logger:  opts.Logger,
		sim:     sim,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	l.viewport.Store(&viewport{opts.Width, opts.Height})
	l.highlight.Store(&highlight.Inputs{})
	return l, nil
}

// Run renders a frame per tick until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	switch {
	case l.stopped:
		l.mu.Unlock()
		return ErrStopped
	case l.running:
		l.mu.Unlock()
		return ErrRunning
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	ticker := l.opts.Ticker
	if ticker == nil {
		ticker = NewTimeTicker(l.opts.FrameInterval)
	}
	defer ticker.Stop()

	l.logger.Info("render loop started",
		"frame_interval_ms", l.opts.FrameInterval.Milliseconds(),
		"publish_interval_ms", l.opts.PublishInterval.Milliseconds(),
	)
	defer l.logger.Info("render loop stopped", "frames", l.frames.Load())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case now, ok := <-ticker.C():
			if !ok {
				return nil
			}
			// A tick and cancellation can be ready together.
			if err := ctx.Err(); err != nil {
				return err
			}
			l.frame(ctx, now)
		}
	}
}

// Stop cancels the loop and waits for Run to return. After Stop returns no
// further frame is painted and no snapshot is published. Stop is idempotent
// and safe to call before Run.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })

	l.mu.Lock()
	running := l.running
	l.stopped = true
	l.mu.Unlock()

	if running {
		<-l.done
	}
}

// RenderFrame renders a single frame at now on the calling goroutine. It is
// for callers that drive the loop themselves and must not be used while Run
// is active.
func (l *Loop) RenderFrame(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStopped
	}
	if l.running {
		return ErrRunning
	}
	l.frame(context.Background(), now)
	return nil
}

// Resize changes the viewport from the next frame on.
func (l *Loop) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", ErrNoSurface, width, height)
	}
	l.viewport.Store(&viewport{width, height})
	return nil
}

// Viewport returns the current viewport size.
func (l *Loop) Viewport() (width, height int) {
	vp := l.viewport.Load()
	return vp.width, vp.height
}

// SetHighlight replaces the search term and selected body id.
func (l *Loop) SetHighlight(term, selectedID string) {
	l.highlight.Store(&highlight.Inputs{Term: term, SelectedID: selectedID})
}

// Highlight returns the current highlight inputs.
func (l *Loop) Highlight() highlight.Inputs {
	return *l.highlight.Load()
}

// Rotation returns the globe rotation of the last rendered frame in degrees.
func (l *Loop) Rotation() float64 {
	return math.Float64frombits(l.rotation.Load())
}

// Frames returns how many frames have been rendered.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// State returns an independent copy of the simulation.
func (l *Loop) State() *propagation.Simulation {
	l.simMu.Lock()
	defer l.simMu.Unlock()
	return l.sim.Clone()
}

// frame runs one tick: step, build, paint, maybe publish.
func (l *Loop) frame(ctx context.Context, now time.Time) {
	start := time.Now()

	vp := l.viewport.Load()
	hl := *l.highlight.Load()

	l.simMu.Lock()
	l.sim.Step()
	l.seq++
	in := frameInput{
		seq:      l.seq,
		now:      now,
		tick:     l.sim.Tick,
		width:    vp.width,
		height:   vp.height,
		rotation: l.sim.Rotation,
		cfg:      l.sim.Config,
		bodies:   append([]propagation.Body(nil), l.sim.Bodies...),
		hl:       hl,
	}
	l.simMu.Unlock()
	l.rotation.Store(math.Float64bits(in.rotation))

	f := buildFrame(in, l.grid, l.opts.Markers, metrics.ElementSkipped)
	f.Agencies = l.opts.Agencies
	if l.opts.Landmass != nil {
		f.Landmass = l.opts.Landmass.Get()
	}

	if err := l.paint(f); err != nil {
		l.logger.Warn("frame paint failed", "seq", f.Seq, "error", err)
	}
	l.frames.Add(1)
	metrics.ObserveFrame(time.Since(start))

	if !l.lastPublish.IsZero() && now.Sub(l.lastPublish) < l.opts.PublishInterval {
		return
	}
	select {
	case <-l.stop:
		return
	default:
	}
	if ctx.Err() != nil {
		return
	}
	if l.opts.Publisher != nil {
		l.opts.Publisher.Publish(snapshotOf(f))
	}
	l.lastPublish = now
}

// paint calls the surface, converting a panic into an error.
func (l *Loop) paint(f *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ElementSkipped("paint")
			err = fmt.Errorf("paint panicked: %v", r)
		}
	}()
	return l.surface.Paint(f)
}

// snapshotOf builds the published telemetry from a frame.
func snapshotOf(f *Frame) *telemetry.Snapshot {
	focusLng, focusLat := f.Focus()
	s := &telemetry.Snapshot{
		Time:     f.Time,
		Tick:     f.Tick,
		Rotation: f.Projection.Rotation,
		FocusLng: focusLng,
		FocusLat: focusLat,
		Bodies:   make([]telemetry.Entry, len(f.Bodies)),
	}
	for i, b := range f.Bodies {
		s.Bodies[i] = telemetry.Entry{
			ID:          b.ID,
			Label:       b.Label,
			Agency:      b.Agency,
			Lat:         b.State.Lat,
			Lng:         b.State.Lng,
			AltKm:       b.State.AltKm,
			Color:       b.Color,
			Highlighted: b.Highlighted,
			Visible:     b.Nadir.Visible,
		}
	}
	return s
}
