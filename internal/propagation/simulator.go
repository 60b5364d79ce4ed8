// Package propagation advances the tracked bodies of the globe simulation.
//
// The model is illustrative, not physical: each body's phase angle grows by a
// fixed amount per tick, and its nadir point is derived from the phase and the
// globe rotation. A body also has a purely decorative screen-space orbit
// ellipse that is deliberately independent of the nadir point.
package propagation

import (
	"math"

	"github.com/star/terrafusion/internal/transform"
)

const (
	// AltitudeScaleKm converts (RadiusFactor - 1) into kilometres.
	AltitudeScaleKm = 3500.0
	// BaseAltitudeKm is the altitude of a body with RadiusFactor 1.
	BaseAltitudeKm = 400.0
	// EllipseCompression is the vertical squash of the decorative orbit ring.
	EllipseCompression = 0.4
)

// NewBody creates a body whose phase starts at params.Phase.
func NewBody(id, label, agency, color string, params OrbitalParams) Body {
	return Body{
		ID:           id,
		Label:        label,
		Agency:       agency,
		Color:        color,
		Params:       params,
		initialPhase: params.Phase,
	}
}

// Advance moves the body forward n ticks. The phase is recomputed from the
// initial phase and the tick count so repeated stepping does not accumulate
// rounding drift.
func (b *Body) Advance(n uint64) {
	b.Ticks += n
	b.Params.Phase = b.initialPhase + float64(b.Ticks)*b.Params.AngularSpeed
}

// Derive computes the nadir latitude, longitude and altitude of a body for the
// given globe rotation (degrees).
func Derive(b Body, rotation, damping float64) State {
	phase := b.Params.Phase
	return State{
		Lat:   math.Sin(phase) * b.Params.InclinationDeg,
		Lng:   transform.NormalizeLongitude(transform.Degrees(phase) - rotation*damping),
		AltKm: (b.Params.RadiusFactor-1)*AltitudeScaleKm + BaseAltitudeKm,
	}
}

// OrbitEllipse returns the screen position of the body on its decorative
// orbit ring centred at (cx, cy) for a globe of the given pixel scale.
func OrbitEllipse(b Body, scale, cx, cy float64) (x, y float64) {
	rx, ry := EllipseRadii(b, scale)
	return cx + math.Cos(b.Params.Phase)*rx, cy + math.Sin(b.Params.Phase)*ry
}

// EllipseRadii returns the horizontal and vertical radii of the decorative ring.
func EllipseRadii(b Body, scale float64) (rx, ry float64) {
	rx = scale * b.Params.RadiusFactor
	return rx, rx * EllipseCompression
}

// Simulation is the explicitly owned simulation context: globe rotation, the
// tracked bodies and the tick counter. It is not safe for concurrent use; one
// goroutine owns it and others receive clones.
type Simulation struct {
	Config   Config
	Rotation float64 // degrees, grows by Config.RotationStep every tick
	Tick     uint64
	Bodies   []Body
}

// NewSimulation creates a simulation for the given bodies. The slice is copied.
func NewSimulation(cfg Config, bodies []Body) *Simulation {
	bs := make([]Body, len(bodies))
	copy(bs, bodies)
	return &Simulation{
		Config: cfg,
		Bodies: bs,
	}
}

// Step advances the rotation by one increment and every body by one tick.
func (s *Simulation) Step() {
	s.Rotation += s.Config.RotationStep
	s.Tick++
	for i := range s.Bodies {
		s.Bodies[i].Advance(1)
	}
}

// StepN performs n steps.
func (s *Simulation) StepN(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// States derives the current state of every body, in body order.
func (s *Simulation) States() []State {
	out := make([]State, len(s.Bodies))
	for i, b := range s.Bodies {
		out[i] = Derive(b, s.Rotation, s.Config.DriftDamping)
	}
	return out
}

// Clone returns an independent copy of the simulation.
func (s *Simulation) Clone() *Simulation {
	c := *s
	c.Bodies = make([]Body, len(s.Bodies))
	copy(c.Bodies, s.Bodies)
	return &c
}

// Body returns the body with the given id.
func (s *Simulation) Body(id string) (Body, bool) {
	for _, b := range s.Bodies {
		if b.ID == id {
			return b, true
		}
	}
	return Body{}, false
}
