package propagation

// OrbitalParams are the illustrative orbit parameters of a tracked body.
// None of these are physical elements; they only drive the animation.
type OrbitalParams struct {
	Phase          float64 // radians, advanced every tick
	AngularSpeed   float64 // radians per tick; the sign sets the direction
	RadiusFactor   float64 // orbit radius as a multiple of the globe radius
	InclinationDeg float64 // peak |latitude| of the nadir track
	SwathHalfWidth float64 // radians of surface arc observed either side of nadir
}

// Body is a tracked satellite. ID is stable for the lifetime of the process
// and is the join key for search and selection state.
type Body struct {
	ID     string
	Label  string
	Agency string
	Color  string // hex colour tag, e.g. "#38bdf8"
	Params OrbitalParams

	// Ticks counts how many times the body has been advanced.
	Ticks uint64

	initialPhase float64
}

// State is the derived geographic position of a body. It is recomputed every
// tick and never stored on the Body.
type State struct {
	Lat   float64 // degrees, within ±InclinationDeg
	Lng   float64 // degrees, (-180, 180]
	AltKm float64
}

// Config holds the tunable simulation constants.
type Config struct {
	RotationStep float64 // degrees added to the globe rotation every tick (default: 0.15)
	Tilt         float64 // latitude of the view centre in degrees (default: 20)
	DriftDamping float64 // coupling of globe rotation into nadir longitude (default: 1.0)
}

// DefaultConfig returns the constants used by the dashboard.
func DefaultConfig() Config {
	return Config{
		RotationStep: 0.15,
		Tilt:         20,
		DriftDamping: 1.0,
	}
}
