package propagation

import (
	"math"
	"testing"
)

func testBody() Body {
	return NewBody("S1", "Sentinel-2A", "ESA", "#38bdf8", OrbitalParams{
		Phase:          0,
		AngularSpeed:   0.003,
		RadiusFactor:   1.3,
		InclinationDeg: 35,
		SwathHalfWidth: 0.12,
	})
}

// TestAdvanceThousandTicks is the reference scenario: speed 0.003 rad/tick,
// inclination 35 degrees, 1000 ticks from phase 0.
func TestAdvanceThousandTicks(t *testing.T) {
	b := testBody()
	b.Advance(1000)

	if b.Params.Phase != 3.0 {
		t.Errorf("phase = %v, want 3.0", b.Params.Phase)
	}

	st := Derive(b, 0, 1.0)
	want := math.Sin(3.0) * 35
	if math.Abs(st.Lat-want) > 1e-12 {
		t.Errorf("lat = %v, want %v", st.Lat, want)
	}
	if math.Abs(st.Lat-4.939) > 0.001 {
		t.Errorf("lat = %v, want ~4.94", st.Lat)
	}
}

// TestAdvanceMatchesLinearPhase checks phase == initial + N*speed for a
// variety of tick counts and step patterns.
func TestAdvanceMatchesLinearPhase(t *testing.T) {
	b := NewBody("L9", "Landsat-9", "NASA", "#818cf8", OrbitalParams{
		Phase:        1.5 * math.Pi,
		AngularSpeed: -0.0018,
	})

	var total uint64
	for _, n := range []uint64{1, 7, 100, 1, 5000} {
		b.Advance(n)
		total += n
		want := 1.5*math.Pi + float64(total)*-0.0018
		if math.Abs(b.Params.Phase-want) > 1e-12 {
			t.Fatalf("after %d ticks phase = %v, want %v", total, b.Params.Phase, want)
		}
	}
	if b.Ticks != total {
		t.Errorf("ticks = %d, want %d", b.Ticks, total)
	}
}

func TestDeriveLatitudeBounded(t *testing.T) {
	for _, incl := range []float64{-45, 0, 15, 75} {
		b := NewBody("X", "X", "", "", OrbitalParams{AngularSpeed: 0.0137, InclinationDeg: incl})
		limit := math.Abs(incl)
		for i := 0; i < 5000; i++ {
			b.Advance(1)
			st := Derive(b, float64(i)*0.15, 1.0)
			if st.Lat < -limit-1e-12 || st.Lat > limit+1e-12 {
				t.Fatalf("incl %v tick %d: lat %v out of bounds", incl, i, st.Lat)
			}
		}
	}
}

func TestDeriveLongitudeNormalized(t *testing.T) {
	b := testBody()
	for i := 0; i < 20000; i++ {
		b.Advance(1)
		st := Derive(b, float64(i)*0.15, 1.0)
		if st.Lng <= -180 || st.Lng > 180 {
			t.Fatalf("tick %d: lng %v outside (-180, 180]", i, st.Lng)
		}
	}
}

// TestDeriveLongitudeCycles checks the longitude sweeps the full circle as the
// phase advances through 2*pi with the rotation held fixed.
func TestDeriveLongitudeCycles(t *testing.T) {
	b := NewBody("C3", "Cartosat-3", "ISRO", "#10b981", OrbitalParams{AngularSpeed: 2 * math.Pi / 360})
	seen := make(map[int]bool)
	for i := 0; i < 360; i++ {
		st := Derive(b, 42, 1.0)
		seen[int(math.Floor(st.Lng))] = true
		b.Advance(1)
	}
	if len(seen) < 350 {
		t.Errorf("longitude visited %d distinct degrees over one revolution, want ~360", len(seen))
	}
}

func TestDeriveAltitude(t *testing.T) {
	tests := []struct {
		factor float64
		want   float64
	}{
		{1.0, 400},
		{1.3, 1450},
		{1.6, 2500},
	}
	for _, tt := range tests {
		b := NewBody("A", "A", "", "", OrbitalParams{RadiusFactor: tt.factor})
		if got := Derive(b, 0, 1).AltKm; math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("factor %v: alt = %v, want %v", tt.factor, got, tt.want)
		}
	}
}

// TestOrbitEllipseIndependent verifies the decorative ring uses only the
// phase and radius factor, not the nadir point.
func TestOrbitEllipseIndependent(t *testing.T) {
	b := testBody()
	b.Advance(500)

	x, y := OrbitEllipse(b, 250, 400, 300)
	rx, ry := EllipseRadii(b, 250)
	if math.Abs(rx-325) > 1e-9 || math.Abs(ry-130) > 1e-9 {
		t.Fatalf("radii = (%v, %v), want (325, 130)", rx, ry)
	}
	nx := (x - 400) / rx
	ny := (y - 300) / ry
	if math.Abs(nx*nx+ny*ny-1) > 1e-9 {
		t.Errorf("point (%v, %v) not on ellipse", x, y)
	}

	// Rotation moves the nadir point; the ring has no rotation input at all.
	if Derive(b, 0, 1).Lng == Derive(b, 90, 1).Lng {
		t.Error("nadir longitude should drift with rotation")
	}
}

func TestSimulationStepAndClone(t *testing.T) {
	cfg := DefaultConfig()
	sim := NewSimulation(cfg, []Body{testBody()})
	sim.StepN(10)

	if sim.Tick != 10 {
		t.Errorf("tick = %d, want 10", sim.Tick)
	}
	if math.Abs(sim.Rotation-1.5) > 1e-12 {
		t.Errorf("rotation = %v, want 1.5", sim.Rotation)
	}

	clone := sim.Clone()
	clone.StepN(5)
	if sim.Tick != 10 || sim.Bodies[0].Ticks != 10 {
		t.Error("stepping the clone mutated the original")
	}
	if clone.Bodies[0].Ticks != 15 {
		t.Errorf("clone body ticks = %d, want 15", clone.Bodies[0].Ticks)
	}

	states := sim.States()
	if len(states) != 1 {
		t.Fatalf("states = %d, want 1", len(states))
	}
	if _, ok := sim.Body("S1"); !ok {
		t.Error("Body(S1) not found")
	}
	if _, ok := sim.Body("nope"); ok {
		t.Error("Body(nope) should not be found")
	}
}
