package passes

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/star/terrafusion/internal/propagation"
)

// equatorSim has one body on the equator moving one degree of longitude per
// tick with no rotation coupling, so windows fall on known ticks.
func equatorSim() *propagation.Simulation {
	cfg := propagation.Config{RotationStep: 0, Tilt: 20, DriftDamping: 0}
	return propagation.NewSimulation(cfg, []propagation.Body{
		propagation.NewBody("EQ", "Equator-1", "TEST", "#ffffff", propagation.OrbitalParams{
			AngularSpeed:   2 * math.Pi / 360,
			RadiusFactor:   1.2,
			InclinationDeg: 0,
			SwathHalfWidth: 0.1, // ~5.7 degrees
		}),
	})
}

func TestPredictSingleWindow(t *testing.T) {
	res, err := Predict(context.Background(), Request{
		Sim:          equatorSim(),
		Lng:          90,
		Lat:          0,
		HorizonTicks: 360,
		TickInterval: 16 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].BodyID != "EQ" {
		t.Fatalf("results = %+v", res)
	}
	if res[0].Error != "" {
		t.Fatalf("unexpected error: %s", res[0].Error)
	}
	if len(res[0].Windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(res[0].Windows))
	}

	w := res[0].Windows[0]
	if w.StartTick != 85 || w.EndTick != 95 || w.ClosestTick != 90 {
		t.Errorf("window ticks = %d..%d closest %d, want 85..95 closest 90", w.StartTick, w.EndTick, w.ClosestTick)
	}
	if w.DurationTicks != 11 {
		t.Errorf("duration = %d ticks, want 11", w.DurationTicks)
	}
	if w.MinDistanceRad > 1e-9 {
		t.Errorf("min distance = %v, want ~0", w.MinDistanceRad)
	}
	if math.Abs(w.StartInSeconds-85*0.016) > 1e-9 || math.Abs(w.DurationSeconds-11*0.016) > 1e-9 {
		t.Errorf("seconds = %v + %v", w.StartInSeconds, w.DurationSeconds)
	}
	if len(w.GroundTrack) != 2 || w.GroundTrack[0].Tick != 85 || w.GroundTrack[1].Tick != 95 {
		t.Errorf("ground track = %+v", w.GroundTrack)
	}
}

func TestPredictRepeatsEachRevolution(t *testing.T) {
	sim := equatorSim()
	sim.StepN(100) // start past the first window

	res, err := Predict(context.Background(), Request{Sim: sim, Lng: 90, HorizonTicks: 800})
	if err != nil {
		t.Fatal(err)
	}
	ws := res[0].Windows
	if len(ws) != 2 {
		t.Fatalf("windows = %d, want 2", len(ws))
	}
	for i, want := range []uint64{445, 805} {
		if ws[i].StartTick != want {
			t.Errorf("window %d starts at %d, want %d", i, ws[i].StartTick, want)
		}
	}
	if sim.Tick != 100 {
		t.Error("Predict advanced the caller's simulation")
	}
}

func TestPredictMaxWindows(t *testing.T) {
	res, err := Predict(context.Background(), Request{Sim: equatorSim(), Lng: 90, HorizonTicks: 5000, MaxWindows: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(res[0].Windows) != 3 {
		t.Errorf("windows = %d, want 3", len(res[0].Windows))
	}
}

func TestPredictOutOfReach(t *testing.T) {
	// An equatorial swath never reaches 60 degrees north.
	res, err := Predict(context.Background(), Request{Sim: equatorSim(), Lng: 90, Lat: 60, HorizonTicks: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Windows == nil || len(res[0].Windows) != 0 {
		t.Errorf("windows = %+v, want empty", res[0].Windows)
	}
}

func TestPredictInvalid(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"no simulation", Request{HorizonTicks: 10}},
		{"zero horizon", Request{Sim: equatorSim()}},
		{"huge horizon", Request{Sim: equatorSim(), HorizonTicks: maxHorizon + 1}},
		{"bad latitude", Request{Sim: equatorSim(), HorizonTicks: 10, Lat: 91}},
		{"bad longitude", Request{Sim: equatorSim(), HorizonTicks: 10, Lng: -200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Predict(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestPredictCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Predict(ctx, Request{Sim: equatorSim(), Lng: 90, HorizonTicks: 1000})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
