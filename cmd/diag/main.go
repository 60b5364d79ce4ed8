// Command diag prints body states after a number of ticks and the coverage
// windows over each point of interest, for eyeballing registry changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/star/terrafusion/internal/passes"
	"github.com/star/terrafusion/internal/propagation"
	"github.com/star/terrafusion/internal/registry"
)

func main() {
	path := flag.String("registry", "", "registry file (default: embedded)")
	ticks := flag.Int("ticks", 0, "ticks to advance before reporting")
	horizon := flag.Int("horizon", 5000, "coverage horizon in ticks")
	interval := flag.Duration("interval", 16*time.Millisecond, "tick interval used for the seconds columns")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	reg, err := registry.Default()
	if *path != "" {
		reg, err = registry.Load(*path)
	}
	if err != nil {
		logger.Error("loading registry", "error", err)
		os.Exit(1)
	}

	sim := propagation.NewSimulation(propagation.DefaultConfig(), reg.PropagationBodies())
	sim.StepN(*ticks)

	fmt.Printf("Tick %d, rotation %.2f°\n", sim.Tick, sim.Rotation)
	for i, st := range sim.States() {
		fmt.Printf("  %-4s lat=%7.2f lng=%8.2f alt=%6.0fkm\n", sim.Bodies[i].ID, st.Lat, st.Lng, st.AltKm)
	}

	for _, poi := range reg.POIs {
		results, err := passes.Predict(context.Background(), passes.Request{
			Sim:          sim,
			Lng:          poi.Lng,
			Lat:          poi.Lat,
			HorizonTicks: *horizon,
			TickInterval: *interval,
		})
		if err != nil {
			logger.Error("coverage prediction failed", "poi_id", poi.ID, "error", err)
			os.Exit(1)
		}

		total := 0
		fmt.Printf("\n%s (%.2f, %.2f)\n", poi.Label, poi.Lat, poi.Lng)
		for _, body := range results {
			if body.Error != "" {
				fmt.Printf("  %s: ERROR %s\n", body.BodyID, body.Error)
				continue
			}
			fmt.Printf("  %s: %d windows\n", body.BodyID, len(body.Windows))
			total += len(body.Windows)
			for j, w := range body.Windows {
				fmt.Printf("    window %d: ticks %d-%d closest=%d dist=%.3frad in=%.1fs dur=%.1fs\n",
					j, w.StartTick, w.EndTick, w.ClosestTick, w.MinDistanceRad, w.StartInSeconds, w.DurationSeconds)
			}
		}
		fmt.Printf("  total windows: %d\n", total)
	}
}
