package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/star/terrafusion/internal/config"
	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/propagation"
	"github.com/star/terrafusion/internal/registry"
	"github.com/star/terrafusion/internal/render"
	"github.com/star/terrafusion/internal/surface"
)

// components are the parts shared by serve and render.
type components struct {
	reg      *registry.Registry
	grid     *surface.Grid
	painter  *render.ImageSurface
	landmass *landmass.Store
}

func buildComponents(cfg config.Config) (*components, error) {
	reg, err := loadRegistry(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	grid, err := surface.NewGrid(cfg.GridStep)
	if err != nil {
		return nil, fmt.Errorf("building surface grid: %w", err)
	}
	painter, err := render.NewImageSurface(cfg.FontSize)
	if err != nil {
		return nil, fmt.Errorf("creating painter: %w", err)
	}
	return &components{reg: reg, grid: grid, painter: painter, landmass: landmass.NewStore()}, nil
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.Load(path)
}

// newLoop builds a render loop over a fresh simulation of the registry bodies.
func (c *components) newLoop(cfg config.Config, opts render.Options) (*render.Loop, error) {
	sim := propagation.NewSimulation(cfg.Sim, c.reg.PropagationBodies())
	opts.Width = cfg.ViewportWidth
	opts.Height = cfg.ViewportHeight
	opts.FrameInterval = cfg.FrameInterval
	opts.PublishInterval = cfg.PublishInterval
	opts.Markers = markers(c.reg)
	opts.Agencies = agencies(c.reg)
	opts.Landmass = c.landmass
	return render.NewLoop(sim, c.grid, c.painter, opts)
}

// resolveLandmass loads the landmass dataset and classifies the grid with it.
// Failures are logged; the globe keeps rendering with ocean samples.
func (c *components) resolveLandmass(ctx context.Context, cfg config.Config, logger *slog.Logger) {
	ds, err := landmass.NewLoader(cfg.Landmass, logger).Load(ctx)
	if err != nil {
		logger.Warn("landmass unavailable, rendering without it", "error", err)
		return
	}
	c.landmass.Set(ds)
	if err := surface.Classify(ctx, c.grid, ds, c.reg.UrbanZones(), cfg.ClassifyWorkers, logger); err != nil {
		logger.Warn("surface classification failed", "error", err)
	}
}

// checkSelection rejects a selected id that names no registered body. An
// empty id clears the selection and is always valid.
func checkSelection(reg *registry.Registry, id string) error {
	if id == "" {
		return nil
	}
	for _, b := range reg.Bodies {
		if b.ID == id {
			return nil
		}
	}
	return fmt.Errorf("unknown body id %q", id)
}

func markers(reg *registry.Registry) []render.Marker {
	out := make([]render.Marker, len(reg.POIs))
	for i, p := range reg.POIs {
		out[i] = render.Marker{ID: p.ID, Label: p.Label, Lng: p.Lng, Lat: p.Lat}
	}
	return out
}

// agencies takes each agency's HUD colour from the first body it operates.
func agencies(reg *registry.Registry) []render.AgencyStatus {
	colors := make(map[string]string)
	for _, b := range reg.Bodies {
		if _, ok := colors[b.Agency]; !ok {
			colors[b.Agency] = b.Color
		}
	}
	out := make([]render.AgencyStatus, len(reg.Agencies))
	for i, a := range reg.Agencies {
		out[i] = render.AgencyStatus{Name: a.Name, Link: a.Link, Status: a.Status, Color: colors[a.Name]}
	}
	return out
}
