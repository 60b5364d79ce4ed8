// Package registry loads the static table of tracked bodies, agencies and
// points of interest.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/star/terrafusion/internal/propagation"
	"github.com/star/terrafusion/internal/surface"
)

//go:embed registry.yaml
var defaultRegistry []byte

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid registry")

// BodySpec is one tracked body as written in the registry file.
type BodySpec struct {
	ID             string  `yaml:"id" json:"id"`
	Label          string  `yaml:"label" json:"label"`
	Agency         string  `yaml:"agency" json:"agency"`
	Color          string  `yaml:"color" json:"color"`
	Phase          float64 `yaml:"phase" json:"phase"`
	AngularSpeed   float64 `yaml:"angular_speed" json:"angular_speed"`
	RadiusFactor   float64 `yaml:"radius_factor" json:"radius_factor"`
	Inclination    float64 `yaml:"inclination" json:"inclination"`
	SwathHalfWidth float64 `yaml:"swath_half_width" json:"swath_half_width"`
}

// Agency is an operator with a link status shown on the HUD.
type Agency struct {
	Name   string `yaml:"name" json:"name"`
	Link   string `yaml:"link" json:"link"`
	Status string `yaml:"status" json:"status"`
}

// POI is a marked point of interest. Land within UrbanRadius degrees of it is
// classified as urban; zero disables that.
type POI struct {
	ID          string  `yaml:"id" json:"id"`
	Label       string  `yaml:"label" json:"label"`
	Lat         float64 `yaml:"lat" json:"lat"`
	Lng         float64 `yaml:"lng" json:"lng"`
	UrbanRadius float64 `yaml:"urban_radius" json:"urban_radius"`
}

// Registry is the parsed, validated registry.
type Registry struct {
	Bodies   []BodySpec `yaml:"bodies" json:"bodies"`
	Agencies []Agency   `yaml:"agencies" json:"agencies"`
	POIs     []POI      `yaml:"points_of_interest" json:"points_of_interest"`
}

// Default returns the embedded registry.
func Default() (*Registry, error) {
	return Parse(defaultRegistry)
}

// Load reads a registry file. An empty path returns the embedded default.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a registry document.
func Parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks ids are unique and every number is usable.
func (r *Registry) Validate() error {
	if len(r.Bodies) == 0 {
		return fmt.Errorf("%w: no bodies", ErrInvalid)
	}
	seen := make(map[string]bool, len(r.Bodies))
	for i, b := range r.Bodies {
		if b.ID == "" {
			return fmt.Errorf("%w: body %d has no id", ErrInvalid, i)
		}
		if seen[b.ID] {
			return fmt.Errorf("%w: duplicate body id %q", ErrInvalid, b.ID)
		}
		seen[b.ID] = true
		for name, v := range map[string]float64{
			"phase":            b.Phase,
			"angular_speed":    b.AngularSpeed,
			"radius_factor":    b.RadiusFactor,
			"inclination":      b.Inclination,
			"swath_half_width": b.SwathHalfWidth,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: body %q %s is not finite", ErrInvalid, b.ID, name)
			}
		}
		if b.RadiusFactor < 1 {
			return fmt.Errorf("%w: body %q radius_factor %v below 1", ErrInvalid, b.ID, b.RadiusFactor)
		}
		if math.Abs(b.Inclination) > 90 {
			return fmt.Errorf("%w: body %q inclination %v outside [-90, 90]", ErrInvalid, b.ID, b.Inclination)
		}
		if b.SwathHalfWidth < 0 {
			return fmt.Errorf("%w: body %q swath_half_width is negative", ErrInvalid, b.ID)
		}
		if _, err := ParseColor(b.Color); err != nil {
			return fmt.Errorf("%w: body %q: %v", ErrInvalid, b.ID, err)
		}
	}

	pois := make(map[string]bool, len(r.POIs))
	for i, p := range r.POIs {
		if p.ID == "" {
			return fmt.Errorf("%w: point of interest %d has no id", ErrInvalid, i)
		}
		if pois[p.ID] {
			return fmt.Errorf("%w: duplicate point of interest %q", ErrInvalid, p.ID)
		}
		pois[p.ID] = true
		if math.Abs(p.Lat) > 90 || math.Abs(p.Lng) > 180 || math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
			return fmt.Errorf("%w: point of interest %q at (%v, %v)", ErrInvalid, p.ID, p.Lat, p.Lng)
		}
		if p.UrbanRadius < 0 {
			return fmt.Errorf("%w: point of interest %q urban_radius is negative", ErrInvalid, p.ID)
		}
	}
	return nil
}

// PropagationBodies converts the registry entries into simulation bodies.
func (r *Registry) PropagationBodies() []propagation.Body {
	out := make([]propagation.Body, len(r.Bodies))
	for i, b := range r.Bodies {
		out[i] = propagation.NewBody(b.ID, b.Label, b.Agency, b.Color, propagation.OrbitalParams{
			Phase:          b.Phase,
			AngularSpeed:   b.AngularSpeed,
			RadiusFactor:   b.RadiusFactor,
			InclinationDeg: b.Inclination,
			SwathHalfWidth: b.SwathHalfWidth,
		})
	}
	return out
}

// UrbanZones returns the points of interest that mark urban land.
func (r *Registry) UrbanZones() []surface.UrbanZone {
	var out []surface.UrbanZone
	for _, p := range r.POIs {
		if p.UrbanRadius > 0 {
			out = append(out, surface.UrbanZone{Lng: p.Lng, Lat: p.Lat, RadiusDeg: p.UrbanRadius})
		}
	}
	return out
}

// POI returns the point of interest with the given id.
func (r *Registry) POI(id string) (POI, bool) {
	for _, p := range r.POIs {
		if p.ID == id {
			return p, true
		}
	}
	return POI{}, false
}

// ParseColor parses "#rgb" or "#rrggbb" into an opaque colour.
func ParseColor(s string) (color.RGBA, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.RGBA{}, fmt.Errorf("colour %q must start with #", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("colour %q must have 3 or 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
