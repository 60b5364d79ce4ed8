package landmass

import (
	"fmt"
	"log/slog"
	"strings"

	geojson "github.com/paulmach/go.geojson"
)

// Parse decodes a GeoJSON FeatureCollection into a Dataset. Features that are
// not polygons or multipolygons are skipped, as are degenerate rings.
func Parse(data []byte, logger *slog.Logger) (*Dataset, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding feature collection: %w", err)
	}

	ds := &Dataset{}
	var skipped int
	for i, f := range fc.Features {
		if f.Geometry == nil {
			skipped++
			continue
		}
		name := featureName(f, i)
		urban := isUrban(f)

		switch {
		case f.Geometry.IsPolygon():
			if p, ok := toPolygon(name, urban, f.Geometry.Polygon); ok {
				ds.add(p)
			} else {
				skipped++
			}
		case f.Geometry.IsMultiPolygon():
			for _, rings := range f.Geometry.MultiPolygon {
				if p, ok := toPolygon(name, urban, rings); ok {
					ds.add(p)
				} else {
					skipped++
				}
			}
		default:
			skipped++
		}
	}

	if len(ds.Polygons) == 0 {
		return nil, fmt.Errorf("no usable polygons in %d features", len(fc.Features))
	}
	if skipped > 0 {
		logger.Warn("skipped landmass features", "skipped", skipped, "polygons", len(ds.Polygons))
	}
	return ds, nil
}

func (d *Dataset) add(p Polygon) {
	d.Polygons = append(d.Polygons, p)
	d.Vertices += len(p.Outer)
	for _, h := range p.Holes {
		d.Vertices += len(h)
	}
}

func toPolygon(name string, urban bool, rings [][][]float64) (Polygon, bool) {
	if len(rings) == 0 {
		return Polygon{}, false
	}
	outer, ok := toRing(rings[0])
	if !ok {
		return Polygon{}, false
	}
	var holes []Ring
	for _, r := range rings[1:] {
		if h, ok := toRing(r); ok {
			holes = append(holes, h)
		}
	}
	return newPolygon(name, urban, outer, holes), true
}

func toRing(coords [][]float64) (Ring, bool) {
	r := make(Ring, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		r = append(r, [2]float64{c[0], c[1]})
	}
	return r, len(r) >= 3
}

func featureName(f *geojson.Feature, idx int) string {
	for _, key := range []string{"name", "NAME", "featurecla"} {
		if s, err := f.PropertyString(key); err == nil && s != "" {
			return s
		}
	}
	return fmt.Sprintf("feature-%d", idx)
}

// isUrban checks the Natural Earth style classification properties.
func isUrban(f *geojson.Feature) bool {
	for _, key := range []string{"featurecla", "class"} {
		if s, err := f.PropertyString(key); err == nil && strings.Contains(strings.ToLower(s), "urban") {
			return true
		}
	}
	return false
}
