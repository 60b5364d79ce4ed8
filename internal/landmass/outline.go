package landmass

import (
	_ "embed"
	"log/slog"
)

// outlineGeoJSON is a coarse illustrative continent outline used when no
// dataset can be fetched or read from cache.
//
//go:embed outline.geojson
var outlineGeoJSON []byte

// OutlineSource names the embedded outline in Dataset.Source.
const OutlineSource = "embedded:outline"

// Outline parses the embedded continent outline.
func Outline(logger *slog.Logger) (*Dataset, error) {
	ds, err := Parse(outlineGeoJSON, logger)
	if err != nil {
		return nil, err
	}
	ds.Source = OutlineSource
	return ds, nil
}
