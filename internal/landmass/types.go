package landmass

import "time"

// Ring is a closed sequence of [lng, lat] vertices in degrees.
type Ring [][2]float64

// Polygon is one landmass polygon with its bounding box precomputed.
type Polygon struct {
	Name  string
	Urban bool
	Outer Ring
	Holes []Ring

	MinLng, MinLat float64
	MaxLng, MaxLat float64
}

// Dataset is an immutable set of landmass polygons.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Polygons  []Polygon
	Vertices  int
}
