package landmass

import "math"

func newPolygon(name string, urban bool, outer Ring, holes []Ring) Polygon {
	p := Polygon{
		Name:   name,
		Urban:  urban,
		Outer:  outer,
		Holes:  holes,
		MinLng: math.Inf(1), MinLat: math.Inf(1),
		MaxLng: math.Inf(-1), MaxLat: math.Inf(-1),
	}
	for _, v := range outer {
		p.MinLng = math.Min(p.MinLng, v[0])
		p.MaxLng = math.Max(p.MaxLng, v[0])
		p.MinLat = math.Min(p.MinLat, v[1])
		p.MaxLat = math.Max(p.MaxLat, v[1])
	}
	return p
}

// Contains reports whether (lng, lat) lies inside the polygon and outside all
// of its holes.
func (p *Polygon) Contains(lng, lat float64) bool {
	if lng < p.MinLng || lng > p.MaxLng || lat < p.MinLat || lat > p.MaxLat {
		return false
	}
	if !p.Outer.contains(lng, lat) {
		return false
	}
	for _, h := range p.Holes {
		if h.contains(lng, lat) {
			return false
		}
	}
	return true
}

// contains is the even-odd ray casting test in planar lng/lat space.
func (r Ring) contains(lng, lat float64) bool {
	in := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := r[i][0], r[i][1]
		xj, yj := r[j][0], r[j][1]
		if (yi > lat) != (yj > lat) && lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			in = !in
		}
	}
	return in
}

// Locate classifies a surface point against the dataset. Urban polygons are
// also land.
func (d *Dataset) Locate(lng, lat float64) (land, urban bool) {
	if d == nil {
		return false, false
	}
	for i := range d.Polygons {
		p := &d.Polygons[i]
		if !p.Contains(lng, lat) {
			continue
		}
		land = true
		if p.Urban {
			return true, true
		}
	}
	return land, false
}
