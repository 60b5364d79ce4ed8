// Package transform implements the rotating orthographic globe projection:
// longitude/latitude to screen pixels, hemisphere visibility, and the angle
// helpers the rest of the renderer relies on.
//
// Sign convention: a Projection with Rotation R and Tilt T is centred on the
// surface point (lng = -R, lat = T). That point maps to (TranslateX, TranslateY).
package transform

import "math"

// ScaleDivisor relates the globe radius in pixels to the smaller viewport edge.
const ScaleDivisor = 2.4

// horizon is the angular distance (radians) at which points leave the visible hemisphere.
const horizon = math.Pi / 2

// Projection is the rotating orthographic projection state for one frame.
type Projection struct {
	Rotation   float64 // longitude offset in degrees, grows every frame
	Tilt       float64 // latitude of the view centre in degrees
	Scale      float64 // pixels per globe radius
	TranslateX float64 // globe centre in pixels
	TranslateY float64
}

// ScreenPoint is the result of projecting a surface point. X and Y are only
// meaningful when Visible is true.
type ScreenPoint struct {
	X, Y    float64
	Visible bool
}

// hidden is the not-visible result.
var hidden = ScreenPoint{}

// NewProjection builds the projection for a width x height viewport.
func NewProjection(width, height int, rotation, tilt float64) Projection {
	return Projection{
		Rotation:   rotation,
		Tilt:       tilt,
		Scale:      ScaleFor(width, height),
		TranslateX: float64(width) / 2,
		TranslateY: float64(height) / 2,
	}
}

// ScaleFor returns the globe radius in pixels for a viewport.
func ScaleFor(width, height int) float64 {
	return math.Min(float64(width), float64(height)) / ScaleDivisor
}

// Center returns the sub-view-centre surface point (lng, lat) in degrees.
func (p Projection) Center() (lng, lat float64) {
	return NormalizeLongitude(-p.Rotation), ClampLatitude(p.Tilt)
}

// Distance returns the angular distance in radians between a point and the view centre.
func (p Projection) Distance(lng, lat float64) float64 {
	cLng, cLat := p.Center()
	return AngularDistance(cLng, cLat, lng, lat)
}

// Visible reports whether (lng, lat) lies on the front hemisphere.
func (p Projection) Visible(lng, lat float64) bool {
	if !finite(lng, lat) {
		return false
	}
	d := p.Distance(lng, lat)
	return finite(d) && d < horizon
}

// Fade returns a limb-darkening weight in [0, 1]: 1 at the view centre, 0 at
// and beyond the horizon.
func (p Projection) Fade(lng, lat float64) float64 {
	if !finite(lng, lat) {
		return 0
	}
	d := p.Distance(lng, lat)
	if !finite(d) || d >= horizon {
		return 0
	}
	return math.Cos(d)
}

// Project maps (lng, lat) in degrees to screen coordinates. Points on the far
// hemisphere, or any input producing a non-finite coordinate, come back with
// Visible == false.
func (p Projection) Project(lng, lat float64) ScreenPoint {
	if !finite(lng, lat, p.Rotation, p.Tilt, p.Scale, p.TranslateX, p.TranslateY) {
		return hidden
	}
	if !p.Visible(lng, lat) {
		return hidden
	}

	cLng, cLat := p.Center()
	dLng := Radians(NormalizeLongitude(lng - cLng))
	phi := Radians(ClampLatitude(lat))
	phi0 := Radians(cLat)

	cosPhi := math.Cos(phi)
	x := cosPhi * math.Sin(dLng)
	y := math.Cos(phi0)*math.Sin(phi) - math.Sin(phi0)*cosPhi*math.Cos(dLng)

	sx := p.TranslateX + p.Scale*x
	sy := p.TranslateY - p.Scale*y
	if !finite(sx, sy) {
		return hidden
	}
	return ScreenPoint{X: sx, Y: sy, Visible: true}
}
