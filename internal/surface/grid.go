// Package surface builds the sparse lattice of surface samples used for globe
// shading and swath highlighting, and holds their land/ocean/urban
// classification.
package surface

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/star/terrafusion/internal/transform"
)

// Class is the surface classification of a sample. The zero value is Ocean.
type Class uint8

const (
	Ocean Class = iota
	Land
	Urban
)

func (c Class) String() string {
	switch c {
	case Land:
		return "land"
	case Urban:
		return "urban"
	default:
		return "ocean"
	}
}

// minCosLat bounds the longitude step widening near the poles.
const minCosLat = 0.1

// Sample is one surface lattice point.
type Sample struct {
	Lng, Lat  float64
	Elevation float64 // static shading scalar in [0, 1]
}

// Grid is the immutable sample lattice plus its current classification.
type Grid struct {
	Step    float64
	Samples []Sample

	classes atomic.Pointer[[]Class]
}

// NewGrid builds a lattice at roughly uniform angular spacing. Latitude rows
// start half a step above the south pole; the longitude step on each row is
// widened by 1/cos(lat), clamped, so rows near the poles are not crowded.
func NewGrid(step float64) (*Grid, error) {
	if !(step > 0) || step > 90 || math.IsInf(step, 0) {
		return nil, fmt.Errorf("grid step %v out of range (0, 90]", step)
	}

	g := &Grid{Step: step}
	for lat := -90 + step/2; lat < 90; lat += step {
		lngStep := step / math.Max(math.Cos(transform.Radians(lat)), minCosLat)
		for lng := -180.0; lng < 180; lng += lngStep {
			g.Samples = append(g.Samples, Sample{
				Lng:       lng,
				Lat:       lat,
				Elevation: elevation(lng, lat),
			})
		}
	}

	defaults := make([]Class, len(g.Samples))
	g.classes.Store(&defaults)
	return g, nil
}

// elevation is a smooth deterministic pseudo-relief in [0, 1].
func elevation(lng, lat float64) float64 {
	l, p := transform.Radians(lng), transform.Radians(lat)
	v := math.Sin(3*l)*math.Cos(2*p) + 0.5*math.Sin(7*l+1.3)*math.Sin(5*p+0.7)
	return (v/1.5 + 1) / 2
}

// Len returns the number of samples.
func (g *Grid) Len() int { return len(g.Samples) }

// Classes returns the classification slice in effect. The returned slice is
// never mutated; a reclassification swaps in a new one.
func (g *Grid) Classes() []Class {
	return *g.classes.Load()
}

// setClasses publishes a complete classification.
func (g *Grid) setClasses(cs []Class) {
	g.classes.Store(&cs)
}

// Counts tallies samples per class in the current classification.
func (g *Grid) Counts() map[Class]int {
	out := map[Class]int{Ocean: 0, Land: 0, Urban: 0}
	for _, c := range g.Classes() {
		out[c]++
	}
	return out
}

// InSwath reports whether a sample lies within halfWidth radians of arc of a
// body's nadir point.
func InSwath(sampleLng, sampleLat, nadirLng, nadirLat, halfWidth float64) bool {
	if !(halfWidth > 0) {
		return false
	}
	d := transform.AngularDistance(sampleLng, sampleLat, nadirLng, nadirLat)
	return d <= halfWidth
}
