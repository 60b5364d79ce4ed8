package render

import (
	"math"
	"time"

	"github.com/star/terrafusion/internal/highlight"
	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/propagation"
	"github.com/star/terrafusion/internal/surface"
	"github.com/star/terrafusion/internal/transform"
)

// Marker is a point of interest drawn with a pulsing ring.
type Marker struct {
	ID    string
	Label string
	Lng   float64
	Lat   float64
}

// AgencyStatus is one agency link shown on the HUD.
type AgencyStatus struct {
	Name   string
	Link   string
	Status string
	Color  string
}

// SamplePoint is a visible surface sample ready to paint.
type SamplePoint struct {
	X, Y      float64
	Class     surface.Class
	Elevation float64
	Fade      float64 // 1 at the view centre, approaching 0 at the limb
	Swath     int     // index into Frame.Bodies of the observing body, or -1
}

// BodyPoint is a tracked body ready to paint.
type BodyPoint struct {
	ID          string
	Label       string
	Agency      string
	Color       string
	State       propagation.State
	Nadir       transform.ScreenPoint
	OrbitX      float64 // position on the decorative ring
	OrbitY      float64
	RadiusX     float64
	RadiusY     float64
	Highlighted bool
}

// MarkerPoint is a visible point of interest.
type MarkerPoint struct {
	ID    string
	Label string
	X, Y  float64
}

// Frame is everything the painter needs for one tick. Only visible samples
// and markers are included; bodies are always included so their rings can be
// drawn even when the nadir point is on the far side.
type Frame struct {
	Seq        uint64
	Time       time.Time
	Tick       uint64
	Width      int
	Height     int
	Projection transform.Projection
	Highlight  highlight.Inputs

	Samples  []SamplePoint
	Bodies   []BodyPoint
	Markers  []MarkerPoint
	Agencies []AgencyStatus
	Landmass *landmass.Dataset

	// Skipped counts elements dropped while building this frame.
	Skipped int
}

// Focus returns the surface point under the view centre.
func (f *Frame) Focus() (lng, lat float64) {
	return f.Projection.Center()
}

// frameInput is the state a frame is built from, copied out of the loop.
type frameInput struct {
	seq      uint64
	now      time.Time
	tick     uint64
	width    int
	height   int
	rotation float64
	cfg      propagation.Config
	bodies   []propagation.Body
	hl       highlight.Inputs
}

// buildFrame projects bodies, samples and markers. Any element whose
// computation panics or yields a non-finite value is skipped and reported
// through skip.
func buildFrame(in frameInput, grid *surface.Grid, markers []Marker, skip func(kind string)) *Frame {
	proj := transform.NewProjection(in.width, in.height, in.rotation, in.cfg.Tilt)
	f := &Frame{
		Seq:        in.seq,
		Time:       in.now,
		Tick:       in.tick,
		Width:      in.width,
		Height:     in.height,
		Projection: proj,
		Highlight:  in.hl,
	}
	dropped := func(kind string) {
		f.Skipped++
		skip(kind)
	}

	f.Bodies = make([]BodyPoint, 0, len(in.bodies))
	swaths := make([]propagation.Body, 0, len(in.bodies))
	for _, b := range in.bodies {
		var bp BodyPoint
		ok := guard(func() bool {
			st := propagation.Derive(b, in.rotation, in.cfg.DriftDamping)
			if !finite(st.Lat, st.Lng, st.AltKm) {
				return false
			}
			ox, oy := propagation.OrbitEllipse(b, proj.Scale, proj.TranslateX, proj.TranslateY)
			rx, ry := propagation.EllipseRadii(b, proj.Scale)
			if !finite(ox, oy, rx, ry) {
				return false
			}
			bp = BodyPoint{
				ID:          b.ID,
				Label:       b.Label,
				Agency:      b.Agency,
				Color:       b.Color,
				State:       st,
				Nadir:       proj.Project(st.Lng, st.Lat),
				OrbitX:      ox,
				OrbitY:      oy,
				RadiusX:     rx,
				RadiusY:     ry,
				Highlighted: in.hl.Match(b.ID, b.Label),
			}
			return true
		})
		if !ok {
			dropped("body")
			continue
		}
		f.Bodies = append(f.Bodies, bp)
		swaths = append(swaths, b)
	}

	if grid != nil {
		classes := grid.Classes()
		f.Samples = make([]SamplePoint, 0, len(grid.Samples)/2)
		for i, s := range grid.Samples {
			var sp SamplePoint
			visible := false
			ok := guard(func() bool {
				p := proj.Project(s.Lng, s.Lat)
				if !p.Visible {
					return true
				}
				visible = true
				sp = SamplePoint{
					X:         p.X,
					Y:         p.Y,
					Elevation: s.Elevation,
					Fade:      proj.Fade(s.Lng, s.Lat),
					Swath:     -1,
				}
				if i < len(classes) {
					sp.Class = classes[i]
				}
				for j := range f.Bodies {
					st := f.Bodies[j].State
					if surface.InSwath(s.Lng, s.Lat, st.Lng, st.Lat, swaths[j].Params.SwathHalfWidth) {
						sp.Swath = j
						break
					}
				}
				return finite(sp.Fade)
			})
			if !ok {
				dropped("sample")
				continue
			}
			if visible {
				f.Samples = append(f.Samples, sp)
			}
		}
	}

	for _, m := range markers {
		var mp MarkerPoint
		visible := false
		ok := guard(func() bool {
			p := proj.Project(m.Lng, m.Lat)
			if p.Visible {
				visible = true
				mp = MarkerPoint{ID: m.ID, Label: m.Label, X: p.X, Y: p.Y}
			}
			return true
		})
		if !ok {
			dropped("marker")
			continue
		}
		if visible {
			f.Markers = append(f.Markers, mp)
		}
	}
	return f
}

// guard runs fn and converts a panic into a false result.
func guard(fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return fn()
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
