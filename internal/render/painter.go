package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/registry"
	"github.com/star/terrafusion/internal/surface"
	"github.com/star/terrafusion/internal/transform"
)

// Palette colours.
var (
	colBackground = color.RGBA{0x01, 0x03, 0x0c, 0xff}
	colGlow       = color.NRGBA{56, 189, 248, 40}
	colGlobe      = color.NRGBA{0x02, 0x06, 0x17, 0xff}
	colLimb       = color.NRGBA{56, 189, 248, 70}
	colGraticule  = color.NRGBA{148, 163, 184, 28}
	colOutline    = color.NRGBA{56, 189, 248, 60}
	colOcean      = color.NRGBA{14, 42, 71, 255}
	colLand       = color.NRGBA{51, 65, 85, 255}
	colUrban      = color.NRGBA{250, 204, 21, 255}
	colPOI        = color.NRGBA{0xfb, 0xbf, 0x24, 0xff}
	colLabel      = color.NRGBA{148, 163, 184, 200}
	colLeader     = color.NRGBA{148, 163, 184, 80}
	colHUD        = color.NRGBA{100, 116, 139, 255}
	colHUDValue   = color.NRGBA{56, 189, 248, 255}
	colFallback   = color.NRGBA{226, 232, 240, 255}
)

const (
	glowOuterFactor = 1.3
	pulsePeriod     = 2 * time.Second
	graticuleStep   = 30.0
	densifyStep     = 2.0 // degrees between interpolated outline vertices
)

// ImageSurface paints frames into an in-memory RGBA canvas. Snapshot may be
// called from any goroutine.
type ImageSurface struct {
	mu     sync.Mutex
	img    *image.RGBA
	seq    uint64
	at     time.Time
	label  *labeler
	colors map[string]color.NRGBA
}

// NewImageSurface creates a painter with labels at the given font size.
func NewImageSurface(fontSize float64) (*ImageSurface, error) {
	lb, err := newLabeler(fontSize)
	if err != nil {
		return nil, err
	}
	return &ImageSurface{label: lb, colors: make(map[string]color.NRGBA)}, nil
}

// Paint renders f back to front.
func (s *ImageSurface) Paint(f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil || s.img.Rect.Dx() != f.Width || s.img.Rect.Dy() != f.Height {
		s.img = image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	}
	img := s.img
	draw.Draw(img, img.Rect, image.NewUniform(colBackground), image.Point{}, draw.Src)
	s.label.bind(img)

	p := f.Projection
	cx, cy, r := p.TranslateX, p.TranslateY, p.Scale

	radialGlow(img, cx, cy, r*0.95, r*glowOuterFactor, colGlow)
	fillEllipse(img, cx, cy, r, r, colGlobe)
	strokeEllipse(img, cx, cy, r, r, 1.5, colLimb)

	s.paintGraticule(img, p)
	if f.Landmass != nil {
		s.paintOutline(img, p, f.Landmass)
	}
	s.paintSamples(img, f)
	s.paintRings(img, f)
	s.paintMarkers(img, f)
	s.paintBodies(img, f)

	var errs []string
	if err := s.paintLabels(f); err != nil {
		errs = append(errs, err.Error())
	}
	if err := s.paintHUD(img, f); err != nil {
		errs = append(errs, err.Error())
	}

	s.seq = f.Seq
	s.at = f.Time
	if len(errs) > 0 {
		return fmt.Errorf("painting frame %d: %s", f.Seq, strings.Join(errs, "; "))
	}
	return nil
}

// Snapshot returns a copy of the last painted canvas and its frame sequence.
// ok is false until the first frame is painted.
func (s *ImageSurface) Snapshot() (img *image.RGBA, seq uint64, at time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil, 0, time.Time{}, false
	}
	cp := image.NewRGBA(s.img.Rect)
	copy(cp.Pix, s.img.Pix)
	return cp, s.seq, s.at, true
}

// Seq returns the sequence number of the last painted frame.
func (s *ImageSurface) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *ImageSurface) Close() error {
	return s.label.Close()
}

// color resolves a body colour tag, caching parsed values.
func (s *ImageSurface) color(tag string) color.NRGBA {
	if c, ok := s.colors[tag]; ok {
		return c
	}
	c := colFallback
	if parsed, err := registry.ParseColor(tag); err == nil {
		c = rgbaToNRGBA(parsed)
	}
	s.colors[tag] = c
	return c
}

// polyline projects a lng/lat path and strokes the visible runs.
func polyline(img *image.RGBA, p transform.Projection, pts [][2]float64, c color.NRGBA) {
	maxSeg := 4 * p.Scale
	var prev transform.ScreenPoint
	for i, v := range pts {
		sp := p.Project(v[0], v[1])
		if i > 0 && prev.Visible && sp.Visible && math.Hypot(sp.X-prev.X, sp.Y-prev.Y) < maxSeg {
			line(img, int(prev.X), int(prev.Y), int(sp.X), int(sp.Y), c)
		}
		prev = sp
	}
}

func (s *ImageSurface) paintGraticule(img *image.RGBA, p transform.Projection) {
	for lng := -180.0; lng < 180; lng += graticuleStep {
		var pts [][2]float64
		for lat := -90.0; lat <= 90; lat += densifyStep {
			pts = append(pts, [2]float64{lng, lat})
		}
		polyline(img, p, pts, colGraticule)
	}
	for lat := -60.0; lat <= 60; lat += graticuleStep {
		var pts [][2]float64
		for lng := -180.0; lng <= 180; lng += densifyStep {
			pts = append(pts, [2]float64{lng, lat})
		}
		polyline(img, p, pts, colGraticule)
	}
}

func (s *ImageSurface) paintOutline(img *image.RGBA, p transform.Projection, ds *landmass.Dataset) {
	for i := range ds.Polygons {
		poly := &ds.Polygons[i]
		polyline(img, p, densify(poly.Outer), colOutline)
		for _, h := range poly.Holes {
			polyline(img, p, densify(h), colOutline)
		}
	}
}

// densify inserts vertices so no edge spans more than densifyStep degrees.
func densify(r landmass.Ring) [][2]float64 {
	out := make([][2]float64, 0, len(r))
	for i, v := range r {
		if i > 0 {
			u := r[i-1]
			n := int(math.Max(math.Abs(v[0]-u[0]), math.Abs(v[1]-u[1])) / densifyStep)
			for k := 1; k < n; k++ {
				t := float64(k) / float64(n)
				out = append(out, [2]float64{u[0] + (v[0]-u[0])*t, u[1] + (v[1]-u[1])*t})
			}
		}
		out = append(out, v)
	}
	return out
}

func (s *ImageSurface) paintSamples(img *image.RGBA, f *Frame) {
	half := max(1, int(f.Projection.Scale/180))
	for _, sp := range f.Samples {
		var c color.NRGBA
		switch {
		case sp.Swath >= 0 && sp.Swath < len(f.Bodies):
			c = s.color(f.Bodies[sp.Swath].Color)
		case sp.Class == surface.Urban:
			c = colUrban
		case sp.Class == surface.Land:
			c = shade(colLand, 0.7+0.6*sp.Elevation)
		default:
			c = shade(colOcean, 0.8+0.4*sp.Elevation)
		}
		fillRect(img, sp.X, sp.Y, half, withAlpha(c, 0.25+0.75*sp.Fade))
	}
}

// shade scales the colour channels by k.
func shade(c color.NRGBA, k float64) color.NRGBA {
	ch := func(v uint8) uint8 { return uint8(math.Max(0, math.Min(255, float64(v)*k))) }
	return color.NRGBA{ch(c.R), ch(c.G), ch(c.B), c.A}
}

func (s *ImageSurface) paintRings(img *image.RGBA, f *Frame) {
	cx, cy := f.Projection.TranslateX, f.Projection.TranslateY
	for _, b := range f.Bodies {
		if !b.Highlighted {
			continue
		}
		strokeEllipse(img, cx, cy, b.RadiusX, b.RadiusY, 1, withAlpha(s.color(b.Color), 0.45))
	}
}

func (s *ImageSurface) paintMarkers(img *image.RGBA, f *Frame) {
	pulse := float64(f.Time.UnixMilli()%pulsePeriod.Milliseconds()) / float64(pulsePeriod.Milliseconds())
	for _, m := range f.Markers {
		fillEllipse(img, m.X, m.Y, 2, 2, colPOI)
		strokeEllipse(img, m.X, m.Y, 4+pulse*10, 4+pulse*10, 1, withAlpha(colPOI, 1-pulse))
	}
}

func (s *ImageSurface) paintBodies(img *image.RGBA, f *Frame) {
	for _, b := range f.Bodies {
		c := s.color(b.Color)
		if b.Nadir.Visible {
			fillEllipse(img, b.Nadir.X, b.Nadir.Y, 3, 3, withAlpha(c, 0.9))
			strokeEllipse(img, b.Nadir.X, b.Nadir.Y, 6, 6, 1, withAlpha(c, 0.5))
		}
		fillEllipse(img, b.OrbitX, b.OrbitY, 7, 7, withAlpha(c, 0.2))
		fillRect(img, b.OrbitX, b.OrbitY, 2, c)
	}
}

func (s *ImageSurface) paintLabels(f *Frame) error {
	for _, b := range f.Bodies {
		if !b.Highlighted {
			continue
		}
		x, y := int(b.OrbitX), int(b.OrbitY)
		line(s.img, x, y, x+10, y-10, colLeader)
		if err := s.label.draw(b.Label, x+12, y-10, colLabel); err != nil {
			return err
		}
	}
	for _, m := range f.Markers {
		if err := s.label.draw(m.Label, int(m.X)+8, int(m.Y)+4, withAlpha(colPOI, 0.8)); err != nil {
			return err
		}
	}
	return nil
}

func (s *ImageSurface) paintHUD(img *image.RGBA, f *Frame) error {
	lh := s.label.lineHeight()
	focusLng, focusLat := f.Focus()
	rows := [][2]string{
		{"RADIAL_ROT", humanize.FtoaWithDigits(math.Mod(f.Projection.Rotation, 360), 2) + "°"},
		{"NADIR_FOCUS", fmt.Sprintf("%.2f, %.2f", focusLat, focusLng)},
		{"SYNC_NODES", humanize.Comma(int64(len(f.Bodies)))},
		{"SAMPLES", humanize.Comma(int64(len(f.Samples)))},
		{"TICK", humanize.Comma(int64(f.Tick))},
	}
	y := 12 + lh
	for _, row := range rows {
		if err := s.label.draw(row[0], 12, y, colHUD); err != nil {
			return err
		}
		if err := s.label.draw(row[1], 12+s.label.width(row[0])+8, y, colHUDValue); err != nil {
			return err
		}
		y += lh
	}

	x := 12
	base := img.Rect.Dy() - 12
	for _, a := range f.Agencies {
		c := colHUDValue
		if a.Color != "" {
			c = s.color(a.Color)
		}
		if err := s.label.draw(a.Link, x, base-lh, colHUD); err != nil {
			return err
		}
		if err := s.label.draw(strings.ToUpper(a.Status), x, base, c); err != nil {
			return err
		}
		x += max(s.label.width(a.Link), s.label.width(a.Status)) + 16
	}
	return nil
}
