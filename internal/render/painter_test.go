package render

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/star/terrafusion/internal/landmass"
	"github.com/star/terrafusion/internal/propagation"
	"github.com/star/terrafusion/internal/surface"
)

func paintedSurface(t *testing.T, width, height int) (*ImageSurface, *Loop) {
	t.Helper()
	surf, err := NewImageSurface(11)
	if err != nil {
		t.Fatalf("NewImageSurface: %v", err)
	}
	t.Cleanup(func() { surf.Close() })

	grid, err := surface.NewGrid(6)
	if err != nil {
		t.Fatal(err)
	}
	sim := propagation.NewSimulation(propagation.DefaultConfig(), testBodies())
	l, err := NewLoop(sim, grid, surf, Options{
		Width:    width,
		Height:   height,
		Logger:   testLogger(),
		Landmass: landmass.NewStore(),
		Markers:  []Marker{{ID: "paris", Label: "Paris", Lng: 2.35, Lat: 48.85}},
		Agencies: []AgencyStatus{{Name: "ESA", Link: "ESA_COMM", Status: "NOMINAL", Color: "#38bdf8"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	l.SetHighlight("", "S1")
	return surf, l
}

func sameRGBA(a color.RGBA, b color.RGBA) bool {
	return a.R == b.R && a.G == b.G && a.B == b.B && a.A == b.A
}

func TestImageSurfacePaint(t *testing.T) {
	surf, l := paintedSurface(t, 800, 600)

	if _, _, _, ok := surf.Snapshot(); ok {
		t.Fatal("Snapshot should not be ok before the first paint")
	}

	at := time.Unix(1700000000, 0)
	if err := l.RenderFrame(at); err != nil {
		t.Fatal(err)
	}
	img, seq, gotAt, ok := surf.Snapshot()
	if !ok {
		t.Fatal("Snapshot not ok after paint")
	}
	if seq != 1 || !gotAt.Equal(at) {
		t.Errorf("snapshot seq %d at %v, want 1 at %v", seq, gotAt, at)
	}
	if img.Rect.Dx() != 800 || img.Rect.Dy() != 600 {
		t.Fatalf("canvas %v, want 800x600", img.Rect)
	}
	if !sameRGBA(img.RGBAAt(0, 0), colBackground) {
		t.Errorf("corner pixel = %v, want background", img.RGBAAt(0, 0))
	}
	if sameRGBA(img.RGBAAt(400, 300), colBackground) {
		t.Error("globe centre was not painted")
	}
	if surf.Seq() != 1 {
		t.Errorf("Seq() = %d, want 1", surf.Seq())
	}
}

func TestImageSurfaceSnapshotIsCopy(t *testing.T) {
	surf, l := paintedSurface(t, 320, 240)
	if err := l.RenderFrame(time.Unix(0, 0)); err != nil {
		t.Fatal(err)
	}

	a, _, _, _ := surf.Snapshot()
	a.Set(0, 0, color.RGBA{255, 0, 0, 255})
	b, _, _, _ := surf.Snapshot()
	if !sameRGBA(b.RGBAAt(0, 0), colBackground) {
		t.Error("mutating a snapshot changed the canvas")
	}
}

func TestImageSurfaceResize(t *testing.T) {
	surf, l := paintedSurface(t, 320, 240)
	if err := l.RenderFrame(time.Unix(0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := l.Resize(640, 200); err != nil {
		t.Fatal(err)
	}
	if err := l.RenderFrame(time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}
	img, seq, _, _ := surf.Snapshot()
	if img.Rect != image.Rect(0, 0, 640, 200) {
		t.Errorf("canvas %v after resize, want 640x200", img.Rect)
	}
	if seq != 2 {
		t.Errorf("seq = %d, want 2", seq)
	}
}

func TestStrokeEllipseLeavesCentre(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	red := color.NRGBA{255, 0, 0, 255}
	strokeEllipse(img, 50, 50, 30, 30, 4, red)

	if img.RGBAAt(80, 50).R != 255 {
		t.Errorf("ring pixel = %v, want red", img.RGBAAt(80, 50))
	}
	if img.RGBAAt(50, 50).A != 0 {
		t.Errorf("centre pixel = %v, want untouched", img.RGBAAt(50, 50))
	}
	if img.RGBAAt(95, 50).A != 0 {
		t.Errorf("outside pixel = %v, want untouched", img.RGBAAt(95, 50))
	}
}

func TestFillEllipseAndLine(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	fillEllipse(img, 25, 25, 10, 10, color.NRGBA{0, 255, 0, 255})
	if img.RGBAAt(25, 25).G != 255 {
		t.Errorf("disc centre = %v", img.RGBAAt(25, 25))
	}
	if img.RGBAAt(2, 2).A != 0 {
		t.Errorf("outside disc = %v", img.RGBAAt(2, 2))
	}

	line(img, -10, 45, 60, 45, color.NRGBA{0, 0, 255, 255})
	for _, x := range []int{0, 24, 49} {
		if img.RGBAAt(x, 45).B != 255 {
			t.Errorf("line pixel (%d, 45) = %v", x, img.RGBAAt(x, 45))
		}
	}
}

func TestBlendHalfAlpha(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{0, 0, 0, 255})
	blend(img, 0, 0, color.NRGBA{200, 100, 0, 128})
	got := img.RGBAAt(0, 0)
	if got.A != 255 || got.R < 98 || got.R > 102 || got.G < 48 || got.G > 52 {
		t.Errorf("blend = %v, want ~{100 50 0 255}", got)
	}
	blend(img, 5, 5, color.NRGBA{255, 255, 255, 255}) // out of bounds is a no-op
}
