package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// circleSegments is the polygon resolution used for discs and rings.
const circleSegments = 96

// blend composites c over the pixel at (x, y) using straight alpha.
func blend(img *image.RGBA, x, y int, c color.NRGBA) {
	if !(image.Point{x, y}.In(img.Rect)) || c.A == 0 {
		return
	}
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+4 : i+4]
	a := uint32(c.A)
	ia := 255 - a
	p[0] = uint8((uint32(c.R)*a + uint32(p[0])*ia) / 255)
	p[1] = uint8((uint32(c.G)*a + uint32(p[1])*ia) / 255)
	p[2] = uint8((uint32(c.B)*a + uint32(p[2])*ia) / 255)
	p[3] = uint8(a + uint32(p[3])*ia/255)
}

// line draws a one pixel Bresenham line.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		blend(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ellipsePath adds an ellipse to z. reverse flips the winding so the path
// cuts a hole in an enclosing one.
func ellipsePath(z *vector.Rasterizer, cx, cy, rx, ry float64, reverse bool) {
	for i := 0; i <= circleSegments; i++ {
		k := i
		if reverse {
			k = circleSegments - i
		}
		a := 2 * math.Pi * float64(k) / circleSegments
		x := float32(cx + rx*math.Cos(a))
		y := float32(cy + ry*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}

// ellipseRaster returns a rasterizer covering the ellipse's bounding box,
// clipped to img, and the offset of that box.
func ellipseRaster(img *image.RGBA, cx, cy, rx, ry float64) (*vector.Rasterizer, image.Rectangle) {
	r := image.Rect(
		int(math.Floor(cx-rx))-1, int(math.Floor(cy-ry))-1,
		int(math.Ceil(cx+rx))+1, int(math.Ceil(cy+ry))+1,
	).Intersect(img.Rect)
	if r.Empty() {
		return nil, r
	}
	return vector.NewRasterizer(r.Dx(), r.Dy()), r
}

// fillEllipse paints a filled anti-aliased ellipse.
func fillEllipse(img *image.RGBA, cx, cy, rx, ry float64, c color.NRGBA) {
	if !(rx > 0 && ry > 0) {
		return
	}
	z, r := ellipseRaster(img, cx, cy, rx, ry)
	if z == nil {
		return
	}
	ellipsePath(z, cx-float64(r.Min.X), cy-float64(r.Min.Y), rx, ry, false)
	z.Draw(img, r, image.NewUniform(c), image.Point{})
}

// strokeEllipse paints an anti-aliased elliptical ring of the given width.
func strokeEllipse(img *image.RGBA, cx, cy, rx, ry, width float64, c color.NRGBA) {
	if !(rx > width && ry > width) {
		return
	}
	h := width / 2
	z, r := ellipseRaster(img, cx, cy, rx+h, ry+h)
	if z == nil {
		return
	}
	ox, oy := cx-float64(r.Min.X), cy-float64(r.Min.Y)
	ellipsePath(z, ox, oy, rx+h, ry+h, false)
	ellipsePath(z, ox, oy, rx-h, ry-h, true)
	z.Draw(img, r, image.NewUniform(c), image.Point{})
}

// radialGlow paints a halo fading linearly from inner to outer radius.
func radialGlow(img *image.RGBA, cx, cy, inner, outer float64, c color.NRGBA) {
	if !(outer > inner) {
		return
	}
	r := image.Rect(int(cx-outer), int(cy-outer), int(cx+outer)+1, int(cy+outer)+1).Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			if d < inner || d > outer {
				continue
			}
			t := 1 - (d-inner)/(outer-inner)
			blend(img, x, y, color.NRGBA{c.R, c.G, c.B, uint8(float64(c.A) * t)})
		}
	}
}

// fillRect blends an axis-aligned square of side 2*half centred on (x, y).
func fillRect(img *image.RGBA, x, y float64, half int, c color.NRGBA) {
	ix, iy := int(math.Round(x)), int(math.Round(y))
	for py := iy - half; py < iy+half; py++ {
		for px := ix - half; px < ix+half; px++ {
			blend(img, px, py, c)
		}
	}
}

// withAlpha scales the alpha of c by f in [0, 1].
func withAlpha(c color.NRGBA, f float64) color.NRGBA {
	f = math.Max(0, math.Min(1, f))
	c.A = uint8(float64(c.A) * f)
	return c
}

func rgbaToNRGBA(c color.RGBA) color.NRGBA {
	return color.NRGBA{c.R, c.G, c.B, c.A}
}
