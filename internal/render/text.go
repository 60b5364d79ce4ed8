package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const labelDPI = 72

// labeler draws monospace text onto the frame image.
type labeler struct {
	ctx  *freetype.Context
	face font.Face
	size float64
}

func newLabeler(size float64) (*labeler, error) {
	parsed, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(labelDPI)
	ctx.SetFont(parsed)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingNone)

	return &labeler{
		ctx:  ctx,
		size: size,
		face: truetype.NewFace(parsed, &truetype.Options{
			Size:    size,
			DPI:     labelDPI,
			Hinting: font.HintingNone,
		}),
	}, nil
}

// bind points the labeler at a destination image.
func (lb *labeler) bind(img *image.RGBA) {
	lb.ctx.SetClip(img.Bounds())
	lb.ctx.SetDst(img)
}

// draw writes s with its baseline starting at (x, y).
func (lb *labeler) draw(s string, x, y int, c color.Color) error {
	lb.ctx.SetSrc(image.NewUniform(c))
	if _, err := lb.ctx.DrawString(s, freetype.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing label %q: %w", s, err)
	}
	return nil
}

// width returns the advance width of s in pixels.
func (lb *labeler) width(s string) int {
	return font.MeasureString(lb.face, s).Round()
}

// lineHeight returns the distance between baselines in pixels.
func (lb *labeler) lineHeight() int {
	m := lb.face.Metrics()
	return (m.Ascent + m.Descent).Round() + 2
}

func (lb *labeler) Close() error {
	return lb.face.Close()
}
