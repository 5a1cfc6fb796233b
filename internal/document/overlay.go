package document

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/spherical/bbox-ocr/internal/domain"
)

const (
	fillAlpha    = 40
	outlineWidth = 2
)

var kindColors = map[domain.ElementKind]color.NRGBA{
	domain.KindText:      {R: 37, G: 99, B: 235, A: 255},
	domain.KindTable:     {R: 22, G: 163, B: 74, A: 255},
	domain.KindImage:     {R: 180, G: 83, B: 9, A: 255},
	domain.KindStamp:     {R: 185, G: 28, B: 28, A: 255},
	domain.KindSignature: {R: 107, G: 33, B: 168, A: 255},
}

// KindColor returns the overlay colour used for kind.
func KindColor(kind domain.ElementKind) color.NRGBA {
	if c, ok := kindColors[kind]; ok {
		return c
	}
	return color.NRGBA{R: 100, G: 100, B: 100, A: 255}
}

// Overlay draws each element's box onto a copy of the page image and
// returns it as PNG. Boxes are scaled from the normalized space to pixels.
func Overlay(pageImage []byte, elements []domain.Element) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(pageImage))
	if err != nil {
		return nil, domain.IOError("decode page image", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	for _, el := range elements {
		rect := toPixels(el.BBox, bounds)
		if rect.Empty() {
			continue
		}
		c := KindColor(el.Kind)

		fill := c
		fill.A = fillAlpha
		draw.Draw(canvas, rect, &image.Uniform{C: fill}, image.Point{}, draw.Over)
		strokeRect(canvas, rect, c)
		label(canvas, rect, string(el.Kind), c)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, domain.IOError("encode overlay", err)
	}
	return buf.Bytes(), nil
}

func toPixels(b domain.BBox, bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	scale := func(v, size int) int { return v * size / domain.CoordinateScale }
	return image.Rect(
		bounds.Min.X+scale(b.X1(), w),
		bounds.Min.Y+scale(b.Y1(), h),
		bounds.Min.X+scale(b.X2(), w),
		bounds.Min.Y+scale(b.Y2(), h),
	).Intersect(bounds)
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.NRGBA) {
	u := &image.Uniform{C: c}
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+outlineWidth),
		image.Rect(r.Min.X, r.Max.Y-outlineWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+outlineWidth, r.Max.Y),
		image.Rect(r.Max.X-outlineWidth, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), u, image.Point{}, draw.Src)
	}
}

func label(dst draw.Image, r image.Rectangle, text string, c color.NRGBA) {
	face := basicfont.Face7x13
	if r.Dx() < len(text)*face.Advance || r.Dy() < face.Height+outlineWidth {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: c},
		Face: face,
		Dot:  fixed.P(r.Min.X+outlineWidth+2, r.Min.Y+outlineWidth+face.Ascent),
	}
	d.DrawString(text)
}
