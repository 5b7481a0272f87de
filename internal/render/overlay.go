// Package render resolves opaque image references to pixel data and draws
// detection overlays for visual quality validation.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/visionforge/foundry/internal/detect"
)

// Style controls overlay appearance. The visual validator uses a single
// fixed color and stroke width so the model sees consistent markings.
type Style struct {
	StrokeColor string // hex, e.g. "#ff0000"
	StrokeWidth int
}

// DefaultStyle matches the annotation convention the validator prompt
// describes ("the RED BOXES show the detected objects").
func DefaultStyle() Style {
	return Style{StrokeColor: "#ff0000", StrokeWidth: 4}
}

// DrawBoxes renders records as stroke rectangles onto a copy of img. Box
// coordinates are converted from the normalized 0-1000 space to pixels using
// the image's own bounds. Pure function: the input image is never modified.
func DrawBoxes(img image.Image, records []detect.Record, style Style) (image.Image, error) {
	if style.StrokeWidth <= 0 {
		style.StrokeWidth = DefaultStyle().StrokeWidth
	}
	stroke, err := parseStroke(style.StrokeColor)
	if err != nil {
		return nil, err
	}

	canvas := imaging.Clone(img)
	bounds := canvas.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	for _, r := range records {
		x1 := toPixel(r.Box.XMin(), width)
		y1 := toPixel(r.Box.YMin(), height)
		x2 := toPixel(r.Box.XMax(), width)
		y2 := toPixel(r.Box.YMax(), height)
		drawRect(canvas, x1, y1, x2, y2, style.StrokeWidth, stroke)
	}
	return canvas, nil
}

// EncodeJPEG serializes an image for transport to the inference service.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode overlay image: %w", err)
	}
	return buf.Bytes(), nil
}

func parseStroke(hex string) (color.Color, error) {
	if hex == "" {
		hex = DefaultStyle().StrokeColor
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid stroke color %q: %w", hex, err)
	}
	return c, nil
}

// toPixel maps a normalized 0-1000 coordinate onto a pixel axis of size dim.
func toPixel(v float64, dim int) int {
	px := int(v / detect.CoordMax * float64(dim))
	if px < 0 {
		px = 0
	}
	if px > dim {
		px = dim
	}
	return px
}

// drawRect strokes the four edges of a rectangle with the given width,
// growing inward so thick strokes stay inside the box.
func drawRect(canvas draw.Image, x1, y1, x2, y2, width int, c color.Color) {
	fill := image.NewUniform(c)
	top := image.Rect(x1, y1, x2, min(y1+width, y2))
	bottom := image.Rect(x1, max(y2-width, y1), x2, y2)
	left := image.Rect(x1, y1, min(x1+width, x2), y2)
	right := image.Rect(max(x2-width, x1), y1, x2, y2)
	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(canvas, edge, fill, image.Point{}, draw.Src)
	}
}
