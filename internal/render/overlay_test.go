package render

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/visionforge/foundry/internal/detect"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDrawBoxes_StrokesWithoutMutatingSource(t *testing.T) {
	src := solidImage(100, 100, color.White)
	records := []detect.Record{
		{Label: "dog", Box: detect.Box{100, 100, 900, 900}}, // pixels 10..90
	}

	out, err := DrawBoxes(src, records, DefaultStyle())
	if err != nil {
		t.Fatalf("DrawBoxes failed: %v", err)
	}

	// Top-left stroke corner is red on the copy.
	r, g, b, _ := out.At(10, 10).RGBA()
	if r>>8 != 0xff || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("expected red stroke at (10,10), got r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}

	// Box interior stays white.
	r, g, b, _ = out.At(50, 50).RGBA()
	if r>>8 != 0xff || g>>8 != 0xff || b>>8 != 0xff {
		t.Errorf("expected untouched interior, got r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}

	// Source untouched.
	r, g, b, _ = src.At(10, 10).RGBA()
	if r>>8 != 0xff || g>>8 != 0xff || b>>8 != 0xff {
		t.Error("source image was mutated")
	}
}

func TestDrawBoxes_InvalidStrokeColor(t *testing.T) {
	src := solidImage(10, 10, color.White)
	if _, err := DrawBoxes(src, nil, Style{StrokeColor: "not-a-color"}); err == nil {
		t.Error("expected error for invalid stroke color")
	}
}

func TestToPixel_Clamps(t *testing.T) {
	tests := []struct {
		v    float64
		dim  int
		want int
	}{
		{0, 100, 0},
		{1000, 100, 100},
		{500, 100, 50},
		{250, 200, 50},
	}
	for _, tt := range tests {
		if got := toPixel(tt.v, tt.dim); got != tt.want {
			t.Errorf("toPixel(%g, %d) = %d, want %d", tt.v, tt.dim, got, tt.want)
		}
	}
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	src := solidImage(20, 20, color.White)
	data, err := EncodeJPEG(src)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg, got %s", format)
	}
	if decoded.Bounds().Dx() != 20 || decoded.Bounds().Dy() != 20 {
		t.Errorf("unexpected dimensions: %v", decoded.Bounds())
	}
}
