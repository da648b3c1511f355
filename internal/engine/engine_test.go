package engine

import (
	"image"
	"image/color"
	"testing"
)

func TestFitRect(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, dstW, dstH int
		want                   image.Rectangle
	}{
		{"same aspect", 640, 480, 1280, 960, image.Rect(0, 0, 1280, 960)},
		{"pillarbox", 100, 100, 400, 200, image.Rect(100, 0, 300, 200)},
		{"letterbox", 400, 100, 400, 400, image.Rect(0, 150, 400, 250)},
		{"degenerate source", 0, 0, 320, 240, image.Rect(0, 0, 320, 240)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitRect(tt.srcW, tt.srcH, tt.dstW, tt.dstH)
			if got != tt.want {
				t.Errorf("FitRect(%d,%d,%d,%d) = %v, want %v",
					tt.srcW, tt.srcH, tt.dstW, tt.dstH, got, tt.want)
			}
		})
	}
}

func TestEvenDims(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{640, 480, 640, 480},
		{641, 480, 642, 480},
		{640, 481, 640, 482},
		{641, 481, 642, 482},
	}
	for _, tt := range tests {
		w, h := evenDims(tt.w, tt.h)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("evenDims(%d,%d) = %d,%d, want %d,%d",
				tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestLetterboxSameSize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	dst := image.NewRGBA(image.Rect(0, 0, 8, 8))

	letterbox(dst, src)

	if dst.RGBAAt(0, 0) != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("corner = %v, want white", dst.RGBAAt(0, 0))
	}
}

func TestLetterboxPadsWithBlack(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 10))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	dst := image.NewRGBA(image.Rect(0, 0, 40, 40))

	letterbox(dst, src)

	// Top and bottom bands are padding, the center band holds the image.
	if got := dst.RGBAAt(20, 2); got != (color.RGBA{0, 0, 0, 0xff}) {
		t.Errorf("top pad = %v, want black", got)
	}
	if got := dst.RGBAAt(20, 37); got != (color.RGBA{0, 0, 0, 0xff}) {
		t.Errorf("bottom pad = %v, want black", got)
	}
	if got := dst.RGBAAt(20, 20); got.R < 0x80 {
		t.Errorf("center = %v, want bright", got)
	}
}

func TestOutroCard(t *testing.T) {
	rect := image.Rect(0, 0, 320, 240)
	card, err := outroCard(rect, "https://example.com/next")
	if err != nil {
		t.Fatalf("outroCard: %v", err)
	}
	if card.Bounds() != rect {
		t.Errorf("bounds = %v, want %v", card.Bounds(), rect)
	}

	// QR modules are black on white; the centered code must leave both
	// colors somewhere in the card.
	var dark, light bool
	for y := rect.Min.Y; y < rect.Max.Y; y += 3 {
		for x := rect.Min.X; x < rect.Max.X; x += 3 {
			c := card.RGBAAt(x, y)
			if c.R < 0x40 && c.G < 0x40 && c.B < 0x40 {
				dark = true
			}
			if c.R > 0xc0 && c.G > 0xc0 && c.B > 0xc0 {
				light = true
			}
		}
	}
	if !dark || !light {
		t.Errorf("card lacks contrast: dark=%v light=%v", dark, light)
	}
}
