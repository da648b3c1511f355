package layer

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func TestSurfaceCompositeZOrder(t *testing.T) {
	s := NewSurface()
	top := s.Attach(5, 4, 4)
	bottom := s.Attach(1, 4, 4)

	red := color.RGBA{0xff, 0, 0, 0xff}
	blue := color.RGBA{0, 0, 0xff, 0xff}
	bottom.Paint(func(img *image.RGBA) {
		draw.Draw(img, img.Bounds(), image.NewUniform(red), image.Point{}, draw.Src)
	})
	top.Paint(func(img *image.RGBA) {
		draw.Draw(img, img.Bounds(), image.NewUniform(blue), image.Point{}, draw.Src)
	})

	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	s.Composite(dst)

	if got := dst.RGBAAt(2, 2); got != blue {
		t.Errorf("pixel = %v, want higher z on top (%v)", got, blue)
	}
}

func TestSurfaceDetach(t *testing.T) {
	s := NewSurface()
	n := s.Attach(0, 4, 4)
	n.Paint(func(img *image.RGBA) {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	})

	s.Detach(n)
	s.Detach(n) // second detach is a no-op

	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	s.Composite(dst)
	if got := dst.RGBAAt(1, 1); got.A != 0 {
		t.Errorf("detached node still composited: %v", got)
	}

	// Painting a detached node must not panic.
	n.Paint(func(img *image.RGBA) {
		t.Error("paint callback ran on released buffer")
	})
}

func TestNodeDensityDownsample(t *testing.T) {
	s := NewSurface()
	n := s.Attach(0, 4, 4)
	n.Resize(8, 8, 4, 4)
	n.Paint(func(img *image.RGBA) {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	})

	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	s.Composite(dst)
	if got := dst.RGBAAt(2, 2); got.R < 0xf0 {
		t.Errorf("downsampled pixel = %v, want near white", got)
	}
	if got := dst.RGBAAt(3, 3); got.A == 0 {
		t.Errorf("layout area not covered by scaled buffer")
	}
}

func TestNodeClear(t *testing.T) {
	s := NewSurface()
	n := s.Attach(0, 2, 2)
	n.Paint(func(img *image.RGBA) {
		img.Pix[0] = 0xff
	})
	n.Clear()
	n.Paint(func(img *image.RGBA) {
		if img.Pix[0] != 0 {
			t.Error("buffer not cleared")
		}
	})
}
