package source

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestImageSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	// Deliberately created out of order; pages must sort by filename.
	writePNG(t, filepath.Join(dir, "page-02.png"), 20, 10, color.RGBA{0, 0xff, 0, 0xff})
	writePNG(t, filepath.Join(dir, "page-01.png"), 10, 20, color.RGBA{0xff, 0, 0, 0xff})
	os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0644)

	src, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if got := src.PageCount(); got != 2 {
		t.Fatalf("PageCount = %d, want 2", got)
	}

	w, h, err := src.PageDimensions(0)
	if err != nil {
		t.Fatalf("PageDimensions: %v", err)
	}
	if w != 10 || h != 20 {
		t.Errorf("first page = %vx%v, want 10x20 (sorted order)", w, h)
	}
}

func TestImageSourceRenderScale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	writePNG(t, path, 16, 8, color.RGBA{0, 0, 0xff, 0xff})

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	img, err := src.RenderPage(0, 2)
	if err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("scaled bounds = %v, want 32x16", b)
	}

	same, err := src.RenderPage(0, 1)
	if err != nil {
		t.Fatalf("RenderPage scale 1: %v", err)
	}
	if b := same.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("unscaled bounds = %v, want 16x8", b)
	}
}

func TestOpenMissingPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Error("expected error for missing file")
	}
}
