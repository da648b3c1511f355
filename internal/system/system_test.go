package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.pdf")
	newer := filepath.Join(dir, "newer.PDF")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, newer, other} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	os.Chtimes(old, past, past)

	got, err := FindLatestPDF(dir)
	if err != nil {
		t.Fatalf("FindLatestPDF: %v", err)
	}
	if got != newer {
		t.Errorf("got %s, want %s", got, newer)
	}
}

func TestFindLatestSkipsDirs(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "sub.pdf"), 0755)

	if _, err := FindLatest(dir, ".pdf"); err == nil {
		t.Error("expected error when only a directory matches")
	}
}

func TestFindLatestEmpty(t *testing.T) {
	if _, err := FindLatestAudio(t.TempDir()); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestImagePoolReuse(t *testing.T) {
	rect := image.Rect(0, 0, 16, 16)
	img := GetImage(rect)
	if img.Bounds() != rect {
		t.Fatalf("bounds = %v, want %v", img.Bounds(), rect)
	}
	img.Pix[0] = 0xff
	PutImage(img)

	again := GetImage(rect)
	if again.Bounds() != rect {
		t.Errorf("bounds after reuse = %v, want %v", again.Bounds(), rect)
	}
}

func TestImagePoolDistinctSizes(t *testing.T) {
	a := GetImage(image.Rect(0, 0, 8, 8))
	b := GetImage(image.Rect(0, 0, 32, 32))
	if a.Bounds() == b.Bounds() {
		t.Error("pools for different sizes returned same bounds")
	}
	PutImage(a)
	PutImage(b)
}
