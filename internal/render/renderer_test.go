package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/geom"
)

// writeTestPage writes a plain white page image and returns its path.
func writeTestPage(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	path := filepath.Join(t.TempDir(), "page.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDocumentAndState(t *testing.T) {
	r := New(Options{FrameRate: 100})
	defer r.Destroy()

	path := writeTestPage(t, 64, 48)
	res := r.LoadDocument(path)
	if !res.Success {
		t.Fatalf("LoadDocument failed: %s", res.Error)
	}
	if res.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", res.PageCount)
	}

	state := r.State()
	want := State{
		Page:        1,
		Scale:       1,
		Annotations: []annotation.Annotation{},
		PageCount:   1,
		Viewport:    geom.Viewport{Width: 64, Height: 48, Scale: 1},
		DocumentURL: path,
	}
	if diff := cmp.Diff(want, state); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDocumentFailureIsResultNotPanic(t *testing.T) {
	r := New(Options{})
	defer r.Destroy()

	res := r.LoadDocument(filepath.Join(t.TempDir(), "missing.png"))
	if res.Success {
		t.Fatal("loading a missing document reported success")
	}
	if res.Error == "" {
		t.Error("failure carries no error text")
	}
}

func TestSetScaleReplacesViewport(t *testing.T) {
	r := New(Options{FrameRate: 100})
	defer r.Destroy()

	if res := r.LoadDocument(writeTestPage(t, 64, 48)); !res.Success {
		t.Fatalf("load: %s", res.Error)
	}

	pr := r.SetScale(2)
	if !pr.Success {
		t.Fatalf("SetScale: %s", pr.Error)
	}
	want := geom.Viewport{Width: 128, Height: 96, Scale: 2}
	if pr.Viewport != want {
		t.Errorf("viewport = %+v, want %+v", pr.Viewport, want)
	}

	if pr := r.SetScale(0); pr.Success {
		t.Error("SetScale(0) reported success")
	}
}

func TestSetPageOutOfRange(t *testing.T) {
	r := New(Options{FrameRate: 100})
	defer r.Destroy()

	if res := r.LoadDocument(writeTestPage(t, 64, 48)); !res.Success {
		t.Fatalf("load: %s", res.Error)
	}
	if pr := r.SetPage(7); pr.Success || pr.Cancelled {
		t.Errorf("SetPage(7) = %+v, want plain failure", pr)
	}
}

func TestTimelineDrivesOverlay(t *testing.T) {
	r := New(Options{FrameRate: 100})
	defer r.Destroy()

	if res := r.LoadDocument(writeTestPage(t, 64, 48)); !res.Success {
		t.Fatalf("load: %s", res.Error)
	}
	err := r.SetAnnotations([]annotation.Annotation{{
		ID: "h1", Type: annotation.TypeHighlight, Page: 1,
		Start: 0, End: 1, Mode: annotation.ModeQuads,
		Quads: []geom.UnitRect{{X: 0, Y: 0, W: 1, H: 1}},
	}})
	if err != nil {
		t.Fatal(err)
	}

	frame := r.Frame(nil)
	if frame == nil {
		t.Fatal("no frame after load")
	}
	before := frame.RGBAAt(5, 5)

	// Avoid t=0: the clock starts at zero and coalesces identical values.
	r.SetTime(0.9)
	frame = r.Frame(frame)
	after := frame.RGBAAt(5, 5)

	if before == after {
		t.Errorf("pixel unchanged by timeline update: %+v", after)
	}
	if r.State().Time != 0.9 {
		t.Errorf("State().Time = %v, want 0.9", r.State().Time)
	}
}

func TestPrerenderServesPageTurns(t *testing.T) {
	// A directory of two page images acts as a two-page document.
	dir := t.TempDir()
	for i, name := range []string{"p1.png", "p2.png"} {
		img := image.NewRGBA(image.Rect(0, 0, 32, 32))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: uint8(100 * (i + 1))}), image.Point{}, draw.Src)
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	r := New(Options{FrameRate: 100})
	defer r.Destroy()

	if res := r.LoadDocument(dir); !res.Success {
		t.Fatalf("load: %s", res.Error)
	}
	if res := r.LoadDocument(dir); res.PageCount != 2 {
		t.Fatalf("PageCount = %d, want 2", res.PageCount)
	}

	if err := r.Prerender([]int{1, 2, 2, 99}, 4); err != nil {
		t.Fatalf("Prerender: %v", err)
	}
	if pr := r.SetPage(2); !pr.Success {
		t.Fatalf("SetPage(2): %s", pr.Error)
	}
	if r.State().Page != 2 {
		t.Errorf("page = %d, want 2", r.State().Page)
	}
}

func TestDestroyIsIdempotentAndFinal(t *testing.T) {
	r := New(Options{FrameRate: 100})
	if res := r.LoadDocument(writeTestPage(t, 64, 48)); !res.Success {
		t.Fatalf("load: %s", res.Error)
	}

	r.Destroy()
	r.Destroy()

	if res := r.LoadDocument(writeTestPage(t, 64, 48)); res.Success {
		t.Error("LoadDocument succeeded on a destroyed renderer")
	}
	if pr := r.SetPage(1); pr.Success {
		t.Error("SetPage succeeded on a destroyed renderer")
	}
	if err := r.SetAnnotations(nil); err == nil {
		t.Error("SetAnnotations succeeded on a destroyed renderer")
	}
}
