package layer

import (
	"bytes"
	"image"
	"testing"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/geom"
)

func inkFixture(t *testing.T, points []annotation.StrokePoint, start, end float64) *DrawingLayer {
	t.Helper()
	l, err := NewDrawingLayer(NewSurface(), testVP, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Destroy() })

	err = l.SetAnnotations([]annotation.Annotation{{
		ID: "i1", Type: annotation.TypeInk, Page: 1,
		Start: start, End: end,
		Strokes: []annotation.Stroke{{Size: 4, Points: points}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func nodePixels(t *testing.T, l *DrawingLayer) []byte {
	t.Helper()
	l.mu.Lock()
	node := l.node
	l.mu.Unlock()
	if node == nil {
		t.Fatal("no node")
	}
	var out []byte
	node.Paint(func(img *image.RGBA) {
		out = append([]byte(nil), img.Pix...)
	})
	return out
}

func countInk(pix []byte) int {
	n := 0
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 0 {
			n++
		}
	}
	return n
}

var inkPoints = []annotation.StrokePoint{
	{T: 0.0, X: 0.1, Y: 0.1},
	{T: 0.5, X: 0.4, Y: 0.2},
	{T: 1.0, X: 0.7, Y: 0.5},
	{T: 2.0, X: 0.9, Y: 0.9},
}

func TestInkStrokePersistsAfterWindow(t *testing.T) {
	l := inkFixture(t, inkPoints, 1, 3)

	// Elapsed caps at the window duration: once the window has passed, any
	// later time redraws the identical fully-drawn path.
	if err := l.UpdateTime(3.0); err != nil {
		t.Fatal(err)
	}
	atEnd := nodePixels(t, l)

	if err := l.UpdateTime(42.0); err != nil {
		t.Fatal(err)
	}
	later := nodePixels(t, l)

	if countInk(atEnd) == 0 {
		t.Fatal("nothing painted at the end of the window")
	}
	if !bytes.Equal(atEnd, later) {
		t.Error("fully-drawn stroke changed after its window ended")
	}
}

func TestInkProgressiveReveal(t *testing.T) {
	l := inkFixture(t, inkPoints, 1, 3)

	if err := l.UpdateTime(0.5); err != nil {
		t.Fatal(err)
	}
	before := countInk(nodePixels(t, l))
	if before != 0 {
		t.Errorf("ink painted before the annotation start: %d px", before)
	}

	if err := l.UpdateTime(1.6); err != nil {
		t.Fatal(err)
	}
	partial := countInk(nodePixels(t, l))
	if partial == 0 {
		t.Fatal("no ink painted mid-window")
	}

	if err := l.UpdateTime(3.0); err != nil {
		t.Fatal(err)
	}
	full := countInk(nodePixels(t, l))
	if full <= partial {
		t.Errorf("full path (%d px) not larger than partial path (%d px)", full, partial)
	}
}

func TestInkWalkStopsAtFirstFuturePoint(t *testing.T) {
	// All offsets beyond the elapsed time: nothing qualifies, nothing is
	// painted.
	l := inkFixture(t, []annotation.StrokePoint{
		{T: 5, X: 0.2, Y: 0.2},
		{T: 6, X: 0.4, Y: 0.4},
	}, 0, 10)

	if err := l.UpdateTime(1.0); err != nil {
		t.Fatal(err)
	}
	if n := countInk(nodePixels(t, l)); n != 0 {
		t.Errorf("painted %d px although no point offset has elapsed", n)
	}
}

func TestDrawingLayerDensityBuffer(t *testing.T) {
	l, err := NewDrawingLayer(NewSurface(), testVP, 2, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Destroy()

	l.mu.Lock()
	node := l.node
	l.mu.Unlock()

	var bufW, bufH int
	node.Paint(func(img *image.RGBA) {
		bufW, bufH = img.Bounds().Dx(), img.Bounds().Dy()
	})
	if bufW != int(testVP.Width*2) || bufH != int(testVP.Height*2) {
		t.Errorf("buffer %dx%d, want %vx%v", bufW, bufH, testVP.Width*2, testVP.Height*2)
	}

	// Viewport replacement re-applies the density sizing.
	vp := geom.Viewport{Width: 100, Height: 50, Scale: 1}
	if err := l.SetViewport(vp); err != nil {
		t.Fatal(err)
	}
	node.Paint(func(img *image.RGBA) {
		bufW, bufH = img.Bounds().Dx(), img.Bounds().Dy()
	})
	if bufW != 200 || bufH != 100 {
		t.Errorf("buffer after SetViewport %dx%d, want 200x100", bufW, bufH)
	}
}

func TestDrawingRenderIsNoop(t *testing.T) {
	l := inkFixture(t, inkPoints, 0, 1)
	if err := l.Render(); err != nil {
		t.Errorf("Render() = %v, want nil", err)
	}
}
