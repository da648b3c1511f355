package layer

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/frameloop"
	"github.com/mkraev/annoplay/internal/geom"
)

// DrawingLayer paints freehand ink strokes onto a persistent pixel buffer,
// progressively drawing each stroke's path up to the portion whose time
// offsets have elapsed. The whole buffer is cleared and redrawn every frame
// of the animation loop. The buffer is allocated at viewport × density so
// one drawing unit equals one layout pixel regardless of display density;
// compositing scales it back to layout size.
type DrawingLayer struct {
	base
	node    *Node
	loop    *frameloop.Loop
	density float64
}

// NewDrawingLayer attaches a drawing layer to the surface. Non-positive
// density falls back to 1.
func NewDrawingLayer(surface *Surface, vp geom.Viewport, density float64, rate int) (*DrawingLayer, error) {
	b, err := newBase(surface, vp)
	if err != nil {
		return nil, err
	}
	if density <= 0 {
		density = 1
	}
	l := &DrawingLayer{
		base:    b,
		loop:    frameloop.New(rate),
		density: density,
	}
	l.node = surface.Attach(zDrawing, int(vp.Width), int(vp.Height))
	l.node.Resize(int(vp.Width*density), int(vp.Height*density), int(vp.Width), int(vp.Height))
	return l, nil
}

// SetViewport replaces the viewport and re-applies the density-scaled
// buffer sizing; a pixel buffer does not reflow on its own.
func (l *DrawingLayer) SetViewport(vp geom.Viewport) error {
	if err := l.base.SetViewport(vp); err != nil {
		return err
	}
	l.mu.Lock()
	node, density := l.node, l.density
	l.mu.Unlock()
	if node != nil {
		node.Resize(int(vp.Width*density), int(vp.Height*density), int(vp.Width), int(vp.Height))
	}
	return nil
}

// Render is a no-op: this layer keeps no per-annotation elements, all
// painting happens in the animation loop.
func (l *DrawingLayer) Render() error {
	return l.guard()
}

// Update is a no-op.
func (l *DrawingLayer) Update() error {
	return l.guard()
}

// UpdateTime records the new timeline position and (re)starts the redraw
// loop.
func (l *DrawingLayer) UpdateTime(t float64) error {
	l.mu.Lock()
	if err := l.guardLocked(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.time = t
	l.mu.Unlock()

	l.paint()
	l.loop.Start(l.tick)
	return nil
}

func (l *DrawingLayer) tick() bool {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return false
	}
	l.mu.Unlock()

	l.paint()
	return true
}

func (l *DrawingLayer) paint() {
	l.mu.Lock()
	if l.destroyed || l.node == nil {
		l.mu.Unlock()
		return
	}
	anns := l.annotations
	t := l.time
	vp := l.viewport
	density := l.density
	node := l.node
	l.mu.Unlock()

	node.Paint(func(img *image.RGBA) {
		clearRGBA(img)
		for i := range anns {
			a := &anns[i]
			if a.Type != annotation.TypeInk || t < a.Start || len(a.Strokes) == 0 {
				continue
			}
			// Cap elapsed at the window length so a finished stroke stays
			// fully visible at any later time.
			elapsed := math.Min(t-a.Start, a.End-a.Start)
			for _, stroke := range a.Strokes {
				c, size := ResolveStroke(stroke)
				drawStrokePrefix(img, stroke.Points, elapsed, c, size*density, vp, density)
			}
		}
	})
}

// Destroy stops the redraw loop, detaches the buffer, and defers to the
// base teardown.
func (l *DrawingLayer) Destroy() error {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return nil
	}
	l.destroyed = true
	node, surface := l.node, l.surface
	l.node = nil
	l.mu.Unlock()

	l.loop.Close()
	if surface != nil {
		surface.Detach(node)
	}
	return l.base.Destroy()
}

// drawStrokePrefix rasterizes the prefix of a stroke whose point offsets
// are at most elapsed. Points are assumed time-ordered; the walk stops at
// the first point past elapsed. Nothing is painted when no point qualifies.
func drawStrokePrefix(img *image.RGBA, points []annotation.StrokePoint, elapsed float64, c color.RGBA, width float64, vp geom.Viewport, density float64) {
	var xs, ys []float32
	for _, p := range points {
		if p.T > elapsed {
			break
		}
		px, py := geom.MapPoint(p.X, p.Y, vp)
		xs = append(xs, float32(px*density))
		ys = append(ys, float32(py*density))
	}
	if len(xs) == 0 {
		return
	}

	b := img.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Over

	half := float32(width / 2)
	if half < 0.5 {
		half = 0.5
	}
	for i := range xs {
		addCircle(r, xs[i], ys[i], half)
		if i > 0 {
			addSegment(r, xs[i-1], ys[i-1], xs[i], ys[i], half)
		}
	}
	src := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
	r.Draw(img, b, src, image.Point{})
}

// addSegment appends a filled quad covering the line from (x0,y0) to
// (x1,y1) at half-width h. Joints are rounded by the per-point circles.
func addSegment(r *vector.Rasterizer, x0, y0, x1, y1, h float32) {
	dx := x1 - x0
	dy := y1 - y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	// Perpendicular unit offset.
	ox := -dy / length * h
	oy := dx / length * h

	r.MoveTo(x0+ox, y0+oy)
	r.LineTo(x1+ox, y1+oy)
	r.LineTo(x1-ox, y1-oy)
	r.LineTo(x0-ox, y0-oy)
	r.ClosePath()
}

// addCircle appends a filled circle approximated by four cubic curves.
func addCircle(r *vector.Rasterizer, cx, cy, radius float32) {
	const k = 0.5523 // circle-to-Bézier constant
	kr := k * radius

	r.MoveTo(cx+radius, cy)
	r.CubeTo(cx+radius, cy+kr, cx+kr, cy+radius, cx, cy+radius)
	r.CubeTo(cx-kr, cy+radius, cx-radius, cy+kr, cx-radius, cy)
	r.CubeTo(cx-radius, cy-kr, cx-kr, cy-radius, cx, cy-radius)
	r.CubeTo(cx+kr, cy-radius, cx+radius, cy-kr, cx+radius, cy)
	r.ClosePath()
}
