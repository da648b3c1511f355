package layer

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/frameloop"
	"github.com/mkraev/annoplay/internal/geom"
)

// Layer z-order on the shared surface: highlights under ink, text on top.
const (
	zHighlight = 0
	zDrawing   = 1
	zText      = 2
)

// quadKey identifies one quad of a multi-segment highlight.
type quadKey struct {
	ID   string
	Quad int
}

// highlightElement is the cached visual state of one quad. Derived data
// only; Render discards and rebuilds the whole set.
type highlightElement struct {
	rect     geom.PixelRect
	color    color.RGBA
	start    float64
	end      float64
	segStart float64
	segEnd   float64
	reveal   float64
	visible  bool
}

// HighlightLayer paints unit-rectangle highlights with a left-to-right
// reveal proportional to elapsed time. Multi-quad highlights reveal their
// segments in sequence, each owning a width-proportional share of the
// animation window.
type HighlightLayer struct {
	base
	node     *Node
	loop     *frameloop.Loop
	elements map[quadKey]*highlightElement
}

// NewHighlightLayer attaches a highlight layer to the surface.
func NewHighlightLayer(surface *Surface, vp geom.Viewport, rate int) (*HighlightLayer, error) {
	b, err := newBase(surface, vp)
	if err != nil {
		return nil, err
	}
	l := &HighlightLayer{
		base: b,
		loop: frameloop.New(rate),
	}
	l.node = surface.Attach(zHighlight, int(vp.Width), int(vp.Height))
	return l, nil
}

// Render rebuilds the element cache from the current annotations and
// viewport, with every reveal reset to zero. Annotations without quads or
// not in quad mode are skipped.
func (l *HighlightLayer) Render() error {
	l.mu.Lock()
	if err := l.guardLocked(); err != nil {
		l.mu.Unlock()
		return err
	}

	vp := l.viewport
	elements := make(map[quadKey]*highlightElement)
	for i := range l.annotations {
		a := &l.annotations[i]
		if a.Type != annotation.TypeHighlight || a.Mode != annotation.ModeQuads || len(a.Quads) == 0 {
			continue
		}

		totalWidth := 0.0
		for _, q := range a.Quads {
			totalWidth += q.W
		}
		if totalWidth <= 0 {
			continue
		}

		c := ResolveHighlight(a.Style)
		offset := 0.0
		for qi, q := range a.Quads {
			segStart := offset / totalWidth
			offset += q.W
			elements[quadKey{ID: a.ID, Quad: qi}] = &highlightElement{
				rect:     geom.MapRect(q, vp),
				color:    c,
				start:    a.Start,
				end:      a.End,
				segStart: segStart,
				segEnd:   offset / totalWidth,
			}
		}
	}
	l.elements = elements
	l.node.Resize(int(vp.Width), int(vp.Height), int(vp.Width), int(vp.Height))
	l.mu.Unlock()

	l.paint()
	return nil
}

// Update is a no-op: UpdateTime already recomputes visual state.
func (l *HighlightLayer) Update() error {
	return l.guard()
}

// UpdateTime records the new timeline position, recomputes every element's
// reveal, and (re)starts the per-frame loop so the painted state stays
// consistent across external re-renders mid-animation.
func (l *HighlightLayer) UpdateTime(t float64) error {
	l.mu.Lock()
	if err := l.guardLocked(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.time = t
	l.recomputeLocked()
	l.mu.Unlock()

	l.paint()
	l.loop.Start(l.tick)
	return nil
}

func (l *HighlightLayer) tick() bool {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return false
	}
	l.recomputeLocked()
	l.mu.Unlock()

	l.paint()
	return true
}

func (l *HighlightLayer) recomputeLocked() {
	for _, el := range l.elements {
		if l.time < el.start {
			el.visible = false
			el.reveal = 0
			continue
		}
		el.visible = true
		global := geom.Progress(el.start, el.end, l.time)
		el.reveal = segmentProgress(global, el.segStart, el.segEnd)
	}
}

// segmentProgress maps global annotation progress into one segment's local
// [0,1] reveal, with an epsilon floor for zero-width segments.
func segmentProgress(global, segStart, segEnd float64) float64 {
	span := segEnd - segStart
	if span < 1e-6 {
		span = 1e-6
	}
	return geom.Clamp01((global - segStart) / span)
}

func (l *HighlightLayer) paint() {
	l.mu.Lock()
	if l.destroyed || l.node == nil {
		l.mu.Unlock()
		return
	}
	snapshot := make([]highlightElement, 0, len(l.elements))
	for _, el := range l.elements {
		snapshot = append(snapshot, *el)
	}
	node := l.node
	l.mu.Unlock()

	node.Paint(func(img *image.RGBA) {
		clearRGBA(img)
		for _, el := range snapshot {
			if !el.visible || el.reveal <= 0 {
				continue
			}
			r := el.rect
			r.Width *= el.reveal
			fillRect(img, r, el.color)
		}
	})
}

// Destroy stops the per-frame loop, detaches the layer's node, and defers
// to the base teardown. Idempotent.
func (l *HighlightLayer) Destroy() error {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return nil
	}
	l.destroyed = true
	node, surface := l.node, l.surface
	l.node = nil
	l.elements = nil
	l.mu.Unlock()

	l.loop.Close()
	if surface != nil {
		surface.Detach(node)
	}
	return l.base.Destroy()
}

// fillRect fills a pixel rectangle with a straight-alpha color. The NRGBA
// detour premultiplies before the value lands in the buffer; the buffer is
// later blended over the page with draw.Over, which expects premultiplied
// pixels.
func fillRect(img *image.RGBA, r geom.PixelRect, c color.RGBA) {
	rect := image.Rect(
		int(math.Round(r.Left)),
		int(math.Round(r.Top)),
		int(math.Round(r.Left+r.Width)),
		int(math.Round(r.Top+r.Height)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	src := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
	draw.Draw(img, rect, src, image.Point{}, draw.Src)
}
