package layer

import (
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/geom"
)

// textElement is the cached visual state of one text callout.
type textElement struct {
	rect    geom.PixelRect
	content string
	start   float64
	end     float64
	bg      color.RGBA
	fg      color.RGBA
	visible bool
	text    string
}

// TextLayer paints positioned text boxes with a word-by-word, then
// character-by-character typing reveal. Boxes appear instantly at the
// annotation's start time; there is no fade and no per-frame loop. The
// reveal is a pure function of the timeline position, recomputed once per
// UpdateTime.
type TextLayer struct {
	base
	node     *Node
	elements map[string]*textElement
}

// NewTextLayer attaches a text layer to the surface.
func NewTextLayer(surface *Surface, vp geom.Viewport) (*TextLayer, error) {
	b, err := newBase(surface, vp)
	if err != nil {
		return nil, err
	}
	l := &TextLayer{base: b}
	l.node = surface.Attach(zText, int(vp.Width), int(vp.Height))
	return l, nil
}

// Render rebuilds one box per annotation, sized from its unit rectangle and
// initially hidden.
func (l *TextLayer) Render() error {
	l.mu.Lock()
	if err := l.guardLocked(); err != nil {
		l.mu.Unlock()
		return err
	}

	vp := l.viewport
	elements := make(map[string]*textElement)
	for i := range l.annotations {
		a := &l.annotations[i]
		if a.Type != annotation.TypeText {
			continue
		}
		bg, fg := ResolveText(a.Style)
		elements[a.ID] = &textElement{
			rect:    geom.MapRect(a.Rect, vp),
			content: a.Content,
			start:   a.Start,
			end:     a.End,
			bg:      bg,
			fg:      fg,
		}
	}
	l.elements = elements
	l.node.Resize(int(vp.Width), int(vp.Height), int(vp.Width), int(vp.Height))
	l.mu.Unlock()

	l.paint()
	return nil
}

// Update is a no-op: UpdateTime already recomputes visual state.
func (l *TextLayer) Update() error {
	return l.guard()
}

// UpdateTime recomputes every box's visibility and revealed text, then
// repaints once.
func (l *TextLayer) UpdateTime(t float64) error {
	l.mu.Lock()
	if err := l.guardLocked(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.time = t
	for _, el := range l.elements {
		if t < el.start {
			el.visible = false
			el.text = ""
			continue
		}
		el.visible = true
		el.text = VisibleText(el.content, el.start, el.end, t)
	}
	l.mu.Unlock()

	l.paint()
	return nil
}

func (l *TextLayer) paint() {
	l.mu.Lock()
	if l.destroyed || l.node == nil {
		l.mu.Unlock()
		return
	}
	snapshot := make([]textElement, 0, len(l.elements))
	for _, el := range l.elements {
		snapshot = append(snapshot, *el)
	}
	node := l.node
	scale := l.viewport.Scale
	l.mu.Unlock()

	face, err := calloutFace(scale)
	node.Paint(func(img *image.RGBA) {
		clearRGBA(img)
		for _, el := range snapshot {
			if !el.visible {
				continue
			}
			fillRect(img, el.rect, el.bg)
			if err == nil && el.text != "" {
				drawWrapped(img, face, el.rect, el.text, el.fg, scale)
			}
		}
	})
}

// Destroy detaches the layer's node and defers to the base teardown.
func (l *TextLayer) Destroy() error {
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

	if surface != nil {
		surface.Detach(node)
	}
	return l.base.Destroy()
}

// VisibleText returns the portion of content revealed at time t within the
// window [start, end]: whole words first, then a floored fraction of the
// next word's characters. Pure function; exported for reuse and tests.
func VisibleText(content string, start, end, t float64) string {
	if t < start {
		return ""
	}
	if t >= end {
		return content
	}

	words := strings.Fields(content)
	if len(words) == 0 {
		return ""
	}

	progress := (t - start) / (end - start)
	wordProgress := progress * float64(len(words))
	whole := int(math.Floor(wordProgress))
	if whole >= len(words) {
		return content
	}

	out := strings.Join(words[:whole], " ")
	next := []rune(words[whole])
	chars := int(math.Floor((wordProgress - float64(whole)) * float64(len(next))))
	if chars > 0 {
		partial := string(next[:chars])
		if out == "" {
			return partial
		}
		out += " " + partial
	}
	return out
}

const baseFontSize = 14.0

var (
	fontOnce   sync.Once
	fontParsed *sfnt.Font
	fontErr    error
)

// calloutFace builds a face for the callout font at the viewport scale.
func calloutFace(scale float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontParsed, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return opentype.NewFace(fontParsed, &opentype.FaceOptions{
		Size:    baseFontSize * scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// drawWrapped paints text into the rectangle with greedy word wrapping,
// clipping lines that overflow the box.
func drawWrapped(img *image.RGBA, face font.Face, r geom.PixelRect, text string, fg color.RGBA, scale float64) {
	pad := 6.0 * scale
	maxWidth := fixed.I(int(r.Width - 2*pad))
	if maxWidth <= 0 {
		return
	}

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	x := fixed.I(int(r.Left + pad))
	y := int(r.Top+pad) + metrics.Ascent.Ceil()
	bottom := int(r.Top + r.Height - pad)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{R: fg.R, G: fg.G, B: fg.B, A: fg.A}),
		Face: face,
	}

	line := ""
	flush := func() {
		if line == "" {
			return
		}
		d.Dot = fixed.Point26_6{X: x, Y: fixed.I(y)}
		d.DrawString(line)
		line = ""
		y += lineHeight
	}

	for _, word := range strings.Fields(text) {
		cand := word
		if line != "" {
			cand = line + " " + word
		}
		if d.MeasureString(cand) > maxWidth && line != "" {
			flush()
			if y > bottom {
				return
			}
			line = word
			continue
		}
		line = cand
	}
	if y <= bottom {
		flush()
	}
}
