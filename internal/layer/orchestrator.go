package layer

import (
	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/frameloop"
	"github.com/mkraev/annoplay/internal/geom"
)

// Options tunes how the orchestrator constructs its layers.
type Options struct {
	// Density is the display pixel density applied to the drawing layer's
	// buffer. Zero means 1.
	Density float64
	// FrameRate is the tick rate of the layers' animation loops. Zero means
	// frameloop.DefaultRate.
	FrameRate int
}

// Orchestrator owns one instance of each concrete layer, all attached to
// the same surface, and routes annotation, viewport, and timeline updates
// to them. It only ever calls public layer operations.
type Orchestrator struct {
	highlight *HighlightLayer
	text      *TextLayer
	drawing   *DrawingLayer
}

// NewOrchestrator constructs the three layers on the given surface with a
// shared initial viewport.
func NewOrchestrator(surface *Surface, vp geom.Viewport, opts Options) (*Orchestrator, error) {
	rate := opts.FrameRate
	if rate <= 0 {
		rate = frameloop.DefaultRate
	}

	highlight, err := NewHighlightLayer(surface, vp, rate)
	if err != nil {
		return nil, err
	}
	text, err := NewTextLayer(surface, vp)
	if err != nil {
		highlight.Destroy()
		return nil, err
	}
	drawing, err := NewDrawingLayer(surface, vp, opts.Density, rate)
	if err != nil {
		highlight.Destroy()
		text.Destroy()
		return nil, err
	}

	return &Orchestrator{highlight: highlight, text: text, drawing: drawing}, nil
}

// SetAnnotations filters the list to the given 1-indexed page, partitions
// it by type, forwards each partition to its layer, and re-renders all
// three. Annotations for other pages are silently excluded.
func (o *Orchestrator) SetAnnotations(all []annotation.Annotation, page int) error {
	onPage := annotation.FilterPage(all, page)
	highlights, texts, inks := annotation.Partition(onPage)

	if err := o.highlight.SetAnnotations(highlights); err != nil {
		return err
	}
	if err := o.text.SetAnnotations(texts); err != nil {
		return err
	}
	if err := o.drawing.SetAnnotations(inks); err != nil {
		return err
	}
	return o.renderAll()
}

// SetViewport forwards the viewport to all three layers and re-renders.
func (o *Orchestrator) SetViewport(vp geom.Viewport) error {
	if err := o.highlight.SetViewport(vp); err != nil {
		return err
	}
	if err := o.text.SetViewport(vp); err != nil {
		return err
	}
	if err := o.drawing.SetViewport(vp); err != nil {
		return err
	}
	return o.renderAll()
}

// UpdateTimeline forwards the timeline position to all three layers. Each
// layer manages its own visual recomputation; no re-render is needed.
func (o *Orchestrator) UpdateTimeline(t float64) error {
	if err := o.highlight.UpdateTime(t); err != nil {
		return err
	}
	if err := o.text.UpdateTime(t); err != nil {
		return err
	}
	return o.drawing.UpdateTime(t)
}

// Destroy destroys all three layers. Idempotent.
func (o *Orchestrator) Destroy() error {
	o.highlight.Destroy()
	o.text.Destroy()
	o.drawing.Destroy()
	return nil
}

func (o *Orchestrator) renderAll() error {
	if err := o.highlight.Render(); err != nil {
		return err
	}
	if err := o.text.Render(); err != nil {
		return err
	}
	return o.drawing.Render()
}
