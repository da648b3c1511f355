package layer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mkraev/annoplay/internal/annotation"
	"github.com/mkraev/annoplay/internal/geom"
)

// ErrDestroyed marks any operation invoked on a layer after Destroy.
var ErrDestroyed = errors.New("layer is destroyed")

// ErrNotImplemented marks an abstract operation the concrete layer failed
// to provide.
var ErrNotImplemented = errors.New("operation must be implemented by a concrete layer")

// Layer is the contract every rendering layer satisfies. Setters replace
// state without repainting; Render rebuilds all visual elements from the
// current annotations and viewport; UpdateTime advances the reveal state.
type Layer interface {
	SetAnnotations(list []annotation.Annotation) error
	SetViewport(vp geom.Viewport) error
	UpdateTime(t float64) error
	Render() error
	Update() error
	Destroy() error
}

// base carries the shared lifecycle state concrete layers embed. It is not
// a Layer on its own: Render and Update stay abstract and fail until a
// concrete layer overrides them.
type base struct {
	mu          sync.Mutex
	surface     *Surface
	viewport    geom.Viewport
	annotations []annotation.Annotation
	time        float64
	destroyed   bool
}

func newBase(surface *Surface, vp geom.Viewport) (base, error) {
	if surface == nil {
		return base{}, errors.New("layer: nil surface")
	}
	if !vp.Valid() {
		return base{}, fmt.Errorf("layer: invalid viewport %+v", vp)
	}
	return base{surface: surface, viewport: vp}, nil
}

// guard rejects use after destruction. Callers hold no lock.
func (b *base) guard() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.guardLocked()
}

func (b *base) guardLocked() error {
	if b.destroyed {
		return ErrDestroyed
	}
	return nil
}

// SetAnnotations replaces the stored annotation list with a defensive copy.
// It does not render.
func (b *base) SetAnnotations(list []annotation.Annotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guardLocked(); err != nil {
		return err
	}
	if len(list) == 0 {
		b.annotations = nil
		return nil
	}
	b.annotations = make([]annotation.Annotation, len(list))
	copy(b.annotations, list)
	return nil
}

// SetViewport validates and replaces the viewport. It does not render.
func (b *base) SetViewport(vp geom.Viewport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guardLocked(); err != nil {
		return err
	}
	if !vp.Valid() {
		return fmt.Errorf("layer: invalid viewport %+v", vp)
	}
	b.viewport = vp
	return nil
}

// Viewport returns a copy of the current viewport.
func (b *base) Viewport() geom.Viewport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewport
}

// UpdateTime records the new timeline position. Concrete layers override to
// additionally recompute visual state.
func (b *base) UpdateTime(t float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guardLocked(); err != nil {
		return err
	}
	b.time = t
	return nil
}

// Render is abstract at the base level.
func (b *base) Render() error {
	if err := b.guard(); err != nil {
		return err
	}
	return fmt.Errorf("render: %w", ErrNotImplemented)
}

// Update is abstract at the base level. Concrete layers whose UpdateTime
// already recomputes everything leave it a no-op.
func (b *base) Update() error {
	if err := b.guard(); err != nil {
		return err
	}
	return fmt.Errorf("update: %w", ErrNotImplemented)
}

// Destroy marks the layer destroyed and drops its state. Idempotent; never
// fails. Concrete layers release nodes and stop loops before deferring
// here.
func (b *base) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
	b.surface = nil
	b.annotations = nil
	b.viewport = geom.Viewport{}
	b.time = 0
	return nil
}
