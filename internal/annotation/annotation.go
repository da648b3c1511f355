package annotation

import (
	"github.com/mkraev/annoplay/internal/geom"
)

// Annotation type discriminators.
const (
	TypeHighlight = "highlight"
	TypeText      = "text"
	TypeInk       = "ink"
)

// ModeQuads is the only highlight mode this engine renders.
const ModeQuads = "quads"

// Style carries the optional presentation overrides an annotation may set.
// Colors are CSS-style hex strings; empty fields fall back to defaults at
// render time.
type Style struct {
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	BG    string `json:"bg,omitempty" yaml:"bg,omitempty"`
}

// StrokePoint is one sample of an ink stroke. T is a time offset relative
// to the stroke's own animation window, not absolute timeline time; X and Y
// are unit-interval page coordinates.
type StrokePoint struct {
	T float64 `json:"t" yaml:"t"`
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Stroke is a freehand ink path with its own color and width.
type Stroke struct {
	Color  string        `json:"color,omitempty" yaml:"color,omitempty"`
	Size   float64       `json:"size,omitempty" yaml:"size,omitempty"`
	Points []StrokePoint `json:"points" yaml:"points"`
}

// Annotation is a timed visual overlay record positioned in unit
// coordinates on a specific page. The variant is discriminated by Type;
// fields not belonging to the variant stay zero.
type Annotation struct {
	ID    string  `json:"id" yaml:"id"`
	Type  string  `json:"type" yaml:"type"`
	Page  int     `json:"page" yaml:"page"` // 1-indexed
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Style Style   `json:"style,omitempty" yaml:"style,omitempty"`

	// highlight
	Mode  string          `json:"mode,omitempty" yaml:"mode,omitempty"`
	Quads []geom.UnitRect `json:"quads,omitempty" yaml:"quads,omitempty"`

	// text
	Content string        `json:"content,omitempty" yaml:"content,omitempty"`
	Rect    geom.UnitRect `json:"rect,omitempty" yaml:"rect,omitempty"`

	// ink
	Strokes []Stroke `json:"strokes,omitempty" yaml:"strokes,omitempty"`
}

// Duration returns the length of the annotation's animation window.
func (a *Annotation) Duration() float64 {
	return a.End - a.Start
}

// FilterPage returns the annotations belonging to the given 1-indexed page.
func FilterPage(list []Annotation, page int) []Annotation {
	var out []Annotation
	for _, a := range list {
		if a.Page == page {
			out = append(out, a)
		}
	}
	return out
}

// Partition splits annotations by type. Unknown types are dropped.
func Partition(list []Annotation) (highlights, texts, inks []Annotation) {
	for _, a := range list {
		switch a.Type {
		case TypeHighlight:
			highlights = append(highlights, a)
		case TypeText:
			texts = append(texts, a)
		case TypeInk:
			inks = append(inks, a)
		}
	}
	return highlights, texts, inks
}
