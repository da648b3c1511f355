package layer

import (
	"image/color"
	"testing"

	"github.com/mkraev/annoplay/internal/annotation"
)

func TestParseColor(t *testing.T) {
	fallback := color.RGBA{R: 1, G: 2, B: 3, A: 4}

	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ff0000", color.RGBA{R: 0xff, A: 0xff}},
		{"00ff00", color.RGBA{G: 0xff, A: 0xff}},
		{"#fff", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{"#11223344", color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}},
		{" #abc ", color.RGBA{R: 0xaa, G: 0xbb, B: 0xcc, A: 0xff}},
		{"", fallback},
		{"notacolor", fallback},
		{"#12345", fallback},
	}
	for _, tt := range tests {
		if got := ParseColor(tt.in, fallback); got != tt.want {
			t.Errorf("ParseColor(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestResolveHighlightAppliesAlpha(t *testing.T) {
	c := ResolveHighlight(annotation.Style{Color: "#00ff00"})
	if c.G != 0xff || c.A == 0xff {
		t.Errorf("highlight color %+v should be translucent green", c)
	}

	def := ResolveHighlight(annotation.Style{})
	if def.A != highlightAlpha {
		t.Errorf("default highlight alpha = %d, want %d", def.A, highlightAlpha)
	}
}

func TestResolveTextDefaults(t *testing.T) {
	bg, fg := ResolveText(annotation.Style{})
	if bg != defaultTextBG || fg != defaultTextColor {
		t.Errorf("defaults not applied: bg=%+v fg=%+v", bg, fg)
	}

	bg, fg = ResolveText(annotation.Style{BG: "#000000", Color: "#ff0000"})
	if bg != (color.RGBA{A: 0xff}) || fg != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Errorf("overrides not applied: bg=%+v fg=%+v", bg, fg)
	}
}

func TestResolveStroke(t *testing.T) {
	c, size := ResolveStroke(annotation.Stroke{})
	if c != defaultInkColor || size != defaultInkSize {
		t.Errorf("defaults not applied: %+v %v", c, size)
	}

	c, size = ResolveStroke(annotation.Stroke{Color: "#0000ff", Size: 7})
	if c != (color.RGBA{B: 0xff, A: 0xff}) || size != 7 {
		t.Errorf("overrides not applied: %+v %v", c, size)
	}
}
