package layer

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/mkraev/annoplay/internal/annotation"
)

// Default presentation values applied when an annotation carries no style.
var (
	defaultHighlightColor = color.RGBA{R: 0xff, G: 0xeb, B: 0x3b, A: 0xff} // marker yellow
	defaultTextBG         = color.RGBA{R: 0x21, G: 0x21, B: 0x21, A: 0xd9}
	defaultTextColor      = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	defaultInkColor       = color.RGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff} // pen red
)

const (
	// highlightAlpha is the opacity highlights are painted with so the page
	// text stays readable underneath.
	highlightAlpha = 0x73

	defaultInkSize = 3.0
)

// ParseColor parses a CSS-style hex color (#rgb, #rrggbb, #rrggbbaa) and
// falls back when the string is empty or malformed.
func ParseColor(s string, fallback color.RGBA) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return fallback
		}
		r := uint8(v >> 8 & 0xf)
		g := uint8(v >> 4 & 0xf)
		b := uint8(v & 0xf)
		return color.RGBA{R: r<<4 | r, G: g<<4 | g, B: b<<4 | b, A: 0xff}
	case 6:
		v, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return fallback
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
	case 8:
		v, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return fallback
		}
		return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	default:
		return fallback
	}
}

// ResolveHighlight returns the paint color for a highlight annotation with
// the translucent marker alpha applied.
func ResolveHighlight(s annotation.Style) color.RGBA {
	c := ParseColor(s.Color, defaultHighlightColor)
	c.A = highlightAlpha
	return c
}

// ResolveText returns background and foreground colors for a text callout.
func ResolveText(s annotation.Style) (bg, fg color.RGBA) {
	return ParseColor(s.BG, defaultTextBG), ParseColor(s.Color, defaultTextColor)
}

// ResolveStroke returns the pen color and width for an ink stroke.
func ResolveStroke(st annotation.Stroke) (color.RGBA, float64) {
	size := st.Size
	if size <= 0 {
		size = defaultInkSize
	}
	return ParseColor(st.Color, defaultInkColor), size
}
