package geom

// UnitRect is a rectangle in unit coordinates: every field lies in [0,1]
// and is independent of the pixel resolution of the rendered page.
type UnitRect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// PixelRect is a rectangle in surface pixels.
type PixelRect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Viewport describes the pixel dimensions of the current page surface and
// the zoom factor used to produce it.
type Viewport struct {
	Width  float64
	Height float64
	Scale  float64
}

// Valid reports whether all three viewport fields are positive.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0 && v.Scale > 0
}

// MapRect maps a unit rectangle onto the viewport in pixels. Coordinates
// outside [0,1] are clamped rather than rejected; validation belongs to the
// data pipeline upstream.
func MapRect(r UnitRect, vp Viewport) PixelRect {
	return PixelRect{
		Left:   Clamp01(r.X) * vp.Width,
		Top:    Clamp01(r.Y) * vp.Height,
		Width:  Clamp01(r.W) * vp.Width,
		Height: Clamp01(r.H) * vp.Height,
	}
}

// MapPoint maps a unit point onto the viewport in pixels.
func MapPoint(x, y float64, vp Viewport) (px, py float64) {
	return Clamp01(x) * vp.Width, Clamp01(y) * vp.Height
}

// epsilon floors interpolation denominators so zero-length animation
// windows and zero-width segments resolve to full progress instead of NaN.
const epsilon = 1e-6

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Lerp performs linear interpolation between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Progress returns the elapsed fraction of the window [start, end] at time
// t, clamped to [0,1]. A window shorter than epsilon snaps to full progress
// the moment t reaches its start.
func Progress(start, end, t float64) float64 {
	if t < start {
		return 0
	}
	d := end - start
	if d < epsilon {
		return 1
	}
	return Clamp01((t - start) / d)
}
