package effects

import (
	"math"
	"math/rand"

	"golang.org/x/image/math/f64"

	"github.com/ivlev/img2video/internal/filters"
)

// Canvas is the drawing state an effect mutates before a frame is drawn.
// Its transform maps local coordinates (origin at the frame center) to frame
// pixels. Color and post passes are recorded, the compositor executes them.
type Canvas struct {
	Width, Height int

	Transform f64.Aff3
	// Filter is the effect's own color chain, applied before the clip filter.
	Filter filters.Adjustment

	// Overlay is a full-frame fill composited over the drawn image.
	Overlay Overlay
	// ScanLines draws dark horizontal lines every Spacing pixels.
	ScanLines ScanLines
	// Noise is the amplitude of uniform luminance noise. At 1 the offset spans
	// half the channel range either way.
	Noise float64
	// ChannelShift offsets the red channel left and blue right, in pixels.
	ChannelShift float64

	// Rand feeds per-frame randomness (unpinned Random). Nil uses math/rand.
	Rand *rand.Rand
}

// Overlay is a solid fill with an alpha in [0,1].
type Overlay struct {
	R, G, B uint8
	Alpha   float64
}

type ScanLines struct {
	Spacing int
	Opacity float64
}

// NewCanvas returns a canvas of the given size with the origin translated to
// the frame center.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		Width:     width,
		Height:    height,
		Transform: f64.Aff3{1, 0, float64(width) / 2, 0, 1, float64(height) / 2},
	}
}

// Translate moves the local origin.
func (c *Canvas) Translate(x, y float64) {
	c.Transform = Mul(c.Transform, f64.Aff3{1, 0, x, 0, 1, y})
}

// Scale scales local coordinates.
func (c *Canvas) Scale(sx, sy float64) {
	c.Transform = Mul(c.Transform, f64.Aff3{sx, 0, 0, 0, sy, 0})
}

// Rotate rotates local coordinates by deg degrees, clockwise on screen.
func (c *Canvas) Rotate(deg float64) {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	c.Transform = Mul(c.Transform, f64.Aff3{cos, -sin, 0, sin, cos, 0})
}

// ScaleFactor is the uniform scale of the current transform.
func (c *Canvas) ScaleFactor() float64 {
	t := c.Transform
	return math.Sqrt(math.Abs(t[0]*t[4] - t[1]*t[3]))
}

// Angle is the rotation of the current transform in degrees.
func (c *Canvas) Angle() float64 {
	return math.Atan2(c.Transform[3], c.Transform[0]) * 180 / math.Pi
}

func (c *Canvas) intn(n int) int {
	if c.Rand != nil {
		return c.Rand.Intn(n)
	}
	return rand.Intn(n)
}

// Mul returns the transform applying n first and then m.
func Mul(m, n f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		m[0]*n[0] + m[1]*n[3],
		m[0]*n[1] + m[1]*n[4],
		m[0]*n[2] + m[1]*n[5] + m[2],
		m[3]*n[0] + m[4]*n[3],
		m[3]*n[1] + m[4]*n[4],
		m[3]*n[2] + m[4]*n[5] + m[5],
	}
}
