package filters

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// OpKind is a single CSS-style color primitive.
type OpKind int

const (
	OpSepia OpKind = iota
	OpHueRotate
	OpSaturate
	OpContrast
	OpBrightness
	OpGrayscale
)

// Op is one color primitive. Amount is a factor (1.2 == 120%) for every kind
// except OpHueRotate, where it is an angle in degrees.
type Op struct {
	Kind   OpKind
	Amount float64
}

func SepiaOp(a float64) Op       { return Op{Kind: OpSepia, Amount: a} }
func HueRotateOp(deg float64) Op { return Op{Kind: OpHueRotate, Amount: deg} }
func SaturateOp(a float64) Op    { return Op{Kind: OpSaturate, Amount: a} }
func ContrastOp(a float64) Op    { return Op{Kind: OpContrast, Amount: a} }
func BrightnessOp(a float64) Op  { return Op{Kind: OpBrightness, Amount: a} }
func GrayscaleOp(a float64) Op   { return Op{Kind: OpGrayscale, Amount: a} }

// Adjustment is an ordered chain of color primitives. The zero value is the identity.
type Adjustment []Op

// Matrix is an affine color transform on normalized RGB: rows are output
// channels, the fourth column is a constant offset.
type Matrix [3][4]float64

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

// then returns the transform that applies m first and n second.
func (m Matrix) then(n Matrix) Matrix {
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r][c] = n[r][0]*m[0][c] + n[r][1]*m[1][c] + n[r][2]*m[2][c]
		}
		out[r][3] = n[r][0]*m[0][3] + n[r][1]*m[1][3] + n[r][2]*m[2][3] + n[r][3]
	}
	return out
}

// Matrix returns the op as a color matrix, following the filter-effects
// definitions used by browsers.
func (o Op) Matrix() Matrix {
	a := o.Amount
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return Identity()
	}
	switch o.Kind {
	case OpSepia:
		s := 1 - clamp01(a)
		return Matrix{
			{0.393 + 0.607*s, 0.769 - 0.769*s, 0.189 - 0.189*s, 0},
			{0.349 - 0.349*s, 0.686 + 0.314*s, 0.168 - 0.168*s, 0},
			{0.272 - 0.272*s, 0.534 - 0.534*s, 0.131 + 0.869*s, 0},
		}
	case OpGrayscale:
		s := 1 - clamp01(a)
		return Matrix{
			{0.2126 + 0.7874*s, 0.7152 - 0.7152*s, 0.0722 - 0.0722*s, 0},
			{0.2126 - 0.2126*s, 0.7152 + 0.2848*s, 0.0722 - 0.0722*s, 0},
			{0.2126 - 0.2126*s, 0.7152 - 0.7152*s, 0.0722 + 0.9278*s, 0},
		}
	case OpSaturate:
		s := math.Max(0, a)
		return Matrix{
			{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s, 0},
			{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s, 0},
			{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s, 0},
		}
	case OpHueRotate:
		rad := a * math.Pi / 180
		c, s := math.Cos(rad), math.Sin(rad)
		return Matrix{
			{0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928, 0},
			{0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283, 0},
			{0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072, 0},
		}
	case OpBrightness:
		b := math.Max(0, a)
		return Matrix{
			{b, 0, 0, 0},
			{0, b, 0, 0},
			{0, 0, b, 0},
		}
	case OpContrast:
		c := math.Max(0, a)
		off := 0.5 - 0.5*c
		return Matrix{
			{c, 0, 0, off},
			{0, c, 0, off},
			{0, 0, c, off},
		}
	}
	return Identity()
}

// Matrix folds the chain into a single color matrix. It ignores the clamping
// between steps, so it only equals Apply while every step stays in range.
func (a Adjustment) Matrix() Matrix {
	m := Identity()
	for _, op := range a {
		m = m.then(op.Matrix())
	}
	return m
}

// IsIdentity reports whether applying a leaves pixels unchanged.
func (a Adjustment) IsIdentity() bool {
	return len(a.steps()) == 0
}

// Apply grades img in place, one op at a time. Every step clamps to the
// valid range before the next one runs, as a chain of CSS filters does.
// Pixels are premultiplied, so offsets are scaled by alpha and the range is
// [0, alpha].
func (a Adjustment) Apply(img *image.RGBA) {
	if img == nil {
		return
	}
	steps := a.steps()
	if len(steps) == 0 {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			alpha := float64(row[i+3])
			if alpha == 0 {
				continue
			}
			r, g, bl := float64(row[i]), float64(row[i+1]), float64(row[i+2])
			for _, m := range steps {
				r, g, bl = channel(m[0], r, g, bl, alpha), channel(m[1], r, g, bl, alpha), channel(m[2], r, g, bl, alpha)
			}
			row[i] = uint8(r + 0.5)
			row[i+1] = uint8(g + 0.5)
			row[i+2] = uint8(bl + 0.5)
		}
	}
}

// steps returns the matrices of the ops that change anything.
func (a Adjustment) steps() []Matrix {
	var out []Matrix
	for _, op := range a {
		if m := op.Matrix(); m != Identity() {
			out = append(out, m)
		}
	}
	return out
}

func channel(row [4]float64, r, g, b, alpha float64) float64 {
	v := row[0]*r + row[1]*g + row[2]*b + row[3]*alpha
	if v < 0 {
		return 0
	}
	if v > alpha {
		return alpha
	}
	return v
}

// CSS renders the chain as a CSS filter value.
func (a Adjustment) CSS() string {
	if len(a) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(a))
	for _, op := range a {
		switch op.Kind {
		case OpSepia:
			parts = append(parts, fmt.Sprintf("sepia(%g%%)", op.Amount*100))
		case OpHueRotate:
			parts = append(parts, fmt.Sprintf("hue-rotate(%gdeg)", op.Amount))
		case OpSaturate:
			parts = append(parts, fmt.Sprintf("saturate(%g%%)", op.Amount*100))
		case OpContrast:
			parts = append(parts, fmt.Sprintf("contrast(%g%%)", op.Amount*100))
		case OpBrightness:
			parts = append(parts, fmt.Sprintf("brightness(%g%%)", op.Amount*100))
		case OpGrayscale:
			parts = append(parts, fmt.Sprintf("grayscale(%g%%)", op.Amount*100))
		}
	}
	return strings.Join(parts, " ")
}

// FFmpeg renders the chain as an ffmpeg filter, one stage per op so that
// each step clips like Apply does. Brightness and contrast go through lutrgb,
// the channel-mixing ops through colorchannelmixer. Identity yields an empty
// string.
func (a Adjustment) FFmpeg() string {
	var stages []string
	for _, op := range a {
		m := op.Matrix()
		if m == Identity() {
			continue
		}
		switch op.Kind {
		case OpBrightness, OpContrast:
			expr := fmt.Sprintf("clip(val*%.4f%+d,0,255)", m[0][0], int(math.Round(m[0][3]*255)))
			stages = append(stages, fmt.Sprintf("lutrgb=r='%[1]s':g='%[1]s':b='%[1]s'", expr))
		default:
			stages = append(stages, fmt.Sprintf(
				"colorchannelmixer=rr=%.4f:rg=%.4f:rb=%.4f:gr=%.4f:gg=%.4f:gb=%.4f:br=%.4f:bg=%.4f:bb=%.4f",
				m[0][0], m[0][1], m[0][2],
				m[1][0], m[1][1], m[1][2],
				m[2][0], m[2][1], m[2][2]))
		}
	}
	return strings.Join(stages, ",")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
