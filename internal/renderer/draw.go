package renderer

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/img2video/internal/effects"
)

// clearFrame fills dst with opaque black.
func clearFrame(dst *image.RGBA) {
	xdraw.Draw(dst, dst.Rect, image.Black, image.Point{}, xdraw.Src)
}

// CoverScale is the scale that makes an iw x ih image cover a w x h frame.
func CoverScale(w, h, iw, ih int) float64 {
	if iw <= 0 || ih <= 0 {
		return 1
	}
	return math.Max(float64(w)/float64(iw), float64(h)/float64(ih))
}

// drawCover draws img centered at the local origin of transform, scaled to
// cover the frame.
func drawCover(dst *image.RGBA, img image.Image, transform f64.Aff3) {
	b := img.Bounds()
	if b.Empty() {
		return
	}
	s := CoverScale(dst.Rect.Dx(), dst.Rect.Dy(), b.Dx(), b.Dy())
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	fit := f64.Aff3{s, 0, -cx * s, 0, s, -cy * s}
	m := effects.Mul(transform, fit)
	if collapsed(m, b) {
		return
	}
	xdraw.BiLinear.Transform(dst, m, img, b, xdraw.Over, nil)
}

// collapsed reports whether m maps b to less than a pixel along either axis,
// or is not finite. The bilinear kernel sizes its weight tables by the inverse
// scale, so such a transform would allocate without bound and draw nothing.
func collapsed(m f64.Aff3, b image.Rectangle) bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	if math.Abs(m[0]*m[4]-m[1]*m[3]) < 1e-12 {
		return true
	}
	w := math.Hypot(m[0], m[3]) * float64(b.Dx())
	h := math.Hypot(m[1], m[4]) * float64(b.Dy())
	return w < 1 || h < 1
}

// postPasses runs the effect passes recorded on the canvas, in order:
// overlay, scanlines, noise, channel shift.
func postPasses(dst *image.RGBA, c *effects.Canvas) {
	if a := c.Overlay.Alpha; a > 0 {
		fill := &image.Uniform{color.NRGBA{R: c.Overlay.R, G: c.Overlay.G, B: c.Overlay.B, A: alpha8(a)}}
		xdraw.Draw(dst, dst.Rect, fill, image.Point{}, xdraw.Over)
	}
	if sl := c.ScanLines; sl.Spacing > 0 && sl.Opacity > 0 {
		line := &image.Uniform{color.NRGBA{A: alpha8(sl.Opacity)}}
		for y := dst.Rect.Min.Y; y < dst.Rect.Max.Y; y += sl.Spacing {
			r := image.Rect(dst.Rect.Min.X, y, dst.Rect.Max.X, y+1)
			xdraw.Draw(dst, r, line, image.Point{}, xdraw.Over)
		}
	}
	if c.Noise > 0 {
		addNoise(dst, c)
	}
	if shift := int(math.Round(c.ChannelShift)); shift != 0 {
		shiftChannels(dst, shift)
	}
}

func alpha8(a float64) uint8 {
	if a >= 1 {
		return 255
	}
	if a <= 0 || a != a {
		return 0
	}
	return uint8(a*255 + 0.5)
}

// addNoise adds the same uniform offset to the three channels of each pixel.
// Full strength spans half the channel range either way.
func addNoise(dst *image.RGBA, c *effects.Canvas) {
	amp := c.Noise * 127.5
	r := rand.Float64
	if c.Rand != nil {
		r = c.Rand.Float64
	}
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		n := (r()*2 - 1) * amp
		a := float64(pix[i+3])
		pix[i] = clampTo(float64(pix[i])+n, a)
		pix[i+1] = clampTo(float64(pix[i+1])+n, a)
		pix[i+2] = clampTo(float64(pix[i+2])+n, a)
	}
}

func clampTo(v, hi float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > hi {
		return uint8(hi)
	}
	return uint8(v)
}

// shiftChannels moves red left and blue right by shift pixels. Edge pixels
// repeat.
func shiftChannels(dst *image.RGBA, shift int) {
	w := dst.Rect.Dx()
	row := make([]uint8, w*4)
	for y := 0; y < dst.Rect.Dy(); y++ {
		off := y * dst.Stride
		copy(row, dst.Pix[off:off+w*4])
		for x := 0; x < w; x++ {
			dst.Pix[off+x*4] = row[clampIndex(x+shift, w)*4]
			dst.Pix[off+x*4+2] = row[clampIndex(x-shift, w)*4+2]
		}
	}
}

func clampIndex(x, n int) int {
	if x < 0 {
		return 0
	}
	if x >= n {
		return n - 1
	}
	return x
}
