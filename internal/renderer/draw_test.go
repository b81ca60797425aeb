package renderer

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/ivlev/img2video/internal/effects"
)

func TestDrawCoverCollapsedTransform(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
		drawn bool
	}{
		{"tiny zoom", 1e-9, false},
		{"zero", 0, false},
		{"under a pixel", 1e-3, false},
		{"half", 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := image.NewRGBA(image.Rect(0, 0, 641, 361))
			clearFrame(dst)
			c := effects.NewCanvas(641, 361)
			effects.Defaults(effects.SlowZoom).
				With("startScale", effects.Number(tt.scale)).
				Apply(c, 0)

			drawCover(dst, solid(100, 50, red), c.Transform)

			want := color.RGBA{A: 255}
			if tt.drawn {
				want = red
			}
			if p := pixel(dst, 320, 180); p != want {
				t.Errorf("center = %v, want %v", p, want)
			}
		})
	}
}

func TestCollapsed(t *testing.T) {
	b := image.Rect(0, 0, 100, 50)
	tests := []struct {
		name string
		m    [6]float64
		want bool
	}{
		{"identity", [6]float64{1, 0, 0, 0, 1, 0}, false},
		{"rotated", [6]float64{0, -1, 0, 1, 0, 0}, false},
		{"squashed axis", [6]float64{1000, 0, 0, 0, 1e-9, 0}, true},
		{"singular", [6]float64{1, 1, 0, 1, 1, 0}, true},
		{"nan", [6]float64{math.NaN(), 0, 0, 0, 1, 0}, true},
		{"inf offset", [6]float64{1, 0, math.Inf(1), 0, 1, 0}, true},
	}
	for _, tt := range tests {
		if got := collapsed(tt.m, b); got != tt.want {
			t.Errorf("%s: collapsed = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNoiseAmplitude(t *testing.T) {
	tests := []struct {
		noise   float64
		maxDiff int
	}{
		{0.5, 64},
		{1, 128},
		{0.1, 13},
	}
	for _, tt := range tests {
		dst := solid(200, 200, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		addNoise(dst, &effects.Canvas{Noise: tt.noise, Rand: rand.New(rand.NewSource(1))})

		most := 0
		for i := 0; i < len(dst.Pix); i += 4 {
			d := int(dst.Pix[i]) - 128
			if d < 0 {
				d = -d
			}
			if d > most {
				most = d
			}
			if dst.Pix[i] != dst.Pix[i+1] || dst.Pix[i] != dst.Pix[i+2] {
				t.Fatalf("noise %v: channels differ at %d: %v", tt.noise, i/4, dst.Pix[i:i+3])
			}
		}
		if most > tt.maxDiff {
			t.Errorf("noise %v: deviation %d exceeds %d", tt.noise, most, tt.maxDiff)
		}
		if most < tt.maxDiff/2 {
			t.Errorf("noise %v: deviation %d is too weak", tt.noise, most)
		}
	}
}
