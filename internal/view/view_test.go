package view

import (
	"math"
	"testing"
)

func TestTimePixelRoundTrip(t *testing.T) {
	v := New()
	v.ScrollOffset = 120
	for _, at := range []float64{3, 7.25, 60} {
		if got := v.TimeAt(v.XAt(at)); math.Abs(got-at) > 1e-9 {
			t.Errorf("TimeAt(XAt(%v)) = %v", at, got)
		}
	}
	if got := v.TimeAt(-500); got != 0 {
		t.Errorf("TimeAt left of zero = %v", got)
	}
}

func TestZoomClamps(t *testing.T) {
	v := New()
	in := v.ZoomIn()
	if in.PixelsPerSecond != DefaultPixelsPerSecond*ZoomFactor {
		t.Errorf("ZoomIn = %v", in.PixelsPerSecond)
	}
	for i := 0; i < 50; i++ {
		v = v.ZoomIn()
	}
	if v.PixelsPerSecond != MaxPixelsPerSecond {
		t.Errorf("max zoom = %v", v.PixelsPerSecond)
	}
	for i := 0; i < 50; i++ {
		v = v.ZoomOut()
	}
	if v.PixelsPerSecond != MinPixelsPerSecond {
		t.Errorf("min zoom = %v", v.PixelsPerSecond)
	}
}

func TestFollowPlayhead(t *testing.T) {
	tests := []struct {
		name   string
		scroll float64
		follow bool
		t      float64
		want   float64
	}{
		{"visible", 0, true, 5, 0},
		{"past right edge", 0, true, 25, 1150},
		{"left of viewport", 1000, true, 2, 0},
		{"follow off", 0, false, 25, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.ScrollOffset = tt.scroll
			v.Follow = tt.follow
			got := v.FollowPlayhead(tt.t, 400).ScrollOffset
			if got != tt.want {
				t.Errorf("ScrollOffset = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelection(t *testing.T) {
	v := New()
	if v.Selected != -1 {
		t.Fatal("new view has a selection")
	}
	v = v.Select(3)
	if v.ClampSelection(5).Selected != 3 {
		t.Error("valid selection dropped")
	}
	if v.ClampSelection(3).Selected != -1 {
		t.Error("dangling selection kept")
	}
	if v.Select(-7).Selected != -1 {
		t.Error("negative select")
	}
}
