// Package view holds the timeline strip state of the editor: zoom, scroll,
// playhead following and selection. The rendering core never reads it.
package view

import "math"

const (
	MinPixelsPerSecond     = 10.0
	MaxPixelsPerSecond     = 400.0
	DefaultPixelsPerSecond = 50.0
	ZoomFactor             = 1.25
)

// View maps timeline seconds to strip pixels.
type View struct {
	PixelsPerSecond float64
	ScrollOffset    float64
	// Follow keeps the playhead on screen while playing.
	Follow bool
	// Selected is the selected clip index, -1 for none.
	Selected int
}

func New() View {
	return View{PixelsPerSecond: DefaultPixelsPerSecond, Follow: true, Selected: -1}
}

// XAt is the on-screen x of instant t.
func (v View) XAt(t float64) float64 {
	return t*v.PixelsPerSecond - v.ScrollOffset
}

// TimeAt is the instant under on-screen x, never negative. Scrubbing uses it.
func (v View) TimeAt(x float64) float64 {
	if v.PixelsPerSecond <= 0 {
		return 0
	}
	return math.Max(0, (x+v.ScrollOffset)/v.PixelsPerSecond)
}

// Width is the strip length in pixels for a timeline of duration seconds.
func (v View) Width(duration float64) float64 {
	return math.Max(0, duration) * v.PixelsPerSecond
}

func (v View) ZoomIn() View  { return v.zoom(v.PixelsPerSecond * ZoomFactor) }
func (v View) ZoomOut() View { return v.zoom(v.PixelsPerSecond / ZoomFactor) }

func (v View) zoom(pps float64) View {
	v.PixelsPerSecond = math.Min(MaxPixelsPerSecond, math.Max(MinPixelsPerSecond, pps))
	return v
}

// FollowPlayhead scrolls so that the playhead at t stays inside a viewport
// of width pixels. It pages forward when the playhead leaves on the right
// and jumps back when it is left of the viewport.
func (v View) FollowPlayhead(t, width float64) View {
	if !v.Follow || width <= 0 {
		return v
	}
	x := t * v.PixelsPerSecond
	switch {
	case x < v.ScrollOffset:
		v.ScrollOffset = math.Max(0, x-width/4)
	case x > v.ScrollOffset+width:
		v.ScrollOffset = x - width/4
	}
	return v
}

// Select marks clip i. Negative indices clear the selection.
func (v View) Select(i int) View {
	if i < 0 {
		i = -1
	}
	v.Selected = i
	return v
}

// ClampSelection drops a selection that no longer points at a clip.
func (v View) ClampSelection(clips int) View {
	if v.Selected >= clips {
		v.Selected = -1
	}
	return v
}
