package export

import (
	"fmt"
	"math"

	"github.com/ivlev/img2video/internal/effects"
)

// Keyframe is the camera zoom at a clip-local time.
type Keyframe struct {
	Time float64
	Zoom float64
}

// sampleMotion records the effect scale at evenly spaced instants. Zoompan
// cannot zoom out past the frame, so zoom is floored at 1. Clips that never
// zoom get no keyframes.
func sampleMotion(eff effects.Params, duration float64, opts PlanOptions) []Keyframe {
	n := opts.MotionSamples
	kfs := make([]Keyframe, n)
	moving := false
	for i := range kfs {
		p := float64(i) / float64(n-1)
		c := effects.NewCanvas(opts.Width, opts.Height)
		eff.Apply(c, p)
		z := math.Max(1, c.ScaleFactor())
		kfs[i] = Keyframe{Time: p * duration, Zoom: z}
		if math.Abs(z-1) > 1e-6 {
			moving = true
		}
	}
	if !moving {
		return nil
	}
	return kfs
}

// ZoomAt interpolates the keyframes linearly at t.
func ZoomAt(kfs []Keyframe, t float64) float64 {
	if len(kfs) == 0 {
		return 1
	}
	if t <= kfs[0].Time {
		return kfs[0].Zoom
	}
	last := kfs[len(kfs)-1]
	if t >= last.Time {
		return last.Zoom
	}
	for i := 0; i < len(kfs)-1; i++ {
		a, b := kfs[i], kfs[i+1]
		if t >= a.Time && t < b.Time {
			span := b.Time - a.Time
			if span == 0 {
				return b.Zoom
			}
			return a.Zoom + (b.Zoom-a.Zoom)*(t-a.Time)/span
		}
	}
	return last.Zoom
}

// ZoomPanFilter builds the zoompan stage that holds one input frame for the
// whole clip while following the keyframes, centered.
func ZoomPanFilter(kfs []Keyframe, duration float64, fps, width, height int) string {
	frames := int(math.Round(duration * float64(fps)))
	if frames < 1 {
		frames = 1
	}
	return fmt.Sprintf("zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%dx%d:fps=%d",
		zoomExpression(kfs, fps), frames, width, height, fps)
}

// zoomExpression creates a piecewise linear zoom expression over the output
// frame number.
func zoomExpression(kfs []Keyframe, fps int) string {
	if len(kfs) == 0 {
		return "1"
	}
	expr := fmt.Sprintf("%.6f", kfs[len(kfs)-1].Zoom)
	for i := len(kfs) - 2; i >= 0; i-- {
		startFrame := int(kfs[i].Time * float64(fps))
		endFrame := int(kfs[i+1].Time * float64(fps))
		if endFrame <= startFrame {
			continue
		}
		expr = fmt.Sprintf("if(lte(on,%d),%.6f+(on-%d)/%d*(%.6f),%s)",
			endFrame, kfs[i].Zoom, startFrame, endFrame-startFrame, kfs[i+1].Zoom-kfs[i].Zoom, expr)
	}
	return expr
}
