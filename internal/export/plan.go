// Package export turns a timeline snapshot into an ordered encode plan and
// hands it to an encoder adapter.
package export

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/filters"
	"github.com/ivlev/img2video/internal/timeline"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultFade   = 1.0
	DefaultFPS    = 30
)

// Item is one clip as the encoder sees it.
type Item struct {
	Name       string
	ImageBytes []byte
	Duration   float64

	Width, Height   int
	FadeIn, FadeOut float64

	// Filter is an ffmpeg filter chain for the clip grade, empty for none.
	Filter string
	// Motion samples the effect zoom over clip-local time. Nil for a still clip.
	Motion []Keyframe
}

// ConcatSpec describes how the segments are joined and encoded.
type ConcatSpec struct {
	FPS     int
	Encoder string
	Quality int
}

// Plan is the ordered description of the whole export. Clips are joined back
// to back in timeline order.
type Plan struct {
	Items     []Item
	Concat    ConcatSpec
	AudioPath string
	Duration  float64
}

type PlanOptions struct {
	Width, Height int
	Fade          float64
	FPS           int
	Encoder       string
	Quality       int
	// Workers bounds concurrent image reads, 0 means no limit.
	Workers int
	// MotionSamples is the number of zoom keyframes per clip.
	MotionSamples int
}

func (o PlanOptions) withDefaults() PlanOptions {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Fade < 0 || math.IsNaN(o.Fade) {
		o.Fade = 0
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	if o.Encoder == "" {
		o.Encoder = "libx264"
	}
	if o.Quality <= 0 {
		o.Quality = 23
	}
	if o.MotionSamples < 2 {
		o.MotionSamples = 8
	}
	return o
}

// DefaultPlanOptions are the values the export path uses when not configured.
func DefaultPlanOptions() PlanOptions {
	return PlanOptions{Fade: DefaultFade}.withDefaults()
}

// BuildPlan reads every clip image and resolves grades and motion. Image
// reads run concurrently; the plan keeps timeline order.
func BuildPlan(ctx context.Context, tl timeline.Timeline, opts PlanOptions) (Plan, error) {
	opts = opts.withDefaults()
	clips := tl.Clips()
	if len(clips) == 0 {
		return Plan{}, fmt.Errorf("export: timeline has no clips")
	}

	items := make([]Item, len(clips))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, clip := range clips {
		i, clip := i, clip
		g.Go(func() error {
			data, err := clip.Image.Bytes(ctx)
			if err != nil {
				return fmt.Errorf("export: clip %d (%s): %w", i, clip.Image.Key(), err)
			}
			items[i] = buildItem(clip, data, opts)
			items[i].Name = fmt.Sprintf("%03d", i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Items:  items,
		Concat: ConcatSpec{FPS: opts.FPS, Encoder: opts.Encoder, Quality: opts.Quality},
	}
	for _, it := range items {
		plan.Duration += it.Duration
	}
	if a, ok := tl.Audio(); ok {
		plan.AudioPath = a.Path
	}
	return plan, nil
}

func buildItem(clip timeline.Clip, data []byte, opts PlanOptions) Item {
	fade := math.Min(opts.Fade, clip.Duration/2)
	it := Item{
		ImageBytes: data,
		Duration:   clip.Duration,
		Width:      opts.Width,
		Height:     opts.Height,
		FadeIn:     fade,
		FadeOut:    fade,
	}

	eff := clip.Effect
	if eff == nil {
		eff = effects.Defaults(effects.None)
	}
	// grade recorded by the effect mid-clip; effect grades do not vary with progress
	mid := effects.NewCanvas(opts.Width, opts.Height)
	eff.Apply(mid, 0.5)
	grade := append(filters.Adjustment{}, mid.Filter...)
	grade = append(grade, filters.Lookup(clip.Filter)...)
	it.Filter = grade.FFmpeg()

	it.Motion = sampleMotion(eff, clip.Duration, opts)
	return it
}
