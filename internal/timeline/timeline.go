// Package timeline holds the ordered clip sequence. Timeline is an immutable
// value: every edit returns a new Timeline and leaves the receiver untouched,
// which gives render a consistent snapshot and makes undo trivial.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/filters"
)

var (
	ErrIndexOutOfRange = errors.New("clip index out of range")
	ErrInvalidDuration = errors.New("invalid duration")
)

// Anchor selects which boundary of a clip stays fixed when its duration changes.
type Anchor int

const (
	// AnchorStart keeps the start; the end moves.
	AnchorStart Anchor = iota
	// AnchorEnd keeps the end; the start moves (dragging the left handle).
	AnchorEnd
)

// Direction is a one-step move in playback order.
type Direction int

const (
	Up Direction = iota
	Down
)

// AudioTrack is the optional soundtrack. Its lifecycle is independent of clips.
type AudioTrack struct {
	Path     string
	Duration float64
}

// Timeline is an ordered, gapless-by-default sequence of clips.
type Timeline struct {
	clips    []Clip
	audio    *AudioTrack
	revision uint64
}

var revisions atomic.Uint64

// New returns an empty timeline.
func New() Timeline {
	return Timeline{revision: revisions.Add(1)}
}

// derive copies t's clips for modification and stamps a fresh revision.
func (t Timeline) derive() Timeline {
	clips := make([]Clip, len(t.clips))
	copy(clips, t.clips)
	return Timeline{clips: clips, audio: t.audio, revision: revisions.Add(1)}
}

// Revision changes on every edit. Two timelines with the same revision are identical.
func (t Timeline) Revision() uint64 { return t.revision }

func (t Timeline) Len() int { return len(t.clips) }

// Clip returns the clip at index i.
func (t Timeline) Clip(i int) (Clip, error) {
	if i < 0 || i >= len(t.clips) {
		return Clip{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return t.clips[i], nil
}

// Clips returns a copy of the clip sequence.
func (t Timeline) Clips() []Clip {
	out := make([]Clip, len(t.clips))
	copy(out, t.clips)
	return out
}

// Audio returns the soundtrack, if any.
func (t Timeline) Audio() (AudioTrack, bool) {
	if t.audio == nil {
		return AudioTrack{}, false
	}
	return *t.audio, true
}

// End is the latest clip end, 0 for an empty timeline.
func (t Timeline) End() float64 {
	end := 0.0
	for _, c := range t.clips {
		end = math.Max(end, c.End())
	}
	return end
}

// Duration is the playable length: the soundtrack's duration when present,
// otherwise the latest clip end.
func (t Timeline) Duration() float64 {
	if t.audio != nil {
		return t.audio.Duration
	}
	return t.End()
}

// ClipAt returns the first clip, in order, covering instant at. It reports
// false for gaps, instants past the end and NaN.
func (t Timeline) ClipAt(at float64) (Clip, int, bool) {
	for i, c := range t.clips {
		if c.Covers(at) {
			return c, i, true
		}
	}
	return Clip{}, -1, false
}

// IndexOf returns the position of the clip with the given id, or -1.
func (t Timeline) IndexOf(id uuid.UUID) int {
	for i, c := range t.clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Append adds clip at the end, starting where the last clip ends.
func (t Timeline) Append(clip Clip) (Timeline, error) {
	d, err := checkDuration(clip.Duration)
	if err != nil {
		return t, err
	}
	out := t.derive()
	clip.Duration = d
	clip.StartTime = 0
	if n := len(out.clips); n > 0 {
		clip.StartTime = out.clips[n-1].End()
	}
	if clip.Effect == nil {
		clip.Effect = effects.Defaults(effects.None)
	}
	if clip.Filter == "" {
		clip.Filter = filters.None
	}
	out.clips = append(out.clips, clip)
	return out, nil
}

// Remove drops clip i and repacks the remainder from zero.
func (t Timeline) Remove(i int) (Timeline, error) {
	if err := t.check(i); err != nil {
		return t, err
	}
	out := t.derive()
	out.clips = append(out.clips[:i], out.clips[i+1:]...)
	out.repack(0)
	return out, nil
}

// Reorder moves clip from to position to and repacks every clip from zero.
func (t Timeline) Reorder(from, to int) (Timeline, error) {
	if err := t.check(from); err != nil {
		return t, err
	}
	if err := t.check(to); err != nil {
		return t, err
	}
	out := t.derive()
	clip := out.clips[from]
	out.clips = append(out.clips[:from], out.clips[from+1:]...)
	out.clips = append(out.clips[:to], append([]Clip{clip}, out.clips[to:]...)...)
	out.repack(0)
	return out, nil
}

// Move swaps clip i with its neighbor and repacks from zero. Moving the
// first clip up or the last clip down is a no-op.
func (t Timeline) Move(i int, dir Direction) (Timeline, error) {
	if err := t.check(i); err != nil {
		return t, err
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(t.clips) {
		return t, nil
	}
	out := t.derive()
	out.clips[i], out.clips[j] = out.clips[j], out.clips[i]
	out.repack(0)
	return out, nil
}

// SetDuration changes the duration of clip i. With AnchorEnd the start moves
// by the difference so the end boundary stays put. Later clips are repacked.
func (t Timeline) SetDuration(i int, d float64, anchor Anchor) (Timeline, error) {
	if err := t.check(i); err != nil {
		return t, err
	}
	d, err := checkDuration(d)
	if err != nil {
		return t, err
	}
	out := t.derive()
	c := &out.clips[i]
	if anchor == AnchorEnd {
		c.StartTime, d = anchorEnd(c.End(), d)
	}
	c.Duration = d
	out.repack(i + 1)
	return out, nil
}

// anchorEnd picks a start for a clip of duration d so that start+d equals end
// bit for bit. end-d alone can be off by one ulp after rounding; the start is
// nudged a few ulps either way, and in the rare tie case d moves by one ulp.
func anchorEnd(end, d float64) (float64, float64) {
	start := end - d
	durations := []float64{d, math.Nextafter(d, math.Inf(1))}
	if down := math.Nextafter(d, 0); down >= MinDuration {
		durations = append(durations, down)
	}
	for _, dd := range durations {
		lo, hi := start, start
		if lo+dd == end {
			return lo, dd
		}
		for k := 0; k < 4; k++ {
			lo = math.Nextafter(lo, math.Inf(-1))
			hi = math.Nextafter(hi, math.Inf(1))
			if lo+dd == end {
				return lo, dd
			}
			if hi+dd == end {
				return hi, dd
			}
		}
	}
	return start, d
}

// SetStartTime places clip i at max(0, at) verbatim and repacks the clips
// after it. Earlier clips are not touched, so this may open a gap or an
// overlap with clip i-1.
func (t Timeline) SetStartTime(i int, at float64) (Timeline, error) {
	if err := t.check(i); err != nil {
		return t, err
	}
	if math.IsNaN(at) || math.IsInf(at, 0) {
		return t, fmt.Errorf("start time %v is not finite", at)
	}
	out := t.derive()
	out.clips[i].StartTime = math.Max(0, at)
	out.repack(i + 1)
	return out, nil
}

// SetEffect switches the effect of clip i and resets its parameters to that
// effect's defaults. A random effect is pinned to one delegate here.
func (t Timeline) SetEffect(i int, kind effects.Kind) (Timeline, error) {
	if err := t.check(i); err != nil {
		return t, err
	}
	out := t.derive()
	c := &out.clips[i]
	c.Effect = effects.New(kind, c.rng())
	return out, nil
}

// SetParam merges one parameter into the effect of clip i.
func (t Timeline) SetParam(i int, name string, v effects.Value) (Timeline, error) {
	if err := t.check(i); err != nil {
		return t, err
	}
	out := t.derive()
	c := &out.clips[i]
	if c.Effect == nil {
		c.Effect = effects.Defaults(effects.None)
	}
	c.Effect = c.Effect.With(name, v)
	return out, nil
}

// SetFilter assigns the color grade of clip i.
func (t Timeline) SetFilter(i int, kind filters.Kind) (Timeline, error) {
	if err := t.check(i); err != nil {
		return t, err
	}
	out := t.derive()
	out.clips[i].Filter = kind
	return out, nil
}

// SetAudio attaches a soundtrack. A nil track detaches it.
func (t Timeline) SetAudio(track *AudioTrack) Timeline {
	out := t.derive()
	if track != nil {
		a := *track
		if a.Duration < 0 || math.IsNaN(a.Duration) {
			a.Duration = 0
		}
		out.audio = &a
	} else {
		out.audio = nil
	}
	return out
}

// repack places clips from..n-1 back to back after clip from-1 (or at 0).
func (t *Timeline) repack(from int) {
	for i := from; i < len(t.clips); i++ {
		if i == 0 {
			t.clips[0].StartTime = 0
			continue
		}
		t.clips[i].StartTime = t.clips[i-1].End()
	}
}

func (t Timeline) check(i int) error {
	if i < 0 || i >= len(t.clips) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(t.clips))
	}
	return nil
}

func clampDuration(d float64) float64 {
	if math.IsNaN(d) || d < MinDuration {
		return MinDuration
	}
	return d
}

// checkDuration clamps d to MinDuration. Non-finite durations are rejected.
func checkDuration(d float64) (float64, error) {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, d)
	}
	return clampDuration(d), nil
}
