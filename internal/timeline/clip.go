package timeline

import (
	"encoding/binary"
	"math/rand"

	"github.com/google/uuid"

	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/filters"
	"github.com/ivlev/img2video/internal/source"
)

// MinDuration is the shortest a clip may last, in seconds.
const MinDuration = 0.1

// Clip is one image placed on the timeline.
type Clip struct {
	ID        uuid.UUID
	Image     source.Image
	Effect    effects.Params
	Filter    filters.Kind
	Duration  float64
	StartTime float64
}

// NewClip returns a clip with no effect and no filter. StartTime is assigned
// when the clip is appended.
func NewClip(img source.Image, duration float64) Clip {
	return Clip{
		ID:       uuid.New(),
		Image:    img,
		Effect:   effects.Defaults(effects.None),
		Filter:   filters.None,
		Duration: clampDuration(duration),
	}
}

// End is the exclusive end of the clip on the timeline.
func (c Clip) End() float64 {
	return c.StartTime + c.Duration
}

// Covers reports whether t falls inside [StartTime, End).
func (c Clip) Covers(t float64) bool {
	return c.StartTime <= t && t < c.End()
}

// Progress is the clip-local normalized time for t, clamped to [0,1].
func (c Clip) Progress(t float64) float64 {
	if c.Duration <= 0 {
		return 0
	}
	p := (t - c.StartTime) / c.Duration
	if p < 0 || p != p {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// rng derives a generator from the clip identity, so effect choices made
// for a clip are reproducible.
func (c Clip) rng() *rand.Rand {
	seed := int64(binary.BigEndian.Uint64(c.ID[:8]) ^ binary.BigEndian.Uint64(c.ID[8:]))
	return rand.New(rand.NewSource(seed))
}
