// Package renderer turns "the frame at time t" into pixels. A Compositor owns
// the visible surface; every request is tagged so that only the latest one
// may present, whatever order decodes finish in.
package renderer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/filters"
	"github.com/ivlev/img2video/internal/source"
	"github.com/ivlev/img2video/internal/system"
	"github.com/ivlev/img2video/internal/timeline"
)

// DefaultFrameInterval is the dedup window for repeated requests, one 60 Hz frame.
const DefaultFrameInterval = 1.0 / 60

// ErrBusy is reported when the decode pool has no free worker for a request.
var ErrBusy = errors.New("renderer: decode pool is busy")

// DecodeError is returned when the image of the active clip cannot be decoded.
// The frame is cleared and rendering continues with the next request.
type DecodeError struct {
	ClipID uuid.UUID
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode clip %s: %v", e.ClipID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Result reports what happened to one Render request.
type Result struct {
	Seq    uint64
	T      float64
	ClipID uuid.UUID
	// Empty: no clip covers T, a cleared frame was presented.
	Empty bool
	// Skipped: T is within one frame interval of the previous request on the
	// same timeline revision, nothing was drawn.
	Skipped bool
	// Stale: a newer request superseded this one before it could present.
	Stale bool
	Err   error
}

// Presented reports whether this request changed the visible surface.
func (r Result) Presented() bool {
	return !r.Skipped && !r.Stale && (r.Err == nil || errors.As(r.Err, new(*DecodeError)))
}

// Frame describes the currently visible surface.
type Frame struct {
	Seq      uint64
	T        float64
	ClipID   uuid.UUID
	Revision uint64
	Empty    bool
}

type Options struct {
	Width, Height int
	// FrameInterval in seconds; 0 means DefaultFrameInterval, negative disables dedup.
	FrameInterval float64
	Cache         *source.Cache
	Logger        zerolog.Logger
}

// Compositor draws clips onto a fixed-size surface. Decodes run on an ants
// pool; Render itself never waits for them.
type Compositor struct {
	width, height int
	interval      float64

	pool   *ants.Pool
	cache  *source.Cache
	images *system.ImagePool
	log    zerolog.Logger

	seq atomic.Uint64

	mu      sync.Mutex
	front   *image.RGBA
	frame   Frame
	hasLast bool
	lastRev uint64
	lastT   float64
}

// NewPool returns a nonblocking pool suitable for a Compositor.
func NewPool(size int, log zerolog.Logger) (*ants.Pool, error) {
	return ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			log.Error().Interface("panic", p).Msg("panic in render worker")
		}))
}

// New returns a compositor drawing into a width x height surface. The pool
// must be nonblocking (see NewPool) for Render to stay non-blocking.
func New(opts Options, pool *ants.Pool) (*Compositor, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("renderer: invalid surface size %dx%d", opts.Width, opts.Height)
	}
	if pool == nil {
		return nil, errors.New("renderer: nil worker pool")
	}
	interval := opts.FrameInterval
	if interval == 0 {
		interval = DefaultFrameInterval
	}
	cache := opts.Cache
	if cache == nil {
		cache = source.NewCache(0)
	}
	c := &Compositor{
		width:    opts.Width,
		height:   opts.Height,
		interval: interval,
		pool:     pool,
		cache:    cache,
		images:   system.NewImagePool(),
		log:      opts.Logger,
	}
	c.front = c.images.Get(c.bounds())
	clearFrame(c.front)
	c.frame = Frame{Empty: true}
	return c, nil
}

func (c *Compositor) bounds() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

// Size returns the surface dimensions.
func (c *Compositor) Size() (int, int) { return c.width, c.height }

// Render requests the frame at t of tl. The returned channel receives exactly
// one Result and is then closed.
func (c *Compositor) Render(ctx context.Context, tl timeline.Timeline, t float64) <-chan Result {
	out := make(chan Result, 1)

	c.mu.Lock()
	if c.interval > 0 && c.hasLast && c.lastRev == tl.Revision() && math.Abs(t-c.lastT) < c.interval {
		c.mu.Unlock()
		out <- Result{T: t, Skipped: true}
		close(out)
		return out
	}
	c.hasLast, c.lastRev, c.lastT = true, tl.Revision(), t
	c.mu.Unlock()

	seq := c.seq.Add(1)
	clip, _, ok := tl.ClipAt(t)
	if !ok {
		res := Result{Seq: seq, T: t, Empty: true}
		if !c.presentEmpty(Frame{Seq: seq, T: t, Revision: tl.Revision(), Empty: true}) {
			res.Stale = true
		}
		out <- res
		close(out)
		return out
	}

	rev := tl.Revision()
	err := c.pool.Submit(func() {
		out <- c.compose(ctx, seq, rev, clip, t)
		close(out)
	})
	if err != nil {
		// forget the request so the next one is not deduplicated against it
		c.mu.Lock()
		c.hasLast = false
		c.mu.Unlock()
		if errors.Is(err, ants.ErrPoolOverload) {
			err = ErrBusy
		}
		out <- Result{Seq: seq, T: t, ClipID: clip.ID, Err: err}
		close(out)
	}
	return out
}

// RenderFrame renders t and waits for the result.
func (c *Compositor) RenderFrame(ctx context.Context, tl timeline.Timeline, t float64) (Result, error) {
	select {
	case res := <-c.Render(ctx, tl, t):
		return res, res.Err
	case <-ctx.Done():
		return Result{T: t}, ctx.Err()
	}
}

func (c *Compositor) compose(ctx context.Context, seq, rev uint64, clip timeline.Clip, t float64) Result {
	res := Result{Seq: seq, T: t, ClipID: clip.ID}

	img, err := c.cache.Decode(ctx, clip.Image)
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Err = ctxErr
		return res
	}
	if seq != c.seq.Load() {
		res.Stale = true
		return res
	}
	if err != nil {
		res.Err = &DecodeError{ClipID: clip.ID, Err: err}
		c.log.Warn().Err(err).Str("clip", clip.ID.String()).Msg("decode failed, frame cleared")
		if !c.presentEmpty(Frame{Seq: seq, T: t, ClipID: clip.ID, Revision: rev, Empty: true}) {
			res.Stale = true
		}
		return res
	}

	back := c.images.Get(c.bounds())
	c.draw(back, img, clip, t)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq.Load() {
		c.images.Put(back)
		res.Stale = true
		return res
	}
	c.front, back = back, c.front
	c.frame = Frame{Seq: seq, T: t, ClipID: clip.ID, Revision: rev}
	c.images.Put(back)
	return res
}

// draw runs the full pipeline for one clip into dst.
func (c *Compositor) draw(dst *image.RGBA, img image.Image, clip timeline.Clip, t float64) {
	clearFrame(dst)

	canvas := effects.NewCanvas(c.width, c.height)
	canvas.Rand = rand.New(rand.NewSource(frameSeed(clip.ID, t)))
	if clip.Effect != nil {
		clip.Effect.Apply(canvas, clip.Progress(t))
	}

	drawCover(dst, img, canvas.Transform)

	grade := append(filters.Adjustment{}, canvas.Filter...)
	grade = append(grade, filters.Lookup(clip.Filter)...)
	if !grade.IsIdentity() {
		grade.Apply(dst)
	}
	postPasses(dst, canvas)
}

func (c *Compositor) presentEmpty(f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.Seq != c.seq.Load() {
		return false
	}
	clearFrame(c.front)
	c.frame = f
	return true
}

// Surface returns a copy of the visible frame.
func (c *Compositor) Surface() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := image.NewRGBA(c.front.Rect)
	copy(out.Pix, c.front.Pix)
	return out
}

// Frame returns the metadata of the visible frame.
func (c *Compositor) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Invalidate drops the dedup state so the next Render always draws.
func (c *Compositor) Invalidate() {
	c.mu.Lock()
	c.hasLast = false
	c.mu.Unlock()
}

// frameSeed makes per-frame randomness (noise, unpinned random) a function of
// the clip and the instant.
func frameSeed(id uuid.UUID, t float64) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]) ^ math.Float64bits(t))
}
