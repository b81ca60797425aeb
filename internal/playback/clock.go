// Package playback keeps the preview in step with the soundtrack. The audio
// source is the authoritative clock; every display frame the playback clock
// reads its position and asks the renderer for that instant.
package playback

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultSeekStep is the rewind and fast-forward distance in seconds.
const DefaultSeekStep = 5.0

// AudioSource is a playable track with its own clock.
type AudioSource interface {
	Duration() float64
	CurrentTime() float64
	SetCurrentTime(t float64)
	Play() error
	Pause()
	// Paused is true when the track is not advancing, including after it ended.
	Paused() bool
}

// Renderer draws the frame at t. It must not block.
type Renderer interface {
	RenderAt(t float64)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(t float64)

func (f RendererFunc) RenderAt(t float64) { f(t) }

type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

type Options struct {
	SeekStep float64
	Logger   zerolog.Logger
}

// Clock is the playback state machine. All renders happen while holding its
// mutex, so once Pause returns no further frame is drawn.
type Clock struct {
	render Renderer
	sched  Scheduler
	step   float64
	log    zerolog.Logger

	mu       sync.Mutex
	audio    AudioSource
	duration float64
	current  float64
	state    State
	cancel   CancelFunc
	gen      uint64
}

func New(r Renderer, s Scheduler, opts Options) *Clock {
	step := opts.SeekStep
	if step <= 0 {
		step = DefaultSeekStep
	}
	return &Clock{render: r, sched: s, step: step, log: opts.Logger}
}

// SetAudio attaches a track, or detaches it when a is nil. Detaching while
// playing stops playback.
func (c *Clock) SetAudio(a AudioSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audio != nil && c.state == Playing {
		c.stop()
	}
	c.audio = a
	if a != nil {
		a.SetCurrentTime(c.current)
	}
}

// SetDuration sets the playable length. The current time is clamped into it.
func (c *Clock) SetDuration(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 || math.IsNaN(d) {
		d = 0
	}
	c.duration = d
	if c.current > d {
		c.current = d
	}
}

func (c *Clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// CurrentTime is the authoritative "now" used for rendering.
func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play starts playback from the current time. Without an audio source there
// is nothing to drive the clock and Play reports false.
func (c *Clock) Play() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Playing {
		return true
	}
	if c.audio == nil {
		return false
	}
	c.audio.SetCurrentTime(c.current)
	if err := c.audio.Play(); err != nil {
		c.log.Error().Err(err).Msg("audio play failed")
		return false
	}
	c.state = Playing
	c.schedule()
	return true
}

// Pause stops the audio and withdraws the pending tick.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Playing {
		return
	}
	if c.audio != nil {
		c.current = c.clamp(c.audio.CurrentTime())
	}
	c.stop()
}

// Toggle switches between playing and stopped.
func (c *Clock) Toggle() {
	if c.State() == Playing {
		c.Pause()
		return
	}
	c.Play()
}

// Seek moves to t, clamped to [0, duration], and renders once. The play
// state does not change.
func (c *Clock) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seek(t)
}

func (c *Clock) Rewind()        { c.nudge(-c.step) }
func (c *Clock) FastForward()   { c.nudge(c.step) }
func (c *Clock) RewindToStart() { c.Seek(0) }

func (c *Clock) nudge(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seek(c.position() + delta)
}

func (c *Clock) seek(t float64) {
	t = c.clamp(t)
	c.current = t
	if c.audio != nil {
		c.audio.SetCurrentTime(t)
	}
	c.render.RenderAt(t)
}

func (c *Clock) position() float64 {
	if c.state == Playing && c.audio != nil {
		return c.audio.CurrentTime()
	}
	return c.current
}

func (c *Clock) schedule() {
	gen := c.gen
	c.cancel = c.sched.RequestFrame(func() { c.tick(gen) })
}

func (c *Clock) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// a tick that survived a Pause/Play cycle
	if gen != c.gen || c.state != Playing || c.audio == nil {
		return
	}

	pos := c.audio.CurrentTime()
	if pos >= c.duration {
		c.stop()
		c.current = 0
		c.audio.SetCurrentTime(0)
		c.render.RenderAt(0)
		c.log.Debug().Msg("playback reached the end")
		return
	}
	if c.audio.Paused() {
		c.stop()
		c.current = c.clamp(pos)
		c.render.RenderAt(c.current)
		return
	}

	c.current = c.clamp(pos)
	c.render.RenderAt(c.current)
	c.schedule()
}

// stop pauses audio and cancels the pending tick. Callers hold c.mu.
func (c *Clock) stop() {
	if c.audio != nil {
		c.audio.Pause()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.state = Stopped
}

func (c *Clock) clamp(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if t > c.duration {
		return c.duration
	}
	return t
}
