package audio

import (
	"sync"
	"time"
)

// WallClock is a silent audio source that advances with the system clock. It
// lets a timeline without a soundtrack be played back.
type WallClock struct {
	mu       sync.Mutex
	duration float64
	pos      float64
	started  time.Time
	playing  bool
	now      func() time.Time
}

func NewWallClock(duration float64) *WallClock {
	return &WallClock{duration: duration, now: time.Now}
}

func (w *WallClock) Duration() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.duration
}

// SetDuration follows timeline edits while playing.
func (w *WallClock) SetDuration(d float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.duration = d
}

func (w *WallClock) CurrentTime() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position()
}

func (w *WallClock) SetCurrentTime(t float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = w.clamp(t)
	if w.playing {
		w.started = w.now()
	}
}

// Play starts advancing. Playing from the end restarts from zero.
func (w *WallClock) Play() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.playing {
		return nil
	}
	if w.pos >= w.duration {
		w.pos = 0
	}
	w.started = w.now()
	w.playing = true
	return nil
}

func (w *WallClock) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = w.position()
	w.playing = false
}

// Paused reports true once the clock has been paused or has run to the end.
func (w *WallClock) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.playing || w.position() >= w.duration
}

func (w *WallClock) position() float64 {
	if !w.playing {
		return w.pos
	}
	return w.clamp(w.pos + w.now().Sub(w.started).Seconds())
}

func (w *WallClock) clamp(t float64) float64 {
	if t < 0 || t != t {
		return 0
	}
	if t > w.duration {
		return w.duration
	}
	return t
}
