package playback

import (
	"sort"
	"sync"
	"time"
)

// CancelFunc withdraws a frame request. It is safe to call more than once.
type CancelFunc func()

// Scheduler runs callbacks on the next display frame.
type Scheduler interface {
	RequestFrame(fn func()) CancelFunc
}

// frameQueue holds pending callbacks keyed by request id.
type frameQueue struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]func()
}

func (q *frameQueue) add(fn func()) CancelFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = make(map[uint64]func())
	}
	q.next++
	id := q.next
	q.pending[id] = fn
	return func() {
		q.mu.Lock()
		delete(q.pending, id)
		q.mu.Unlock()
	}
}

// drain removes and returns every pending callback in request order.
func (q *frameQueue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]uint64, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), len(ids))
	for i, id := range ids {
		fns[i] = q.pending[id]
	}
	q.pending = nil
	return fns
}

func (q *frameQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// TickerScheduler fires pending callbacks on a fixed-rate ticker, the way a
// display refresh would.
type TickerScheduler struct {
	queue  frameQueue
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewTickerScheduler starts a scheduler at fps frames per second. Stop it
// when done.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	s := &TickerScheduler{
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *TickerScheduler) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			for _, fn := range s.queue.drain() {
				fn()
			}
		}
	}
}

func (s *TickerScheduler) RequestFrame(fn func()) CancelFunc {
	return s.queue.add(fn)
}

// Stop halts the ticker. Pending callbacks never run.
func (s *TickerScheduler) Stop() {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
}

// ManualScheduler runs callbacks only when Step is called. Offline renders
// and tests drive the clock with it.
type ManualScheduler struct {
	queue frameQueue
}

func (s *ManualScheduler) RequestFrame(fn func()) CancelFunc {
	return s.queue.add(fn)
}

// Step runs the callbacks pending at the time of the call and reports how
// many ran. Callbacks requested while stepping wait for the next Step.
func (s *ManualScheduler) Step() int {
	fns := s.queue.drain()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending is the number of queued callbacks.
func (s *ManualScheduler) Pending() int { return s.queue.len() }
