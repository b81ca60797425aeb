package timeline

import "sync"

// DefaultHistoryDepth bounds the undo stack when NewHistory gets depth <= 0.
const DefaultHistoryDepth = 100

// History keeps the current timeline and bounded undo/redo stacks of prior
// values. Timelines are immutable, so a stack entry is just a value.
type History struct {
	mu      sync.Mutex
	current Timeline
	undo    []Timeline
	redo    []Timeline
	depth   int
}

func NewHistory(initial Timeline, depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{current: initial, depth: depth}
}

// Current returns the latest timeline.
func (h *History) Current() Timeline {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Do applies edit and records the previous timeline for undo. A failed edit
// leaves the history untouched.
func (h *History) Do(edit Edit) (Timeline, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := Apply(h.current, edit)
	if err != nil {
		return h.current, err
	}
	h.undo = append(h.undo, h.current)
	if len(h.undo) > h.depth {
		h.undo = h.undo[len(h.undo)-h.depth:]
	}
	h.redo = h.redo[:0]
	h.current = next
	return next, nil
}

// Undo steps back one edit. It reports false when there is nothing to undo.
func (h *History) Undo() (Timeline, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undo) == 0 {
		return h.current, false
	}
	h.redo = append(h.redo, h.current)
	h.current = h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return h.current, true
}

// Redo re-applies the last undone edit.
func (h *History) Redo() (Timeline, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redo) == 0 {
		return h.current, false
	}
	h.undo = append(h.undo, h.current)
	h.current = h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return h.current, true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}
