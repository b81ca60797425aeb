package timeline

import (
	"fmt"

	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/filters"
)

// Edit is one user edit expressed as data. Apply runs it against a timeline.
type Edit interface {
	apply(t Timeline) (Timeline, error)
	String() string
}

// Apply returns the result of edit on t. On error t is returned unchanged.
func Apply(t Timeline, edit Edit) (Timeline, error) {
	out, err := edit.apply(t)
	if err != nil {
		return t, fmt.Errorf("%s: %w", edit, err)
	}
	return out, nil
}

type AppendEdit struct{ Clip Clip }

type RemoveEdit struct{ Index int }

type ReorderEdit struct{ From, To int }

type MoveEdit struct {
	Index     int
	Direction Direction
}

type SetDurationEdit struct {
	Index    int
	Duration float64
	Anchor   Anchor
}

type SetStartTimeEdit struct {
	Index     int
	StartTime float64
}

type SetEffectEdit struct {
	Index int
	Kind  effects.Kind
}

type SetParamEdit struct {
	Index int
	Name  string
	Value effects.Value
}

type SetFilterEdit struct {
	Index int
	Kind  filters.Kind
}

// SetAudioEdit attaches Track, or detaches the soundtrack when Track is nil.
type SetAudioEdit struct{ Track *AudioTrack }

func (e AppendEdit) apply(t Timeline) (Timeline, error)       { return t.Append(e.Clip) }
func (e RemoveEdit) apply(t Timeline) (Timeline, error)       { return t.Remove(e.Index) }
func (e ReorderEdit) apply(t Timeline) (Timeline, error)      { return t.Reorder(e.From, e.To) }
func (e MoveEdit) apply(t Timeline) (Timeline, error)         { return t.Move(e.Index, e.Direction) }
func (e SetStartTimeEdit) apply(t Timeline) (Timeline, error) { return t.SetStartTime(e.Index, e.StartTime) }
func (e SetEffectEdit) apply(t Timeline) (Timeline, error)    { return t.SetEffect(e.Index, e.Kind) }
func (e SetParamEdit) apply(t Timeline) (Timeline, error)     { return t.SetParam(e.Index, e.Name, e.Value) }
func (e SetFilterEdit) apply(t Timeline) (Timeline, error)    { return t.SetFilter(e.Index, e.Kind) }
func (e SetAudioEdit) apply(t Timeline) (Timeline, error)     { return t.SetAudio(e.Track), nil }

func (e SetDurationEdit) apply(t Timeline) (Timeline, error) {
	return t.SetDuration(e.Index, e.Duration, e.Anchor)
}

func (e AppendEdit) String() string  { return "append" }
func (e RemoveEdit) String() string  { return fmt.Sprintf("remove %d", e.Index) }
func (e ReorderEdit) String() string { return fmt.Sprintf("reorder %d->%d", e.From, e.To) }

func (e MoveEdit) String() string {
	if e.Direction == Up {
		return fmt.Sprintf("move %d up", e.Index)
	}
	return fmt.Sprintf("move %d down", e.Index)
}

func (e SetDurationEdit) String() string {
	return fmt.Sprintf("set duration %d=%.3f", e.Index, e.Duration)
}

func (e SetStartTimeEdit) String() string {
	return fmt.Sprintf("set start %d=%.3f", e.Index, e.StartTime)
}

func (e SetEffectEdit) String() string { return fmt.Sprintf("set effect %d=%s", e.Index, e.Kind) }
func (e SetParamEdit) String() string  { return fmt.Sprintf("set param %d.%s=%s", e.Index, e.Name, e.Value) }
func (e SetFilterEdit) String() string { return fmt.Sprintf("set filter %d=%s", e.Index, e.Kind) }

func (e SetAudioEdit) String() string {
	if e.Track == nil {
		return "detach audio"
	}
	return "attach audio " + e.Track.Path
}
