package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func stubProbe(t *testing.T, d float64, err error) *[]string {
	t.Helper()
	var calls []string
	orig := ffprobe
	ffprobe = func(_ context.Context, path string) (float64, error) {
		calls = append(calls, path)
		return d, err
	}
	t.Cleanup(func() { ffprobe = orig })
	return &calls
}

func TestProbeUsesFFprobeForOtherFormats(t *testing.T) {
	calls := stubProbe(t, 42.5, nil)
	tr, err := Probe(context.Background(), "song.wav")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Duration != 42.5 || tr.Path != "song.wav" {
		t.Errorf("track = %+v", tr)
	}
	if len(*calls) != 1 {
		t.Errorf("ffprobe calls = %d", len(*calls))
	}
}

func TestProbeFallsBackWhenMP3Undecodable(t *testing.T) {
	calls := stubProbe(t, 10, nil)
	path := filepath.Join(t.TempDir(), "broken.mp3")
	if err := os.WriteFile(path, []byte("not an mp3"), 0o644); err != nil {
		t.Fatal(err)
	}
	tr, err := Probe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Duration != 10 || len(*calls) != 1 {
		t.Errorf("track = %+v, calls = %v", tr, *calls)
	}
}

func TestProbeErrors(t *testing.T) {
	boom := errors.New("boom")
	stubProbe(t, 0, boom)
	if _, err := Probe(context.Background(), "a.ogg"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}

	stubProbe(t, 0, nil)
	if _, err := Probe(context.Background(), "a.ogg"); !errors.Is(err, ErrNoDuration) {
		t.Errorf("err = %v, want ErrNoDuration", err)
	}
}

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time              { return f.t }
func (f *fakeNow) advance(d float64)           { f.t = f.t.Add(time.Duration(d * float64(time.Second))) }

func newTestClock(d float64) (*WallClock, *fakeNow) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	w := NewWallClock(d)
	w.now = clock.now
	return w, clock
}

func TestWallClockAdvances(t *testing.T) {
	w, clock := newTestClock(10)
	if !w.Paused() {
		t.Fatal("new clock should be paused")
	}
	w.SetCurrentTime(2)
	if err := w.Play(); err != nil {
		t.Fatal(err)
	}
	clock.advance(1.5)
	if got := w.CurrentTime(); got != 3.5 {
		t.Errorf("CurrentTime = %v, want 3.5", got)
	}

	w.Pause()
	clock.advance(5)
	if got := w.CurrentTime(); got != 3.5 {
		t.Errorf("paused clock moved to %v", got)
	}
}

func TestWallClockEnds(t *testing.T) {
	w, clock := newTestClock(4)
	_ = w.Play()
	clock.advance(10)
	if got := w.CurrentTime(); got != 4 {
		t.Errorf("CurrentTime = %v, want clamp to 4", got)
	}
	if !w.Paused() {
		t.Error("clock past the end should report paused")
	}

	w.Pause()
	_ = w.Play()
	if got := w.CurrentTime(); got != 0 {
		t.Errorf("replay from end starts at %v", got)
	}
}

func TestWallClockSeekWhilePlaying(t *testing.T) {
	w, clock := newTestClock(10)
	_ = w.Play()
	clock.advance(3)
	w.SetCurrentTime(8)
	clock.advance(1)
	if got := w.CurrentTime(); got != 9 {
		t.Errorf("CurrentTime = %v, want 9", got)
	}
	w.SetCurrentTime(-5)
	if got := w.CurrentTime(); got != 0 {
		t.Errorf("negative seek = %v", got)
	}
}
