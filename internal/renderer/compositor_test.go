package renderer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/filters"
	"github.com/ivlev/img2video/internal/source"
	"github.com/ivlev/img2video/internal/timeline"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pngImage(t *testing.T, name string, w, h int, c color.RGBA) source.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h, c)); err != nil {
		t.Fatal(err)
	}
	return source.NewBytesImage(name, buf.Bytes())
}

// fakeImage decodes to a solid color once gate is closed.
type fakeImage struct {
	key  string
	col  color.RGBA
	gate chan struct{}
	err  error
}

func (f *fakeImage) Key() string                           { return f.key }
func (f *fakeImage) Size() (int, int, error)               { return 8, 8, nil }
func (f *fakeImage) Bytes(context.Context) ([]byte, error) { return nil, errors.New("not used") }

func (f *fakeImage) Decode(ctx context.Context) (image.Image, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return solid(8, 8, f.col), nil
}

func newCompositor(t *testing.T, w, h int) *Compositor {
	t.Helper()
	pool, err := NewPool(4, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Release)
	c, err := New(Options{Width: w, Height: h, Logger: zerolog.Nop()}, pool)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func withClips(t *testing.T, clips ...timeline.Clip) timeline.Timeline {
	t.Helper()
	tl := timeline.New()
	for _, c := range clips {
		var err error
		if tl, err = tl.Append(c); err != nil {
			t.Fatal(err)
		}
	}
	return tl
}

func wait(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("render did not finish")
	}
	return Result{}
}

func pixel(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestEmptyTimelineClears(t *testing.T) {
	c := newCompositor(t, 16, 9)
	res := wait(t, c.Render(context.Background(), timeline.New(), 0))
	if !res.Empty || res.Err != nil {
		t.Fatalf("result = %+v", res)
	}
	if !c.Frame().Empty {
		t.Error("frame should be empty")
	}
	if p := pixel(c.Surface(), 8, 4); p != (color.RGBA{A: 255}) {
		t.Errorf("pixel = %v, want black", p)
	}
}

func TestCoverFillsFrame(t *testing.T) {
	c := newCompositor(t, 64, 36)
	tl := withClips(t, timeline.NewClip(pngImage(t, "wide", 100, 50, red), 5))

	res, err := c.RenderFrame(context.Background(), tl, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Presented() {
		t.Fatalf("not presented: %+v", res)
	}
	surface := c.Surface()
	for _, pt := range []image.Point{{32, 18}, {2, 2}, {61, 33}, {2, 33}} {
		if p := pixel(surface, pt.X, pt.Y); p != red {
			t.Errorf("pixel %v = %v, want red", pt, p)
		}
	}
	clip, _ := tl.Clip(0)
	if c.Frame().ClipID != clip.ID {
		t.Error("frame metadata does not name the clip")
	}
}

func TestCoverScale(t *testing.T) {
	tests := []struct {
		w, h, iw, ih int
		want         float64
	}{
		{1280, 720, 1280, 720, 1},
		{1280, 720, 640, 360, 2},
		{1280, 720, 720, 720, 1280.0 / 720},
		{1280, 720, 2560, 720, 1},
		{1280, 720, 0, 10, 1},
	}
	for _, tt := range tests {
		if got := CoverScale(tt.w, tt.h, tt.iw, tt.ih); got != tt.want {
			t.Errorf("CoverScale(%d,%d,%d,%d) = %v, want %v", tt.w, tt.h, tt.iw, tt.ih, got, tt.want)
		}
	}
}

func TestFilterGrades(t *testing.T) {
	c := newCompositor(t, 32, 18)
	tl := withClips(t, timeline.NewClip(pngImage(t, "r", 32, 18, red), 5))
	tl, _ = tl.SetFilter(0, filters.BlackAndWhite1)

	if _, err := c.RenderFrame(context.Background(), tl, 0); err != nil {
		t.Fatal(err)
	}
	p := pixel(c.Surface(), 16, 9)
	if p.R != p.G || p.G != p.B {
		t.Errorf("pixel %v is not gray", p)
	}
}

func TestFlashPeaksWhite(t *testing.T) {
	c := newCompositor(t, 32, 18)
	tl := withClips(t, timeline.NewClip(pngImage(t, "r", 32, 18, red), 2))
	tl, _ = tl.SetEffect(0, effects.Flash)

	if _, err := c.RenderFrame(context.Background(), tl, 1); err != nil {
		t.Fatal(err)
	}
	if p := pixel(c.Surface(), 16, 9); p != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("pixel = %v, want white", p)
	}
}

func TestRepeatedRequestsSkipped(t *testing.T) {
	c := newCompositor(t, 16, 9)
	tl := withClips(t, timeline.NewClip(pngImage(t, "r", 16, 9, red), 5))
	ctx := context.Background()

	if res := wait(t, c.Render(ctx, tl, 1)); res.Skipped {
		t.Fatal("first request skipped")
	}
	if res := wait(t, c.Render(ctx, tl, 1.005)); !res.Skipped {
		t.Error("request within one frame interval was drawn")
	}
	if res := wait(t, c.Render(ctx, tl, 1.5)); res.Skipped {
		t.Error("request a frame later was skipped")
	}

	edited, _ := tl.SetFilter(0, filters.Retro)
	if res := wait(t, c.Render(ctx, edited, 1.5)); res.Skipped {
		t.Error("edit should force a redraw")
	}
	c.Invalidate()
	if res := wait(t, c.Render(ctx, edited, 1.5)); res.Skipped {
		t.Error("Invalidate should force a redraw")
	}
}

func TestStaleDecodeDiscarded(t *testing.T) {
	c := newCompositor(t, 16, 9)
	slow := &fakeImage{key: "slow", col: red, gate: make(chan struct{})}
	fast := &fakeImage{key: "fast", col: blue}
	tl := withClips(t, timeline.NewClip(slow, 5), timeline.NewClip(fast, 5))
	ctx := context.Background()

	first := c.Render(ctx, tl, 1)
	second := wait(t, c.Render(ctx, tl, 6))
	if !second.Presented() {
		t.Fatalf("second request not presented: %+v", second)
	}

	close(slow.gate)
	res := wait(t, first)
	if !res.Stale {
		t.Errorf("older request presented: %+v", res)
	}

	fastClip, _ := tl.Clip(1)
	if c.Frame().ClipID != fastClip.ID {
		t.Error("visible frame is not the latest request")
	}
	if p := pixel(c.Surface(), 8, 4); p != blue {
		t.Errorf("pixel = %v, want blue", p)
	}
}

func TestDecodeErrorClearsFrame(t *testing.T) {
	c := newCompositor(t, 16, 9)
	boom := errors.New("boom")
	tl := withClips(t,
		timeline.NewClip(pngImage(t, "ok", 16, 9, red), 5),
		timeline.NewClip(&fakeImage{key: "bad", err: boom}, 5),
	)
	ctx := context.Background()

	if _, err := c.RenderFrame(ctx, tl, 1); err != nil {
		t.Fatal(err)
	}
	res, err := c.RenderFrame(ctx, tl, 6)
	var de *DecodeError
	if !errors.As(err, &de) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want DecodeError wrapping boom", err)
	}
	bad, _ := tl.Clip(1)
	if de.ClipID != bad.ID {
		t.Error("DecodeError names the wrong clip")
	}
	if !res.Presented() || !c.Frame().Empty {
		t.Error("failed decode should present a cleared frame")
	}
	if p := pixel(c.Surface(), 8, 4); p != (color.RGBA{A: 255}) {
		t.Errorf("pixel = %v, want black", p)
	}

	// the loop continues
	if _, err := c.RenderFrame(ctx, tl, 2); err != nil {
		t.Fatal(err)
	}
	if p := pixel(c.Surface(), 8, 4); p != red {
		t.Errorf("pixel = %v, want red", p)
	}
}

func TestPastLastClipIsEmpty(t *testing.T) {
	c := newCompositor(t, 16, 9)
	tl := withClips(t, timeline.NewClip(pngImage(t, "r", 16, 9, red), 5))
	tl = tl.SetAudio(&timeline.AudioTrack{Path: "a.mp3", Duration: 30})

	if _, err := c.RenderFrame(context.Background(), tl, 1); err != nil {
		t.Fatal(err)
	}
	res, err := c.RenderFrame(context.Background(), tl, 20)
	if err != nil || !res.Empty {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if p := pixel(c.Surface(), 8, 4); p != (color.RGBA{A: 255}) {
		t.Errorf("pixel = %v, want black", p)
	}
}

func TestShiftChannels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	copy(img.Pix, []uint8{
		10, 0, 100, 255,
		20, 0, 200, 255,
		30, 0, 250, 255,
	})
	shiftChannels(img, 1)
	want := []uint8{
		20, 0, 100, 255,
		30, 0, 100, 255,
		30, 0, 200, 255,
	}
	if !bytes.Equal(img.Pix, want) {
		t.Errorf("pix = %v, want %v", img.Pix, want)
	}
}

func TestNewValidates(t *testing.T) {
	pool, err := NewPool(1, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release()
	if _, err := New(Options{Width: 0, Height: 10}, pool); err == nil {
		t.Error("zero width accepted")
	}
	if _, err := New(Options{Width: 10, Height: 10}, nil); err == nil {
		t.Error("nil pool accepted")
	}
}
