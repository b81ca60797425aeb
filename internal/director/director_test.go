package director

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivlev/img2video/internal/analyzer"
	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/filters"
	"github.com/ivlev/img2video/internal/timeline"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func stubProbe(d float64) ProbeFunc {
	return func(_ context.Context, path string) (timeline.AudioTrack, error) {
		return timeline.AudioTrack{Path: path, Duration: d}, nil
	}
}

func TestDirector(t *testing.T) {
	d := NewDirector()
	m, err := d.GenerateManifest([]string{"a.png", "b.png", "c.png"}, "song.mp3", 12)
	if err != nil {
		t.Fatalf("GenerateManifest failed: %v", err)
	}
	if m.Version != ManifestVersion || m.Audio != "song.mp3" {
		t.Errorf("manifest header = %q %q", m.Version, m.Audio)
	}
	if len(m.Clips) != 3 {
		t.Fatalf("Expected 3 clips, got %d", len(m.Clips))
	}
	for i, c := range m.Clips {
		if c.Duration != 4 {
			t.Errorf("clip %d duration = %v, want 4", i, c.Duration)
		}
		if c.Effect != string(effects.SlowZoom) {
			t.Errorf("clip %d effect = %q", i, c.Effect)
		}
	}
	if m.Clips[1].Params["startScale"] != 1.2 || m.Clips[1].Params["endScale"] != 1.0 {
		t.Errorf("second clip should zoom out: %v", m.Clips[1].Params)
	}

	if _, err := d.GenerateManifest(nil, "", 0); err == nil {
		t.Error("empty inputs accepted")
	}
}

func TestCalculateDwellTime(t *testing.T) {
	d := NewDirector()
	tests := []struct {
		total float64
		count int
		want  float64
	}{
		{12, 3, 4},
		{100, 2, 8},
		{1, 5, 2},
		{0, 5, 5},
	}
	for _, tt := range tests {
		if got := d.calculateDwellTime(tt.total, tt.count); got != tt.want {
			t.Errorf("calculateDwellTime(%v, %d) = %v, want %v", tt.total, tt.count, got, tt.want)
		}
	}
}

// scriptedDetector returns its results in call order.
type scriptedDetector struct {
	results [][]analyzer.Block
	calls   int
}

func (s *scriptedDetector) Detect(img image.Image) ([]analyzer.Block, error) {
	s.calls++
	if s.calls > len(s.results) {
		return nil, nil
	}
	blocks := s.results[s.calls-1]
	for i := range blocks {
		if blocks[i].Rect.Empty() {
			blocks[i].Rect = img.Bounds()
		}
	}
	return blocks, nil
}

func TestGenerateDetailedManifest(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png")
	b := writePNG(t, dir, "b.png")

	d := NewDirector()
	// a.png полностью занят деталями, b.png пустой
	det := &scriptedDetector{results: [][]analyzer.Block{{{}}, nil}}
	d.Detector = det

	m, err := d.GenerateDetailedManifest(context.Background(), []string{dir}, "song.mp3", 12)
	if err != nil {
		t.Fatal(err)
	}
	if det.calls != 2 || len(m.Clips) != 2 {
		t.Fatalf("calls = %d, clips = %d", det.calls, len(m.Clips))
	}
	if m.Clips[0].Input != a || m.Clips[1].Input != b {
		t.Errorf("inputs = %q, %q", m.Clips[0].Input, m.Clips[1].Input)
	}
	if m.Clips[0].Duration != 8 || m.Clips[1].Duration != 4 {
		t.Errorf("durations = %v, %v, want 8, 4", m.Clips[0].Duration, m.Clips[1].Duration)
	}
	// заполненный кадр некуда приближать
	if m.Clips[0].Params["endScale"] != 1.0 {
		t.Errorf("clip 1 params = %v", m.Clips[0].Params)
	}
	if m.Clips[1].Params["startScale"] != 1.2 || m.Clips[1].Params["endScale"] != 1.0 {
		t.Errorf("clip 2 params = %v", m.Clips[1].Params)
	}

	tl, err := Build(context.Background(), &Manifest{Clips: m.Clips}, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if tl.Duration() != 12 {
		t.Errorf("built duration = %v, want 12", tl.Duration())
	}
}

func TestGenerateDetailedManifestWithoutDetector(t *testing.T) {
	d := NewDirector()
	m, err := d.GenerateDetailedManifest(context.Background(), []string{"a.png", "b.png"}, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Clips) != 2 || m.Clips[0].Duration != 5 {
		t.Errorf("clips = %+v", m.Clips)
	}

	d.Detector = &scriptedDetector{}
	if _, err := d.GenerateDetailedManifest(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, "", 0); err == nil {
		t.Error("missing input accepted")
	}
}

func TestCalculateZoom(t *testing.T) {
	d := NewDirector()
	frame := image.Rect(0, 0, 400, 300)
	tests := []struct {
		name  string
		block image.Rectangle
		want  float64
	}{
		{"small block clamps to max", image.Rect(0, 0, 40, 30), 3},
		{"width bound", image.Rect(0, 0, 200, 100), 1.8},
		{"empty block", image.Rectangle{}, 1},
		{"larger than frame", image.Rect(0, 0, 800, 600), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.calculateZoom(tt.block, frame); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("calculateZoom = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManifestWriteRead(t *testing.T) {
	start := 2.5
	m := &Manifest{
		Version: ManifestVersion,
		Audio:   "song.mp3",
		Clips: []ClipSpec{
			{Input: "a.png", Duration: 3, Effect: "flash", Params: map[string]interface{}{"intensity": 0.5}},
			{Input: "doc.pdf", Page: 2, Start: &start, Filter: "retro"},
		},
	}
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := WriteManifest(m, path); err != nil {
		t.Fatal(err)
	}
	got, err := ReadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Clips) != 2 || got.Audio != "song.mp3" {
		t.Fatalf("read back %+v", got)
	}
	if got.Clips[0].Params["intensity"] != 0.5 {
		t.Errorf("params = %v", got.Clips[0].Params)
	}
	if got.Clips[1].Start == nil || *got.Clips[1].Start != 2.5 || got.Clips[1].Page != 2 {
		t.Errorf("clip 2 = %+v", got.Clips[1])
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png")
	writePNG(t, dir, "b.png")
	start := 1.0
	m := &Manifest{
		Audio: "song.mp3",
		Clips: []ClipSpec{
			{Input: "a.png", Duration: 3, Effect: "spin", Params: map[string]interface{}{"speed": 2, "direction": "counterclockwise"}},
			{Input: "b.png", Filter: "golden", Start: &start},
		},
	}
	tl, err := Build(context.Background(), m, BuildOptions{BaseDir: dir, DefaultDuration: 4, Probe: stubProbe(30)})
	if err != nil {
		t.Fatal(err)
	}
	if tl.Len() != 2 {
		t.Fatalf("clips = %d", tl.Len())
	}
	a, _ := tl.Clip(0)
	b, _ := tl.Clip(1)
	if a.Effect.Kind() != effects.Spin {
		t.Errorf("effect = %s", a.Effect.Kind())
	}
	vals := a.Effect.Values()
	if vals["speed"].String() != "2" || vals["direction"].String() != "counterclockwise" {
		t.Errorf("params = %v", vals)
	}
	if b.Duration != 4 || b.Filter != filters.Golden || b.StartTime != 1 {
		t.Errorf("clip b = %+v", b)
	}
	if tr, ok := tl.Audio(); !ok || tr.Duration != 30 || tr.Path != filepath.Join(dir, "song.mp3") {
		t.Errorf("audio = %+v", tr)
	}
}

func TestBuildDirectoryInput(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "shots")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, sub, "1.png")
	writePNG(t, sub, "2.png")
	start := 3.0
	m := &Manifest{Clips: []ClipSpec{{Input: "shots", Duration: 2, Start: &start}}}

	tl, err := Build(context.Background(), m, BuildOptions{BaseDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if tl.Len() != 2 {
		t.Fatalf("clips = %d", tl.Len())
	}
	first, _ := tl.Clip(0)
	second, _ := tl.Clip(1)
	if first.StartTime != 3 || second.StartTime != 5 {
		t.Errorf("starts = %v, %v, want 3, 5", first.StartTime, second.StartTime)
	}
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png")
	tests := []struct {
		name string
		m    Manifest
	}{
		{"unknown effect", Manifest{Clips: []ClipSpec{{Input: "a.png", Effect: "wobble"}}}},
		{"unknown filter", Manifest{Clips: []ClipSpec{{Input: "a.png", Filter: "sepia-ish"}}}},
		{"bad param", Manifest{Clips: []ClipSpec{{Input: "a.png", Effect: "flash", Params: map[string]interface{}{"intensity": true}}}}},
		{"missing file", Manifest{Clips: []ClipSpec{{Input: "nope.png"}}}},
		{"page on image", Manifest{Clips: []ClipSpec{{Input: "a.png", Page: 2}}}},
		{"empty input", Manifest{Clips: []ClipSpec{{}}}},
		{"audio without probe", Manifest{Audio: "a.mp3", Clips: []ClipSpec{{Input: "a.png"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.m
			if _, err := Build(context.Background(), &m, BuildOptions{BaseDir: dir}); err == nil {
				t.Error("expected error")
			}
		})
	}

	boom := errors.New("boom")
	m := &Manifest{Audio: "a.mp3", Clips: []ClipSpec{{Input: "a.png"}}}
	probe := func(context.Context, string) (timeline.AudioTrack, error) { return timeline.AudioTrack{}, boom }
	if _, err := Build(context.Background(), m, BuildOptions{BaseDir: dir, Probe: probe}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want probe error", err)
	}
}

func TestFromTimelineRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png")
	writePNG(t, dir, "b.png")
	start := 1.5
	m := &Manifest{
		Audio: "song.mp3",
		Clips: []ClipSpec{
			{Input: "a.png", Duration: 3, Effect: "random"},
			{Input: "b.png", Duration: 2, Filter: "muted", Start: &start},
		},
	}
	opts := BuildOptions{BaseDir: dir, Probe: stubProbe(10)}
	tl, err := Build(context.Background(), m, opts)
	if err != nil {
		t.Fatal(err)
	}

	out, err := FromTimeline(tl, dir)
	if err != nil {
		t.Fatal(err)
	}
	if out.Audio != "song.mp3" || out.Clips[0].Input != "a.png" {
		t.Errorf("paths not relative: %+v", out)
	}
	if out.Clips[0].Start != nil {
		t.Error("packed clip should not carry a start")
	}
	if out.Clips[1].Start == nil || *out.Clips[1].Start != 1.5 {
		t.Error("explicit start lost")
	}

	again, err := Build(context.Background(), out, opts)
	if err != nil {
		t.Fatal(err)
	}
	a1, _ := tl.Clip(0)
	a2, _ := again.Clip(0)
	if a1.Effect.Values()["pick"] != a2.Effect.Values()["pick"] {
		t.Errorf("random pick changed: %v -> %v", a1.Effect.Values(), a2.Effect.Values())
	}
	b2, _ := again.Clip(1)
	if b2.Filter != filters.Muted || b2.StartTime != 1.5 || b2.Duration != 2 {
		t.Errorf("clip b = %+v", b2)
	}
}

func TestFindLatestManifest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "project_old.yaml")
	fresh := GenerateManifestPath(dir)
	for i, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("version: \"1.0\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		mod := time.Now().Add(time.Duration(i-2) * time.Hour)
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
	got, err := FindLatestManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != fresh {
		t.Errorf("FindLatestManifest = %s, want %s", got, fresh)
	}
}
