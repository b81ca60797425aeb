package director

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/filters"
	"github.com/ivlev/img2video/internal/source"
	"github.com/ivlev/img2video/internal/timeline"
)

// ProbeFunc resolves a soundtrack path into a track with its duration.
type ProbeFunc func(ctx context.Context, path string) (timeline.AudioTrack, error)

type BuildOptions struct {
	// BaseDir resolves relative inputs, usually the manifest directory.
	BaseDir         string
	DPI             int
	DefaultDuration float64
	// Probe is required when the manifest names audio.
	Probe ProbeFunc
}

// Build turns a manifest into a timeline by replaying it as edits.
func Build(ctx context.Context, m *Manifest, opts BuildOptions) (timeline.Timeline, error) {
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = 5
	}
	tl := timeline.New()
	for i, spec := range m.Clips {
		images, err := resolveInput(spec, opts)
		if err != nil {
			return tl, fmt.Errorf("clip %d: %w", i+1, err)
		}
		edits, err := specEdits(spec, opts.DefaultDuration)
		if err != nil {
			return tl, fmt.Errorf("clip %d: %w", i+1, err)
		}
		for j, img := range images {
			tl, err = buildClip(tl, img, spec, edits, j == 0)
			if err != nil {
				return tl, fmt.Errorf("clip %d: %w", i+1, err)
			}
		}
	}

	if m.Audio != "" {
		if opts.Probe == nil {
			return tl, fmt.Errorf("audio %s: no probe configured", m.Audio)
		}
		track, err := opts.Probe(ctx, resolvePath(m.Audio, opts.BaseDir))
		if err != nil {
			return tl, err
		}
		return timeline.Apply(tl, timeline.SetAudioEdit{Track: &track})
	}
	return tl, nil
}

// clipEdits are the per-clip edits of a spec, with Index filled in per clip.
type clipEdits struct {
	duration float64
	effect   effects.Kind
	params   []timeline.SetParamEdit
	filter   filters.Kind
}

func specEdits(spec ClipSpec, defaultDuration float64) (clipEdits, error) {
	e := clipEdits{duration: spec.Duration, effect: effects.None, filter: filters.None}
	if e.duration <= 0 {
		e.duration = defaultDuration
	}
	if spec.Effect != "" {
		k, ok := effects.ParseKind(spec.Effect)
		if !ok {
			return e, fmt.Errorf("unknown effect %q", spec.Effect)
		}
		e.effect = k
	}
	if spec.Filter != "" {
		k, ok := filters.Parse(spec.Filter)
		if !ok {
			return e, fmt.Errorf("unknown filter %q", spec.Filter)
		}
		e.filter = k
	}

	names := make([]string, 0, len(spec.Params))
	for name := range spec.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := paramValue(spec.Params[name])
		if err != nil {
			return e, fmt.Errorf("param %s: %w", name, err)
		}
		e.params = append(e.params, timeline.SetParamEdit{Name: name, Value: v})
	}
	return e, nil
}

func buildClip(tl timeline.Timeline, img source.Image, spec ClipSpec, e clipEdits, first bool) (timeline.Timeline, error) {
	tl, err := timeline.Apply(tl, timeline.AppendEdit{Clip: timeline.NewClip(img, e.duration)})
	if err != nil {
		return tl, err
	}
	idx := tl.Len() - 1

	edits := []timeline.Edit{
		timeline.SetEffectEdit{Index: idx, Kind: e.effect},
		timeline.SetFilterEdit{Index: idx, Kind: e.filter},
	}
	for _, p := range e.params {
		p.Index = idx
		edits = append(edits, p)
	}
	if first && spec.Start != nil {
		edits = append(edits, timeline.SetStartTimeEdit{Index: idx, StartTime: *spec.Start})
	}
	for _, edit := range edits {
		if tl, err = timeline.Apply(tl, edit); err != nil {
			return tl, err
		}
	}
	return tl, nil
}

func resolveInput(spec ClipSpec, opts BuildOptions) ([]source.Image, error) {
	if spec.Input == "" {
		return nil, fmt.Errorf("input is empty")
	}
	path := resolvePath(spec.Input, opts.BaseDir)
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		if spec.Page != 0 {
			return nil, fmt.Errorf("page is only valid for PDF inputs")
		}
		return source.Open(path, opts.DPI)
	}

	pages, err := source.OpenPDF(path, opts.DPI)
	if err != nil {
		return nil, err
	}
	if spec.Page == 0 {
		return pages, nil
	}
	if spec.Page < 1 || spec.Page > len(pages) {
		return nil, fmt.Errorf("page %d out of range (1..%d)", spec.Page, len(pages))
	}
	return pages[spec.Page-1 : spec.Page], nil
}

func resolvePath(p, base string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

func paramValue(v interface{}) (effects.Value, error) {
	switch x := v.(type) {
	case int:
		return effects.Number(float64(x)), nil
	case int64:
		return effects.Number(float64(x)), nil
	case float64:
		return effects.Number(x), nil
	case string:
		return effects.Choice(x), nil
	}
	return effects.Value{}, fmt.Errorf("unsupported value %v (%T)", v, v)
}

// FromTimeline describes tl as a manifest. Inputs are written relative to
// baseDir when possible. Only file and PDF images can be referenced.
func FromTimeline(tl timeline.Timeline, baseDir string) (*Manifest, error) {
	m := &Manifest{Version: ManifestVersion}
	if a, ok := tl.Audio(); ok {
		m.Audio = relPath(a.Path, baseDir)
	}

	packed := 0.0
	for i, clip := range tl.Clips() {
		spec := ClipSpec{Duration: clip.Duration}
		switch img := clip.Image.(type) {
		case *source.FileImage:
			spec.Input = relPath(img.Path(), baseDir)
		case *source.PDFPage:
			spec.Input = relPath(img.Path(), baseDir)
			spec.Page = img.Index() + 1
		default:
			return nil, fmt.Errorf("clip %d: image %s cannot be referenced from a manifest", i+1, clip.Image.Key())
		}
		if clip.StartTime != packed {
			start := clip.StartTime
			spec.Start = &start
		}
		packed = clip.End()

		if clip.Effect != nil && clip.Effect.Kind() != effects.None {
			spec.Effect = string(clip.Effect.Kind())
			spec.Params = make(map[string]interface{})
			for name, v := range clip.Effect.Values() {
				if s, ok := v.Choice(); ok {
					spec.Params[name] = s
				} else if f, ok := v.Float(); ok {
					spec.Params[name] = f
				}
			}
		}
		if clip.Filter != filters.None {
			spec.Filter = string(clip.Filter)
		}
		m.Clips = append(m.Clips, spec)
	}
	return m, nil
}

func relPath(p, base string) string {
	if base == "" {
		return p
	}
	if rel, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}
