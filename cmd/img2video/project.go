package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/img2video/internal/audio"
	"github.com/ivlev/img2video/internal/config"
	"github.com/ivlev/img2video/internal/director"
	"github.com/ivlev/img2video/internal/source"
	"github.com/ivlev/img2video/internal/system"
	"github.com/ivlev/img2video/internal/timeline"
)

// projectFlags are shared by every command that loads a timeline.
type projectFlags struct {
	audio   string
	noAudio bool
}

// resolveInput picks the positional argument; without one the latest manifest
// in the input directory is used.
func resolveInput(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	latest, err := director.FindLatestManifest(cfg.InputDir)
	if err != nil {
		return "", fmt.Errorf("%w: положите манифест в %s/ или укажите вход", err, cfg.InputDir)
	}
	log.Info().Str("manifest", latest).Msg("выбран манифест")
	return latest, nil
}

func isManifest(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadTimeline builds a timeline from a manifest, a PDF, an image or a
// directory of images. Audio given on the command line replaces the
// manifest soundtrack.
func loadTimeline(ctx context.Context, cfg *config.Config, input string, pf projectFlags) (timeline.Timeline, error) {
	var (
		tl  timeline.Timeline
		err error
	)
	if isManifest(input) {
		tl, err = loadManifest(ctx, cfg, input)
	} else {
		tl, err = timelineFromInput(input, cfg.DPI, cfg.Timeline.DefaultDuration)
	}
	if err != nil {
		return tl, err
	}

	if pf.noAudio {
		return timeline.Apply(tl, timeline.SetAudioEdit{})
	}
	audioPath := pf.audio
	if _, ok := tl.Audio(); audioPath == "" && !ok {
		if latest, err := system.FindLatest(filepath.Join(cfg.InputDir, "audio"), system.AudioExts...); err == nil {
			audioPath = latest
			log.Info().Str("audio", audioPath).Msg("выбрано аудио")
		}
	}
	if audioPath == "" {
		return tl, nil
	}
	track, err := audio.Probe(ctx, audioPath)
	if err != nil {
		return tl, err
	}
	log.Info().Float64("duration", track.Duration).Msg("длительность установлена по аудио")
	return timeline.Apply(tl, timeline.SetAudioEdit{Track: &track})
}

func loadManifest(ctx context.Context, cfg *config.Config, path string) (timeline.Timeline, error) {
	m, err := director.ReadManifest(path)
	if err != nil {
		return timeline.New(), err
	}
	return director.Build(ctx, m, director.BuildOptions{
		BaseDir:         filepath.Dir(path),
		DPI:             cfg.DPI,
		DefaultDuration: cfg.Timeline.DefaultDuration,
		Probe:           audio.Probe,
	})
}

func timelineFromInput(path string, dpi int, duration float64) (timeline.Timeline, error) {
	images, err := source.Open(path, dpi)
	if err != nil {
		return timeline.New(), err
	}
	if len(images) == 0 {
		return timeline.New(), fmt.Errorf("в %s нет страниц или изображений", path)
	}
	tl := timeline.New()
	for _, img := range images {
		if tl, err = timeline.Apply(tl, timeline.AppendEdit{Clip: timeline.NewClip(img, duration)}); err != nil {
			return tl, err
		}
	}
	return tl, nil
}

// outputName builds output/<name>_<timestamp>.mp4 from the input, or from the
// soundtrack when the input is a directory.
func outputName(dir, input, audioPath string, now time.Time) string {
	nameSource := input
	if fi, err := os.Stat(input); err == nil && fi.IsDir() && audioPath != "" {
		nameSource = audioPath
	}

	baseName := filepath.Base(nameSource)
	ext := filepath.Ext(baseName)
	nameOnly := strings.TrimSuffix(baseName, ext)
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := now.Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
}

func audioPath(tl timeline.Timeline) string {
	if a, ok := tl.Audio(); ok {
		return a.Path
	}
	return ""
}
