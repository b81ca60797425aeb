// Package audio loads soundtrack metadata and provides audio clocks for
// playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"

	"github.com/ivlev/img2video/internal/system"
	"github.com/ivlev/img2video/internal/timeline"
)

// ErrNoDuration is returned when a track reports no usable length.
var ErrNoDuration = errors.New("audio: track has no duration")

// ffprobe is swapped in tests.
var ffprobe = system.GetAudioDuration

// Probe returns the soundtrack at path with its decoded duration. MP3 files
// are measured with the mp3 decoder; everything else, and MP3 files the
// decoder rejects, goes through ffprobe.
func Probe(ctx context.Context, path string) (timeline.AudioTrack, error) {
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if d, err := mp3Duration(path); err == nil {
			return track(path, d)
		}
	}
	d, err := ffprobe(ctx, path)
	if err != nil {
		return timeline.AudioTrack{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return track(path, d)
}

func track(path string, d float64) (timeline.AudioTrack, error) {
	if d <= 0 || d != d {
		return timeline.AudioTrack{}, fmt.Errorf("%w: %s", ErrNoDuration, path)
	}
	return timeline.AudioTrack{Path: path, Duration: d}, nil
}

// mp3Duration derives the length from the decoded stream size: the decoder
// always outputs 16-bit stereo, 4 bytes per sample frame.
func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("mp3 decode failed: %w", err)
	}
	n := decoder.Length()
	if n <= 0 || decoder.SampleRate() <= 0 {
		return 0, ErrNoDuration
	}
	return float64(n) / float64(decoder.SampleRate()*4), nil
}
