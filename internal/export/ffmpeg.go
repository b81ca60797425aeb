package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/img2video/internal/renderer"
	"github.com/ivlev/img2video/internal/system"
)

// Adapter encodes a plan. Errors are returned as they are; nothing retries.
type Adapter interface {
	Export(ctx context.Context, plan Plan) ([]byte, error)
}

// AdapterError carries an encoder failure and the stage it happened in.
type AdapterError struct {
	Stage string
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Stage, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Runner executes ffmpeg with args, feeding stdin when it is not nil.
type Runner func(ctx context.Context, stdin []byte, args ...string) ([]byte, error)

func runFFmpeg(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("ffmpeg: %w, output: %s", err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// FFmpegAdapter encodes every item into its own segment in parallel, then
// joins them with the concat demuxer and maps the soundtrack.
type FFmpegAdapter struct {
	Workers int
	TempDir string
	Log     zerolog.Logger
	Run     Runner
}

func NewFFmpegAdapter(workers int, log zerolog.Logger) *FFmpegAdapter {
	return &FFmpegAdapter{Workers: workers, Log: log, Run: runFFmpeg}
}

func (a *FFmpegAdapter) Export(ctx context.Context, plan Plan) ([]byte, error) {
	if len(plan.Items) == 0 {
		return nil, &AdapterError{Stage: "plan", Err: fmt.Errorf("no items")}
	}
	run := a.Run
	if run == nil {
		run = runFFmpeg
	}

	tmpDir, err := os.MkdirTemp(a.TempDir, "img2video_")
	if err != nil {
		return nil, &AdapterError{Stage: "setup", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	segments := make([]string, len(plan.Items))
	g, gctx := errgroup.WithContext(ctx)
	if a.Workers > 0 {
		g.SetLimit(a.Workers)
	}
	for i, item := range plan.Items {
		i, item := i, item
		segments[i] = filepath.Join(tmpDir, fmt.Sprintf("seg_%s.mp4", item.Name))
		g.Go(func() error {
			if err := a.encodeSegment(gctx, run, item, plan.Concat, segments[i]); err != nil {
				return &AdapterError{Stage: "segment " + item.Name, Err: err}
			}
			a.Log.Debug().Str("segment", item.Name).Float64("duration", item.Duration).Msg("segment encoded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	final := filepath.Join(tmpDir, "output.mp4")
	if err := a.concatenate(ctx, run, segments, plan.AudioPath, final, tmpDir); err != nil {
		return nil, &AdapterError{Stage: "concat", Err: err}
	}
	data, err := os.ReadFile(final)
	if err != nil {
		return nil, &AdapterError{Stage: "read", Err: err}
	}
	a.Log.Info().Int("segments", len(segments)).Int("bytes", len(data)).Msg("export finished")
	return data, nil
}

func (a *FFmpegAdapter) encodeSegment(ctx context.Context, run Runner, item Item, spec ConcatSpec, path string) error {
	img, _, err := image.Decode(bytes.NewReader(item.ImageBytes))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	frame := coverFrame(img, item.Width, item.Height)
	_, err = run(ctx, frame.Pix, segmentArgs(item, spec, path)...)
	return err
}

// coverFrame scales img to cover a w x h frame, centered, as raw RGBA.
func coverFrame(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := img.Bounds()
	s := renderer.CoverScale(w, h, b.Dx(), b.Dy())
	tx := float64(w)/2 - (float64(b.Min.X)+float64(b.Dx())/2)*s
	ty := float64(h)/2 - (float64(b.Min.Y)+float64(b.Dy())/2)*s
	xdraw.CatmullRom.Transform(dst, f64.Aff3{s, 0, tx, 0, s, ty}, img, b, xdraw.Src, nil)
	return dst
}

func segmentArgs(item Item, spec ConcatSpec, path string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", item.Width, item.Height),
		"-i", "-",
		"-vf", segmentFilter(item, spec.FPS),
		"-t", fmt.Sprintf("%f", item.Duration),
		"-r", fmt.Sprintf("%d", spec.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", spec.Encoder,
	}
	args = append(args, system.QualityArgs(spec.Encoder, spec.Quality)...)
	return append(args, path)
}

// segmentFilter chains motion, grade and the fades.
func segmentFilter(item Item, fps int) string {
	parts := []string{ZoomPanFilter(item.Motion, item.Duration, fps, item.Width, item.Height)}
	if item.Filter != "" {
		parts = append(parts, item.Filter)
	}
	if item.FadeIn > 0 {
		parts = append(parts, fmt.Sprintf("fade=t=in:st=0:d=%f", item.FadeIn))
	}
	if item.FadeOut > 0 {
		parts = append(parts, fmt.Sprintf("fade=t=out:st=%f:d=%f", item.Duration-item.FadeOut, item.FadeOut))
	}
	parts = append(parts, "format=yuv420p")
	return strings.Join(parts, ",")
}

func (a *FFmpegAdapter) concatenate(ctx context.Context, run Runner, segments []string, audioPath, final, tmpDir string) error {
	var list strings.Builder
	for _, p := range segments {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(&list, "file '%s'\n", absPath)
	}
	listPath := filepath.Join(tmpDir, "inputs.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return err
	}
	_, err := run(ctx, nil, concatArgs(listPath, audioPath, final)...)
	return err
}

func concatArgs(listPath, audioPath, final string) []string {
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath}
	if audioPath == "" {
		return append(args, "-c", "copy", final)
	}
	args = append(args, "-i", audioPath,
		"-map", "0:v", "-map", "1:a",
		"-c:v", "copy", "-c:a", "aac",
		"-shortest")
	return append(args, final)
}
