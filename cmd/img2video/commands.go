package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/img2video/internal/analyzer"
	"github.com/ivlev/img2video/internal/audio"
	"github.com/ivlev/img2video/internal/config"
	"github.com/ivlev/img2video/internal/director"
	"github.com/ivlev/img2video/internal/effects"
	"github.com/ivlev/img2video/internal/export"
	"github.com/ivlev/img2video/internal/filters"
	"github.com/ivlev/img2video/internal/logging"
	"github.com/ivlev/img2video/internal/playback"
	"github.com/ivlev/img2video/internal/renderer"
	"github.com/ivlev/img2video/internal/source"
	"github.com/ivlev/img2video/internal/system"
	"github.com/ivlev/img2video/internal/timeline"
)

var initFlags struct {
	output   string
	audio    string
	duration float64
	detect   string
}

var initCmd = &cobra.Command{
	Use:   "init [inputs...]",
	Short: "Draft a manifest over images, directories or PDFs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		inputs := make([]string, len(args))
		for i, a := range args {
			abs, err := filepath.Abs(a)
			if err != nil {
				return err
			}
			inputs[i] = abs
		}

		total := initFlags.duration
		var audioPath string
		if initFlags.audio != "" {
			abs, err := filepath.Abs(initFlags.audio)
			if err != nil {
				return err
			}
			track, err := audio.Probe(cmd.Context(), abs)
			if err != nil {
				return err
			}
			audioPath = track.Path
			if total <= 0 {
				total = track.Duration
			}
		}

		det, err := analyzer.NewDetector(initFlags.detect)
		if err != nil {
			return err
		}
		d := director.NewDirector()
		d.Detector = det
		d.DPI = cfg.DPI

		m, err := d.GenerateDetailedManifest(cmd.Context(), inputs, audioPath, total)
		if err != nil {
			return err
		}

		out := initFlags.output
		if out == "" {
			if err := os.MkdirAll(cfg.InputDir, 0755); err != nil {
				return err
			}
			out = director.GenerateManifestPath(cfg.InputDir)
		}
		if err := director.WriteManifest(m, out); err != nil {
			return err
		}
		log.Info().Str("manifest", out).Int("clips", len(m.Clips)).Msg("манифест создан")
		return nil
	},
}

var frameFlags struct {
	projectFlags
	at     float64
	output string
	width  int
	height int
}

var frameCmd = &cobra.Command{
	Use:   "frame [manifest|pdf|image|dir]",
	Short: "Render a single preview frame to PNG",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		input, err := resolveInput(cfg, args)
		if err != nil {
			return err
		}
		tl, err := loadTimeline(ctx, cfg, input, frameFlags.projectFlags)
		if err != nil {
			return err
		}

		preview := cfg.Preview
		if frameFlags.width > 0 {
			preview.Width = frameFlags.width
		}
		if frameFlags.height > 0 {
			preview.Height = frameFlags.height
		}
		comp, pool, err := newCompositor(preview, -1)
		if err != nil {
			return err
		}
		defer pool.Release()

		res, err := comp.RenderFrame(ctx, tl, frameFlags.at)
		if err != nil {
			return err
		}
		if !res.Presented() {
			return fmt.Errorf("кадр %.2fs не отрисован", frameFlags.at)
		}
		if err := writePNG(frameFlags.output, comp); err != nil {
			return err
		}
		log.Info().
			Float64("t", res.T).
			Bool("empty", res.Empty).
			Str("output", frameFlags.output).
			Msg("кадр сохранён")
		return nil
	},
}

var previewFlags struct {
	projectFlags
	from  float64
	out   string
	every int
}

var previewCmd = &cobra.Command{
	Use:   "preview [manifest|pdf|image|dir]",
	Short: "Play the timeline against a wall clock and dump frames",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		input, err := resolveInput(cfg, args)
		if err != nil {
			return err
		}
		tl, err := loadTimeline(ctx, cfg, input, previewFlags.projectFlags)
		if err != nil {
			return err
		}
		if previewFlags.out != "" {
			if err := os.MkdirAll(previewFlags.out, 0755); err != nil {
				return err
			}
		}
		return runPreview(ctx, cfg, tl)
	},
}

// runPreview drives the compositor from a playback clock until the clock
// reaches the end or ctx is cancelled.
func runPreview(ctx context.Context, cfg *config.Config, tl timeline.Timeline) error {
	comp, pool, err := newCompositor(cfg.Preview, 0)
	if err != nil {
		return err
	}
	defer pool.Release()

	// render forwarders must not outlive the preview
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := playback.NewTickerScheduler(cfg.Preview.FPS)
	defer sched.Stop()

	results := make(chan renderer.Result, cfg.Preview.FPS)
	clock := playback.New(playback.RendererFunc(func(t float64) {
		go forward(ctx, comp.Render(ctx, tl, t), results)
	}), sched, playback.Options{
		SeekStep: cfg.Playback.SeekStep,
		Logger:   logging.WithComponent("playback"),
	})
	clock.SetDuration(tl.Duration())
	clock.SetAudio(audio.NewWallClock(tl.Duration()))
	clock.Seek(previewFlags.from)
	if !clock.Play() {
		return fmt.Errorf("нечего проигрывать")
	}

	every := previewFlags.every
	if every <= 0 {
		every = 1
	}

	var presented, skipped, stale, busy, failed, written int
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	started := time.Now()

	for clock.State() == playback.Playing {
		select {
		case <-ctx.Done():
			clock.Pause()
		case <-poll.C:
		case res := <-results:
			switch {
			case errors.Is(res.Err, renderer.ErrBusy):
				busy++
			case res.Err != nil:
				failed++
				log.Warn().Err(res.Err).Float64("t", res.T).Msg("кадр не отрисован")
			case res.Skipped:
				skipped++
			case res.Stale:
				stale++
			default:
				presented++
				if previewFlags.out == "" || presented%every != 0 {
					continue
				}
				if comp.Frame().Seq != res.Seq {
					continue
				}
				path := filepath.Join(previewFlags.out, fmt.Sprintf("frame_%05d.png", written))
				if err := writePNG(path, comp); err != nil {
					return err
				}
				written++
			}
		}
	}

	log.Info().
		Int("presented", presented).
		Int("skipped", skipped).
		Int("stale", stale).
		Int("busy", busy).
		Int("failed", failed).
		Int("written", written).
		Dur("elapsed", time.Since(started)).
		Msg("просмотр завершён")
	return ctx.Err()
}

// forward passes the single result of ch on to out. It gives up when ctx
// ends, whichever side is blocked.
func forward(ctx context.Context, ch <-chan renderer.Result, out chan<- renderer.Result) {
	var res renderer.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return
	}
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

func newCompositor(preview config.PreviewConfig, interval float64) (*renderer.Compositor, *ants.Pool, error) {
	logger := logging.WithComponent("renderer")
	workers := preview.Workers
	if workers <= 0 {
		workers = 1
	}
	pool, err := renderer.NewPool(workers, logger)
	if err != nil {
		return nil, nil, err
	}
	comp, err := renderer.New(renderer.Options{
		Width:         preview.Width,
		Height:        preview.Height,
		FrameInterval: interval,
		Cache:         source.NewCache(preview.CacheSize),
		Logger:        logger,
	}, pool)
	if err != nil {
		pool.Release()
		return nil, nil, err
	}
	return comp, pool, nil
}

func writePNG(path string, comp *renderer.Compositor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, comp.Surface()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var exportFlags struct {
	projectFlags
	output  string
	preset  string
	quality int
	encoder string
	workers int
	fade    float64
	fps     int
}

var exportCmd = &cobra.Command{
	Use:   "export [manifest|pdf|image|dir]",
	Short: "Encode the timeline to MP4 with ffmpeg",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		input, err := resolveInput(cfg, args)
		if err != nil {
			return err
		}
		tl, err := loadTimeline(ctx, cfg, input, exportFlags.projectFlags)
		if err != nil {
			return err
		}

		ec := exportConfig(cmd, cfg.Export)
		width, height, err := ec.Size()
		if err != nil {
			return err
		}

		encoder := ec.Encoder
		if encoder == "" {
			encoder = system.GetBestH264Encoder(ctx)
			if encoder != "libx264" {
				log.Info().Str("encoder", encoder).Msg("обнаружено аппаратное ускорение")
			}
		}
		quality := ec.Quality
		if quality <= 0 {
			quality = config.DefaultQuality(encoder)
		}

		workers := ec.Workers
		if workers <= 0 {
			stats := system.ReadHostStats(ctx)
			stats.Log(log.Logger)
			workers = stats.Workers()
		}

		plan, err := export.BuildPlan(ctx, tl, export.PlanOptions{
			Width:   width,
			Height:  height,
			Fade:    ec.Fade,
			FPS:     ec.FPS,
			Encoder: encoder,
			Quality: quality,
			Workers: workers,
		})
		if err != nil {
			return err
		}

		started := time.Now()
		adapter := export.NewFFmpegAdapter(workers, logging.WithComponent("export"))
		data, err := adapter.Export(ctx, plan)
		if err != nil {
			return err
		}

		out := exportFlags.output
		if out == "" {
			if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
				return err
			}
			out = outputName(cfg.OutputDir, input, audioPath(tl), time.Now())
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}
		log.Info().
			Str("output", out).
			Int("clips", len(plan.Items)).
			Float64("duration", plan.Duration).
			Dur("elapsed", time.Since(started)).
			Msg("успех")
		return nil
	},
}

// exportConfig overlays the flags the user set on the configured values.
func exportConfig(cmd *cobra.Command, ec config.ExportConfig) config.ExportConfig {
	flags := cmd.Flags()
	if flags.Changed("preset") {
		ec.Preset = exportFlags.preset
	}
	if flags.Changed("quality") {
		ec.Quality = exportFlags.quality
	}
	if flags.Changed("encoder") {
		ec.Encoder = exportFlags.encoder
	}
	if flags.Changed("workers") {
		ec.Workers = exportFlags.workers
	}
	if flags.Changed("fade") {
		ec.Fade = exportFlags.fade
	}
	if flags.Changed("fps") {
		ec.FPS = exportFlags.fps
	}
	return ec
}

var listCmd = &cobra.Command{
	Use:       "list [effects|filters]",
	Short:     "List available effects and filters",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"effects", "filters"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "effects":
			for _, k := range effects.Kinds() {
				values := effects.Defaults(k).Values()
				names := make([]string, 0, len(values))
				for name := range values {
					names = append(names, name)
				}
				sort.Strings(names)
				fmt.Fprintf(w, "%s", k)
				for _, name := range names {
					fmt.Fprintf(w, " %s=%s", name, values[name])
				}
				fmt.Fprintln(w)
			}
		case "filters":
			for _, k := range filters.Kinds() {
				fmt.Fprintln(w, k)
			}
		default:
			return fmt.Errorf("unknown resource %q", args[0])
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "img2video.yaml"
		if len(args) > 0 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s уже существует", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("config", path).Msg("конфигурация записана")
		return nil
	},
}

func addProjectFlags(cmd *cobra.Command, pf *projectFlags) {
	cmd.Flags().StringVar(&pf.audio, "audio", "", "Путь к аудио (по умолчанию: из манифеста или самый свежий файл в input/audio/)")
	cmd.Flags().BoolVar(&pf.noAudio, "no-audio", false, "Не использовать аудио")
}

func init() {
	initCmd.Flags().StringVarP(&initFlags.output, "output", "o", "", "Путь к манифесту (если пусто, генерируется в input/)")
	initCmd.Flags().StringVar(&initFlags.audio, "audio", "", "Путь к аудио, длительность берётся из него")
	initCmd.Flags().Float64Var(&initFlags.duration, "duration", 0, "Общая длительность (если 0, по аудио или по умолчанию)")
	initCmd.Flags().StringVar(&initFlags.detect, "detect", "contrast", "Анализ изображений для длительности и зума: contrast, none")

	addProjectFlags(frameCmd, &frameFlags.projectFlags)
	frameCmd.Flags().Float64Var(&frameFlags.at, "at", 0, "Время кадра в секундах")
	frameCmd.Flags().StringVarP(&frameFlags.output, "output", "o", "frame.png", "Путь к PNG")
	frameCmd.Flags().IntVar(&frameFlags.width, "width", 0, "Ширина (по умолчанию из конфигурации)")
	frameCmd.Flags().IntVar(&frameFlags.height, "height", 0, "Высота (по умолчанию из конфигурации)")

	addProjectFlags(previewCmd, &previewFlags.projectFlags)
	previewCmd.Flags().Float64Var(&previewFlags.from, "from", 0, "Начать с указанной секунды")
	previewCmd.Flags().StringVar(&previewFlags.out, "out", "", "Папка для кадров (если пусто, кадры не сохраняются)")
	previewCmd.Flags().IntVar(&previewFlags.every, "every", 30, "Сохранять каждый N-й показанный кадр")

	addProjectFlags(exportCmd, &exportFlags.projectFlags)
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	exportCmd.Flags().StringVar(&exportFlags.preset, "preset", "", "Пресет формата: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	exportCmd.Flags().IntVar(&exportFlags.quality, "quality", 0, "Качество видео (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	exportCmd.Flags().StringVar(&exportFlags.encoder, "encoder", "", "Энкодер H.264 (если пусто, определяется автоматически)")
	exportCmd.Flags().IntVar(&exportFlags.workers, "workers", 0, "Потоки (0 - по числу ядер и памяти)")
	exportCmd.Flags().Float64Var(&exportFlags.fade, "fade", 1, "Длительность появления и затухания клипа (сек)")
	exportCmd.Flags().IntVar(&exportFlags.fps, "fps", 30, "FPS")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
