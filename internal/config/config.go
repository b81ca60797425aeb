package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	DPI       int    `yaml:"dpi"`

	Preview  PreviewConfig  `yaml:"preview"`
	Export   ExportConfig   `yaml:"export"`
	Playback PlaybackConfig `yaml:"playback"`
	Timeline TimelineConfig `yaml:"timeline"`
}

type PreviewConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
	// CacheSize is the number of decoded images kept in memory.
	CacheSize int `yaml:"cache_size"`
	Workers   int `yaml:"workers"`
}

type ExportConfig struct {
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	Preset  string  `yaml:"preset"` // 16:9, 9:16, 4:5
	FPS     int     `yaml:"fps"`
	Fade    float64 `yaml:"fade"`
	Workers int     `yaml:"workers"` // 0: по числу ядер и свободной памяти
	Encoder string  `yaml:"encoder"` // пусто: автоопределение
	Quality int     `yaml:"quality"` // 0: по энкодеру
}

type PlaybackConfig struct {
	SeekStep float64 `yaml:"seek_step"`
}

type TimelineConfig struct {
	DefaultDuration float64 `yaml:"default_duration"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		return fmt.Errorf("preview size %dx%d is invalid", c.Preview.Width, c.Preview.Height)
	}
	if c.Preview.FPS <= 0 || c.Export.FPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}
	if _, _, err := c.Export.Size(); err != nil {
		return err
	}
	if c.Export.Fade < 0 {
		return fmt.Errorf("fade %v is negative", c.Export.Fade)
	}
	if c.Timeline.DefaultDuration <= 0 {
		return fmt.Errorf("default duration %v must be positive", c.Timeline.DefaultDuration)
	}
	return nil
}

// Size resolves the export frame size; a preset overrides width and height.
func (e ExportConfig) Size() (int, int, error) {
	switch e.Preset {
	case "":
	case "16:9":
		return 1280, 720, nil
	case "9:16":
		return 720, 1280, nil
	case "4:5":
		return 1080, 1350, nil
	default:
		return 0, 0, fmt.Errorf("unknown preset %q", e.Preset)
	}
	if e.Width <= 0 || e.Height <= 0 || e.Width%2 != 0 || e.Height%2 != 0 {
		return 0, 0, fmt.Errorf("export size %dx%d must be positive and even", e.Width, e.Height)
	}
	return e.Width, e.Height, nil
}

// DefaultQuality is the quality setting used when none is configured.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // Хорошее качество для VideoToolbox
	case "h264_nvenc":
		return 28 // Эквивалент CRF для NVENC
	default:
		return 23 // Стандартный CRF для x264
	}
}

func defaultConfig() *Config {
	return &Config{
		InputDir:  "input",
		OutputDir: "output",
		DPI:       150,
		Preview: PreviewConfig{
			Width:     640,
			Height:    360,
			FPS:       60,
			CacheSize: 32,
			Workers:   4,
		},
		Export: ExportConfig{
			Width:  1280,
			Height: 720,
			FPS:    30,
			Fade:   1,
		},
		Playback: PlaybackConfig{
			SeekStep: 5,
		},
		Timeline: TimelineConfig{
			DefaultDuration: 5,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config { return defaultConfig() }

func findConfigFile() string {
	candidates := []string{
		"./img2video.yaml",
		"./img2video.yml",
		filepath.Join(os.Getenv("HOME"), ".img2video", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
