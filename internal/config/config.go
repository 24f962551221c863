package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"videodl/internal/core/domain"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "VIDEO_DL_"

// Config is the application configuration. Precedence, lowest to
// highest: built-in defaults, config file, VIDEO_DL_* environment
// variables, CLI flags (applied by the CLI layer).
type Config struct {
	Download   DownloadSettings   `yaml:"download"`
	Processing ProcessingSettings `yaml:"processing"`
	Subtitles  SubtitleSettings   `yaml:"subtitles"`
	Storage    StorageSettings    `yaml:"storage"`
}

// DownloadSettings configures the download stage and batch scheduling.
type DownloadSettings struct {
	OutputDir              string `yaml:"output_dir"`
	TempDir                string `yaml:"temp_dir"`
	MaxConcurrentDownloads int    `yaml:"max_concurrent_downloads"`
	MaxDownloads           int    `yaml:"max_downloads"`
	DefaultQuality         string `yaml:"default_quality"`
	RateLimit              string `yaml:"rate_limit"`
	Proxy                  string `yaml:"proxy"`
	Retries                int    `yaml:"retries"`
	SkipExisting           bool   `yaml:"skip_existing"`
	ExtractorPath          string `yaml:"extractor_path"`
}

// ProcessingSettings configures the transcoding stage defaults.
type ProcessingSettings struct {
	VideoCodec  string `yaml:"video_codec"`
	AudioCodec  string `yaml:"audio_codec"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

// SubtitleSettings configures the subtitle stage defaults.
type SubtitleSettings struct {
	Languages    []string `yaml:"languages"`
	DownloadAuto bool     `yaml:"download_auto"`
	ConvertToSRT bool     `yaml:"convert_to_srt"`
	FixEncoding  bool     `yaml:"fix_encoding"`
}

// StorageSettings bounds the shared temp directory.
type StorageSettings struct {
	MaxTempSize      string `yaml:"max_temp_size"`
	CleanupAfterDays int    `yaml:"cleanup_after_days"`
	MinFreeSpace     string `yaml:"min_free_space"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Download: DownloadSettings{
			OutputDir:              filepath.Join(home, "Downloads", "video-dl"),
			TempDir:                filepath.Join(home, ".cache", "video-dl"),
			MaxConcurrentDownloads: 3,
			DefaultQuality:         "1080p",
			Retries:                3,
		},
		Processing: ProcessingSettings{
			VideoCodec: "libx264",
			AudioCodec: "aac",
		},
		Subtitles: SubtitleSettings{
			Languages:    []string{"en"},
			ConvertToSRT: true,
			FixEncoding:  true,
		},
		Storage: StorageSettings{
			MaxTempSize:      "10GB",
			CleanupAfterDays: 7,
			MinFreeSpace:     "5GB",
		},
	}
}

// DefaultPath is the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "video-dl", "config.yaml")
}

// Load builds the effective configuration: defaults, overlaid with the
// config file if present, overlaid with environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults apply.
	case err != nil:
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		// Unmarshalling into the populated struct merges file values
		// over defaults.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays VIDEO_DL_* environment variables.
func (c *Config) applyEnv() {
	setString(&c.Download.OutputDir, "OUTPUT_DIR")
	setString(&c.Download.TempDir, "TEMP_DIR")
	setInt(&c.Download.MaxConcurrentDownloads, "MAX_CONCURRENT_DOWNLOADS")
	setInt(&c.Download.MaxDownloads, "MAX_DOWNLOADS")
	setString(&c.Download.DefaultQuality, "DEFAULT_QUALITY")
	setString(&c.Download.RateLimit, "RATE_LIMIT")
	setString(&c.Download.Proxy, "PROXY")
	setInt(&c.Download.Retries, "RETRIES")
	setBool(&c.Download.SkipExisting, "SKIP_EXISTING")
	setString(&c.Download.ExtractorPath, "EXTRACTOR_PATH")

	setString(&c.Processing.VideoCodec, "VIDEO_CODEC")
	setString(&c.Processing.AudioCodec, "AUDIO_CODEC")
	setString(&c.Processing.FFmpegPath, "FFMPEG_PATH")
	setString(&c.Processing.FFprobePath, "FFPROBE_PATH")

	if v := lookup("SUBTITLE_LANGUAGES"); v != "" {
		c.Subtitles.Languages = strings.Split(v, ",")
	}
	setBool(&c.Subtitles.DownloadAuto, "SUBTITLE_AUTO")
	setBool(&c.Subtitles.ConvertToSRT, "SUBTITLE_CONVERT_SRT")
	setBool(&c.Subtitles.FixEncoding, "SUBTITLE_FIX_ENCODING")
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	if c.Download.OutputDir == "" {
		return &domain.ValidationError{Field: "download.output_dir", Reason: "cannot be empty"}
	}
	if c.Download.TempDir == "" {
		return &domain.ValidationError{Field: "download.temp_dir", Reason: "cannot be empty"}
	}
	if c.Download.MaxConcurrentDownloads < 1 {
		return &domain.ValidationError{Field: "download.max_concurrent_downloads", Reason: "must be at least 1"}
	}
	if c.Download.MaxDownloads < 0 {
		return &domain.ValidationError{Field: "download.max_downloads", Reason: "must not be negative"}
	}
	if c.Download.Retries < 0 {
		return &domain.ValidationError{Field: "download.retries", Reason: "must not be negative"}
	}
	for _, field := range []struct{ name, value string }{
		{"storage.max_temp_size", c.Storage.MaxTempSize},
		{"storage.min_free_space", c.Storage.MinFreeSpace},
	} {
		if field.value == "" {
			continue
		}
		if _, err := ParseSize(field.value); err != nil {
			return &domain.ValidationError{Field: field.name, Reason: err.Error()}
		}
	}
	return nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return string(data), nil
}

// ParseSize converts strings like "500K", "1.5M", "10GB" to bytes.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	unit := int64(1)
	switch s[len(s)-1] {
	case 'K':
		unit = 1 << 10
		s = s[:len(s)-1]
	case 'M':
		unit = 1 << 20
		s = s[:len(s)-1]
	case 'G':
		unit = 1 << 30
		s = s[:len(s)-1]
	case 'T':
		unit = 1 << 40
		s = s[:len(s)-1]
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return int64(value * float64(unit)), nil
}

func lookup(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func setString(dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
