package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.Download.OutputDir)
	assert.NotEmpty(t, cfg.Download.TempDir)
	assert.Equal(t, 3, cfg.Download.MaxConcurrentDownloads)
	assert.Equal(t, "1080p", cfg.Download.DefaultQuality)
	assert.Equal(t, 3, cfg.Download.Retries)
	assert.Equal(t, "libx264", cfg.Processing.VideoCodec)
	assert.Equal(t, "aac", cfg.Processing.AudioCodec)
	assert.Equal(t, []string{"en"}, cfg.Subtitles.Languages)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Download.MaxConcurrentDownloads, cfg.Download.MaxConcurrentDownloads)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `download:
  max_concurrent_downloads: 5
  default_quality: 720p
subtitles:
  languages: [en, es]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Download.MaxConcurrentDownloads)
	assert.Equal(t, "720p", cfg.Download.DefaultQuality)
	assert.Equal(t, []string{"en", "es"}, cfg.Subtitles.Languages)
	// Unset keys keep their defaults.
	assert.Equal(t, 3, cfg.Download.Retries)
	assert.Equal(t, "libx264", cfg.Processing.VideoCodec)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  retries: 5\n"), 0o644))

	t.Setenv("VIDEO_DL_RETRIES", "7")
	t.Setenv("VIDEO_DL_DEFAULT_QUALITY", "480p")
	t.Setenv("VIDEO_DL_SKIP_EXISTING", "true")
	t.Setenv("VIDEO_DL_SUBTITLE_LANGUAGES", "de,fr")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Download.Retries)
	assert.Equal(t, "480p", cfg.Download.DefaultQuality)
	assert.True(t, cfg.Download.SkipExisting)
	assert.Equal(t, []string{"de", "fr"}, cfg.Subtitles.Languages)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty output dir", func(c *Config) { c.Download.OutputDir = "" }},
		{"empty temp dir", func(c *Config) { c.Download.TempDir = "" }},
		{"zero concurrency", func(c *Config) { c.Download.MaxConcurrentDownloads = 0 }},
		{"negative max downloads", func(c *Config) { c.Download.MaxDownloads = -1 }},
		{"negative retries", func(c *Config) { c.Download.Retries = -1 }},
		{"bad temp size", func(c *Config) { c.Storage.MaxTempSize = "lots" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Download.MaxConcurrentDownloads = 8
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Download.MaxConcurrentDownloads)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "500K", want: 500 << 10},
		{input: "1.5M", want: 1536 << 10},
		{input: "10GB", want: 10 << 30},
		{input: "2T", want: 2 << 40},
		{input: "1024", want: 1024},
		{input: " 5gb ", want: 5 << 30},
		{input: "", wantErr: true},
		{input: "lots", wantErr: true},
		{input: "-1M", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
