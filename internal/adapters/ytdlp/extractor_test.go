package ytdlp

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videodl/internal/core/domain"
)

func testLogger(t *testing.T) hclog.Logger {
	t.Helper()
	return hclog.NewNullLogger()
}

const sampleDump = `{
	"title": "Test Video",
	"duration": 213.5,
	"upload_date": "20240115",
	"uploader": "Test Channel",
	"view_count": 12345,
	"webpage_url": "https://example.com/watch?v=abc",
	"extractor": "generic",
	"format_id": "137+140",
	"width": 1920,
	"height": 1080,
	"fps": 30,
	"vcodec": "avc1.640028",
	"acodec": "mp4a.40.2",
	"_filename": "/tmp/job1.Test Video.mp4",
	"requested_downloads": [{"filepath": "/tmp/job1.Test Video.merged.mp4"}],
	"formats": [
		{"format_id": "137", "ext": "mp4", "height": 1080, "vcodec": "avc1.640028", "acodec": "none"},
		{"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2"}
	],
	"subtitles": {"en": [], "es": []},
	"automatic_captions": {"de": []}
}`

func TestParseInfo(t *testing.T) {
	info, err := parseInfo([]byte(sampleDump))
	require.NoError(t, err)

	meta := info.metadata()
	assert.Equal(t, "Test Video", meta.Title)
	assert.Equal(t, 213.5, meta.Duration)
	assert.Equal(t, "https://example.com/watch?v=abc", meta.WebpageURL)
	assert.Equal(t, 1080, meta.Height)

	formats := info.normalizedFormats()
	require.Len(t, formats, 2)
	assert.Equal(t, "137", formats[0].ID)
	assert.Equal(t, "m4a", formats[1].Ext)

	// requested_downloads wins over the legacy _filename field.
	assert.Equal(t, "/tmp/job1.Test Video.merged.mp4", info.downloadedFile())

	manual, auto := info.subtitleLanguages()
	assert.ElementsMatch(t, []string{"en", "es"}, manual)
	assert.ElementsMatch(t, []string{"de"}, auto)
}

func TestParseInfoErrors(t *testing.T) {
	_, err := parseInfo([]byte("not json"))
	assert.Error(t, err)

	_, err = parseInfo([]byte(`{"id": "abc"}`))
	assert.Error(t, err, "dump without title or webpage_url is rejected")
}

func TestDownloadedFileFallback(t *testing.T) {
	info, err := parseInfo([]byte(`{"title": "x", "_filename": "/tmp/x.mp4"}`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.mp4", info.downloadedFile())
}

func TestClassify(t *testing.T) {
	base := errors.New("exit status 1")

	tests := []struct {
		name          string
		stderr        string
		wantType      string
		wantTransient bool
	}{
		{
			name:     "format unavailable",
			stderr:   "ERROR: Requested format is not available",
			wantType: "format",
		},
		{
			name:     "unsupported url",
			stderr:   "ERROR: Unsupported URL: https://example.com/page",
			wantType: "extraction",
		},
		{
			name:          "network timeout is transient",
			stderr:        "ERROR: unable to download webpage: The read operation timed out",
			wantType:      "extraction",
			wantTransient: true,
		},
		{
			name:          "rate limited is transient",
			stderr:        "ERROR: HTTP Error 429: Too Many Requests",
			wantType:      "extraction",
			wantTransient: true,
		},
		{
			name:     "unknown failure is permanent",
			stderr:   "ERROR: This video is private",
			wantType: "extraction",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("https://example.com/v", tt.stderr, base)
			switch tt.wantType {
			case "format":
				var ferr *domain.FormatUnavailableError
				assert.True(t, errors.As(err, &ferr))
			case "extraction":
				var xerr *domain.ExtractionError
				require.True(t, errors.As(err, &xerr))
				assert.Equal(t, tt.wantTransient, xerr.Transient)
			}
			assert.Equal(t, tt.wantTransient, domain.IsRetryable(err))
		})
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "line one", firstLine("line one\nline two\n"))
	assert.Equal(t, "only", firstLine("  only  "))
	assert.Equal(t, "", firstLine(""))
}

func TestResolveFilename(t *testing.T) {
	e := New("", t.TempDir(), testLogger(t))
	meta := &domain.VideoMetadata{Title: "My Video"}

	got := e.ResolveFilename(meta, domain.JobConfig{OutputDir: "/out"})
	assert.Equal(t, "/out/My Video.mp4", got)

	got = e.ResolveFilename(meta, domain.JobConfig{
		OutputDir:  "/out",
		Processing: &domain.ProcessingOptions{ExtractAudio: true, AudioFormat: "mp3"},
	})
	assert.Equal(t, "/out/My Video.mp3", got)
}

func TestCommonArgs(t *testing.T) {
	e := New("", t.TempDir(), testLogger(t))

	job := domain.JobConfig{
		Proxy:     "socks5://127.0.0.1:1080",
		RateLimit: "1M",
		GeoBypass: true,
	}
	args, err := e.commonArgs(job)
	require.NoError(t, err)
	assert.Contains(t, args, "--proxy")
	assert.Contains(t, args, "socks5://127.0.0.1:1080")
	assert.Contains(t, args, "--limit-rate")
	assert.Contains(t, args, "1048576")
	assert.Contains(t, args, "--geo-bypass")
	assert.Contains(t, args, "--no-playlist")

	_, err = e.commonArgs(domain.JobConfig{RateLimit: "fast"})
	var verr *domain.ValidationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
}
