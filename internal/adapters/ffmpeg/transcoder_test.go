package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videodl/internal/core/domain"
)

// seededTranscoder returns a Transcoder whose codec capability cache
// is pre-filled, so no engine binary is needed.
func seededTranscoder(t *testing.T, codecs ...string) *Transcoder {
	t.Helper()
	tr := New("", "", hclog.NewNullLogger())
	tr.codecsOnce.Do(func() {})
	tr.codecs = make(map[string]bool, len(codecs))
	for _, c := range codecs {
		tr.codecs[c] = true
	}
	return tr
}

const sampleCodecList = `Codecs:
 D..... = Decoding supported
 .E.... = Encoding supported
 ..V... = Video codec
 -------
 DEV.L. av1                  Alliance for Open Media AV1 (decoders: libdav1d libaom-av1) (encoders: libaom-av1 libsvtav1)
 DEV.LS h264                 H.264 / AVC / MPEG-4 AVC (encoders: libx264 libx264rgb h264_nvenc)
 DEV.L. hevc                 H.265 / HEVC (High Efficiency Video Coding) (encoders: libx265 hevc_nvenc)
 DEAIL. aac                  AAC (Advanced Audio Coding) (decoders: aac aac_fixed)
 DEAIL. mp3                  MP3 (MPEG audio layer 3) (decoders: mp3float mp3) (encoders: libmp3lame)
 D.VI.S dvd_subtitle         DVD subtitles
`

func TestParseCodecList(t *testing.T) {
	codecs := parseCodecList(sampleCodecList)

	for _, name := range []string{
		"h264", "libx264", "h264_nvenc",
		"hevc", "libx265",
		"aac", "mp3", "libmp3lame",
		"av1", "libaom-av1", "libdav1d",
	} {
		assert.True(t, codecs[name], name)
	}
	assert.False(t, codecs["libvpx"])
	assert.False(t, codecs["Codecs:"])
}

func TestRequestedCodecs(t *testing.T) {
	assert.Empty(t, requestedCodecs(domain.ProcessingOptions{}))
	assert.Empty(t, requestedCodecs(domain.ProcessingOptions{VideoCodec: "copy", AudioCodec: "copy"}))
	assert.Equal(t, []string{"libx264", "aac"},
		requestedCodecs(domain.ProcessingOptions{VideoCodec: "libx264", AudioCodec: "aac"}))
}

func TestProcessUnsupportedCodecFailsFast(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "video.mp4")
	require.NoError(t, os.WriteFile(input, []byte("media"), 0o644))

	tr := seededTranscoder(t, "libx264", "aac")
	_, err := tr.Process(context.Background(), input,
		domain.ProcessingOptions{VideoCodec: "libvpx"})

	var cerr *domain.CodecUnsupportedError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "libvpx", cerr.Codec)

	// Validation runs before any output is created.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "video.mp4", entries[0].Name())
}

func TestProcessMissingInput(t *testing.T) {
	tr := seededTranscoder(t)
	_, err := tr.Process(context.Background(), "/nonexistent/video.mp4",
		domain.ProcessingOptions{Resize: "1280x720"})

	var perr *domain.ProcessingError
	assert.True(t, errors.As(err, &perr))
}

func TestValidateCodecs(t *testing.T) {
	tr := seededTranscoder(t, "libx264", "aac")
	ctx := context.Background()

	assert.NoError(t, tr.validateCodecs(ctx, domain.ProcessingOptions{}))
	assert.NoError(t, tr.validateCodecs(ctx, domain.ProcessingOptions{VideoCodec: "libx264", AudioCodec: "aac"}))
	assert.NoError(t, tr.validateCodecs(ctx, domain.ProcessingOptions{VideoCodec: "copy"}))
	assert.Error(t, tr.validateCodecs(ctx, domain.ProcessingOptions{AudioCodec: "libopus"}))
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "video.mp4")

	assert.Equal(t, filepath.Join(dir, "video_processed.mp4"), outputPath(in, ""))
	assert.Equal(t, filepath.Join(dir, "video_processed.mp3"), outputPath(in, "mp3"))
	assert.Equal(t, filepath.Join(dir, "video_processed.webm"), outputPath(in, ".webm"))
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 30.0, parseFrameRate("30/1"))
	assert.InDelta(t, 23.976, parseFrameRate("24000/1001"), 0.001)
	assert.Equal(t, 0.0, parseFrameRate("30"))
	assert.Equal(t, 0.0, parseFrameRate("30/0"))
	assert.Equal(t, 0.0, parseFrameRate(""))
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c | d | e", lastLines("a\nb\nc\nd\ne\n", 3))
	assert.Equal(t, "a | b", lastLines("a\nb", 3))
	assert.Equal(t, "", lastLines("", 3))
}
