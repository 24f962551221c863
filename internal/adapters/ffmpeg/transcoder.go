package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"videodl/internal/adapters/localstorage"
	"videodl/internal/core/domain"
)

// Binary names, overridable for nonstandard installs.
const (
	DefaultFFmpeg  = "ffmpeg"
	DefaultFFprobe = "ffprobe"
)

// Transcoder implements ports.Transcoder by invoking the ffmpeg
// binary. Requested codecs are validated against the engine's
// capability list before any work starts, and the adapter owns temp
// output cleanup on every exit path.
type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
	logger      hclog.Logger

	codecsOnce sync.Once
	codecs     map[string]bool
	codecsErr  error
}

// New creates a Transcoder. Empty paths resolve the binaries from PATH.
func New(ffmpegPath, ffprobePath string, logger hclog.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpeg
	}
	if ffprobePath == "" {
		ffprobePath = DefaultFFprobe
	}
	return &Transcoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger.Named("ffmpeg"),
	}
}

// CheckInstallation verifies the engine binary is runnable.
func (t *Transcoder) CheckInstallation(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		return &domain.ProcessingError{Op: "setup",
			Err: fmt.Errorf("ffmpeg is not installed or not accessible: %w", err)}
	}
	return nil
}

// Process applies the requested operations to inputPath and returns
// the path of the single produced output file. Codec validation is
// fail-fast: an unsupported codec produces CodecUnsupportedError
// before any file is created.
func (t *Transcoder) Process(ctx context.Context, inputPath string, opts domain.ProcessingOptions) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", &domain.ProcessingError{Op: "input check",
			Err: fmt.Errorf("input file not found: %s", inputPath)}
	}

	if err := t.validateCodecs(ctx, opts); err != nil {
		return "", err
	}

	if info, err := t.Probe(ctx, inputPath); err == nil {
		t.logger.Debug("input media",
			"vcodec", info.VCodec, "acodec", info.ACodec,
			"resolution", fmt.Sprintf("%dx%d", info.Width, info.Height),
			"duration", info.Duration)
	}

	args, outputExt, err := BuildArgs(inputPath, opts)
	if err != nil {
		return "", err
	}

	finalPath := outputPath(inputPath, outputExt)
	// Write next to the final location under a unique part name, then
	// rename; a failed transcode never leaves a partial output.
	partPath := finalPath + ".part-" + uuid.NewString()
	args = append(args, partPath)

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.logger.Debug("invoking transcoder", "input", inputPath, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		os.Remove(partPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &domain.ProcessingError{Op: "transcode",
			Err: fmt.Errorf("%w: %s", err, lastLines(stderr.String(), 3))}
	}

	final, err := localstorage.SafeMove(partPath, finalPath)
	if err != nil {
		os.Remove(partPath)
		return "", &domain.ProcessingError{Op: "finalize", Err: err}
	}
	return final, nil
}

// validateCodecs checks every requested codec against the engine's
// capability list.
func (t *Transcoder) validateCodecs(ctx context.Context, opts domain.ProcessingOptions) error {
	requested := requestedCodecs(opts)
	if len(requested) == 0 {
		return nil
	}
	supported, err := t.supportedCodecs(ctx)
	if err != nil {
		return err
	}
	for _, codec := range requested {
		if !supported[codec] {
			return &domain.CodecUnsupportedError{Codec: codec}
		}
	}
	return nil
}

// requestedCodecs lists codec identifiers the options name explicitly.
// "copy" is a passthrough pseudo-codec the engine always accepts.
func requestedCodecs(opts domain.ProcessingOptions) []string {
	var out []string
	if opts.VideoCodec != "" && opts.VideoCodec != "copy" {
		out = append(out, opts.VideoCodec)
	}
	if opts.AudioCodec != "" && opts.AudioCodec != "copy" {
		out = append(out, opts.AudioCodec)
	}
	return out
}

// supportedCodecs queries `ffmpeg -codecs` once and caches the
// name set, including encoder aliases like libx264.
func (t *Transcoder) supportedCodecs(ctx context.Context) (map[string]bool, error) {
	t.codecsOnce.Do(func() {
		cmd := exec.CommandContext(ctx, t.ffmpegPath, "-codecs")
		out, err := cmd.Output()
		if err != nil {
			t.codecsErr = &domain.ProcessingError{Op: "codec query",
				Err: fmt.Errorf("failed to list engine codecs: %w", err)}
			return
		}
		t.codecs = parseCodecList(string(out))
	})
	return t.codecs, t.codecsErr
}

// parseCodecList extracts codec and encoder names from the engine's
// -codecs table. Lines look like:
//
//	DEV.LS h264  H.264 / AVC ... (encoders: libx264 libx264rgb h264_nvenc)
func parseCodecList(out string) map[string]bool {
	codecs := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) < 6 {
			continue
		}
		// First column is the capability flag block, e.g. "DEV.LS".
		if !strings.ContainsAny(fields[0], "DEVAS.") {
			continue
		}
		codecs[fields[1]] = true
		if i := strings.Index(line, "(encoders:"); i >= 0 {
			enc := line[i+len("(encoders:"):]
			if j := strings.IndexByte(enc, ')'); j >= 0 {
				enc = enc[:j]
			}
			for _, name := range strings.Fields(enc) {
				codecs[name] = true
			}
		}
		if i := strings.Index(line, "(decoders:"); i >= 0 {
			dec := line[i+len("(decoders:"):]
			if j := strings.IndexByte(dec, ')'); j >= 0 {
				dec = dec[:j]
			}
			for _, name := range strings.Fields(dec) {
				codecs[name] = true
			}
		}
	}
	return codecs
}

// outputPath derives the processed-file path: stem + "_processed" with
// a numeric suffix if that name is taken.
func outputPath(inputPath, ext string) string {
	inExt := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(inputPath, inExt)
	if ext == "" {
		ext = inExt
	} else if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return localstorage.UniquePath(stem + "_processed" + ext)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
