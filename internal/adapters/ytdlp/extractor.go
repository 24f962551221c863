package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"videodl/internal/adapters/localstorage"
	"videodl/internal/core/domain"
)

// DefaultBinary is used when no explicit yt-dlp path is configured.
const DefaultBinary = "yt-dlp"

// Extractor implements ports.Extractor and ports.SubtitleFetcher by
// invoking the yt-dlp binary. All engine output is normalized into
// domain types at this boundary.
type Extractor struct {
	binaryPath string
	tempDir    string
	logger     hclog.Logger
}

// New creates an Extractor. binaryPath may be empty, in which case
// yt-dlp is resolved from PATH.
func New(binaryPath, tempDir string, logger hclog.Logger) *Extractor {
	if binaryPath == "" {
		binaryPath = DefaultBinary
	}
	return &Extractor{
		binaryPath: binaryPath,
		tempDir:    tempDir,
		logger:     logger.Named("ytdlp"),
	}
}

// Probe resolves metadata and available formats without downloading.
// When the job names a specific format id, its absence among the
// reported formats is a FormatUnavailableError.
func (e *Extractor) Probe(ctx context.Context, job domain.JobConfig) (*domain.VideoMetadata, []domain.Format, error) {
	args, err := e.commonArgs(job)
	if err != nil {
		return nil, nil, err
	}
	args = append(args, "-J", job.URL)

	stdout, err := e.run(ctx, args, job.URL)
	if err != nil {
		return nil, nil, err
	}

	info, err := parseInfo(stdout)
	if err != nil {
		return nil, nil, &domain.ExtractionError{URL: job.URL, Err: err}
	}

	formats := info.normalizedFormats()
	if job.FormatID != "" && !selectorMatchesAny(job.FormatID, formats) {
		return nil, nil, &domain.FormatUnavailableError{Requested: job.FormatID, URL: job.URL}
	}
	return info.metadata(), formats, nil
}

// Download retrieves the video into job.OutputDir. The file is written
// under a job-keyed temp name first and renamed into place only on
// success, so a failed download leaves no partial output.
func (e *Extractor) Download(ctx context.Context, job domain.JobConfig) (string, *domain.VideoMetadata, error) {
	args, err := e.commonArgs(job)
	if err != nil {
		return "", nil, err
	}

	spec, err := buildFormatSpec(job)
	if err != nil {
		return "", nil, err
	}

	outTmpl := filepath.Join(e.tempDir, job.ID+".%(title)s.%(ext)s")
	args = append(args,
		"-f", spec,
		"-o", outTmpl,
		"--merge-output-format", "mp4",
		"--print-json",
		"--no-progress",
		job.URL,
	)

	stdout, err := e.run(ctx, args, job.URL)
	if err != nil {
		e.removePartials(job.ID)
		return "", nil, err
	}

	info, err := parseInfo(stdout)
	if err != nil {
		e.removePartials(job.ID)
		return "", nil, &domain.ExtractionError{URL: job.URL, Err: err}
	}

	tempPath := info.downloadedFile()
	if tempPath == "" {
		e.removePartials(job.ID)
		return "", nil, &domain.ExtractionError{URL: job.URL,
			Err: fmt.Errorf("engine reported success but no output file")}
	}
	if _, statErr := os.Stat(tempPath); statErr != nil {
		e.removePartials(job.ID)
		return "", nil, &domain.ExtractionError{URL: job.URL,
			Err: fmt.Errorf("download completed but file not found: %s", tempPath)}
	}

	// Strip the job-id temp prefix when moving into the output dir.
	base := strings.TrimPrefix(filepath.Base(tempPath), job.ID+".")
	final, err := localstorage.SafeMove(tempPath, filepath.Join(job.OutputDir, localstorage.CleanFilename(base)))
	if err != nil {
		e.removePartials(job.ID)
		return "", nil, &domain.ExtractionError{URL: job.URL, Err: err}
	}

	e.logger.Debug("download finished", "url", job.URL, "path", final)
	return final, info.metadata(), nil
}

// ResolveFilename predicts the final output filename for a job without
// downloading, used by the skip-existing policy.
func (e *Extractor) ResolveFilename(meta *domain.VideoMetadata, job domain.JobConfig) string {
	ext := "mp4"
	if job.Processing != nil && job.Processing.ExtractAudio && job.Processing.AudioFormat != "" {
		ext = job.Processing.AudioFormat
	}
	return filepath.Join(job.OutputDir, localstorage.CleanFilename(meta.Title+"."+ext))
}

// commonArgs builds the flags shared by every invocation.
func (e *Extractor) commonArgs(job domain.JobConfig) ([]string, error) {
	args := []string{"--no-warnings", "--no-playlist"}
	if job.Proxy != "" {
		args = append(args, "--proxy", job.Proxy)
	}
	if job.RateLimit != "" {
		limit, err := parseSizeString(job.RateLimit)
		if err != nil {
			return nil, &domain.ValidationError{Field: "rate_limit", Reason: err.Error()}
		}
		args = append(args, "--limit-rate", strconv.FormatInt(limit, 10))
	}
	if job.CookiesFile != "" {
		args = append(args, "--cookies", job.CookiesFile)
	}
	if job.Username != "" {
		args = append(args, "--username", job.Username)
	}
	if job.Password != "" {
		args = append(args, "--password", job.Password)
	}
	if job.GeoBypass {
		args = append(args, "--geo-bypass")
	}
	return args, nil
}

// run executes yt-dlp and classifies failures into the domain error
// taxonomy. Context cancellation terminates the child process.
func (e *Extractor) run(ctx context.Context, args []string, url string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("invoking extractor", "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(url, stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

// removePartials deletes any job-keyed temp files, including the
// .part files yt-dlp leaves for interrupted downloads.
func (e *Extractor) removePartials(jobID string) {
	matches, _ := filepath.Glob(filepath.Join(e.tempDir, jobID+".*"))
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to remove partial file", "path", path, "error", err)
		}
	}
}

// classify maps engine stderr onto the error taxonomy.
func classify(url, stderr string, err error) error {
	switch {
	case strings.Contains(stderr, "Requested format is not available"):
		return &domain.FormatUnavailableError{Requested: "requested selector", URL: url}
	case strings.Contains(stderr, "Unsupported URL"),
		strings.Contains(stderr, "is not a valid URL"):
		return &domain.ExtractionError{URL: url,
			Err: fmt.Errorf("unsupported or invalid URL: %s", firstLine(stderr))}
	case domain.TransientText(stderr):
		return &domain.ExtractionError{URL: url, Transient: true,
			Err: fmt.Errorf("%w: %s", err, firstLine(stderr))}
	default:
		return &domain.ExtractionError{URL: url,
			Err: fmt.Errorf("%w: %s", err, firstLine(stderr))}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// selectorMatchesAny reports whether a format selector can be
// satisfied. Plain ids are matched literally; selectors using the
// engine's grammar (filters, fallbacks, merges) are passed through
// uninterpreted and assumed satisfiable.
func selectorMatchesAny(selector string, formats []domain.Format) bool {
	if strings.ContainsAny(selector, "[]+/<>=*") {
		return true
	}
	for _, f := range formats {
		if f.ID == selector {
			return true
		}
	}
	return false
}

// parseInfo decodes a single-video JSON dump.
func parseInfo(data []byte) (*videoInfo, error) {
	var info videoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode engine output: %w", err)
	}
	if info.Title == "" && info.WebpageURL == "" {
		return nil, fmt.Errorf("engine output missing video information")
	}
	return &info, nil
}
