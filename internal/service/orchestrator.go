package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"videodl/internal/core/domain"
	"videodl/internal/core/ports"
	"videodl/internal/subtitle"
)

// defaultBackoffBase is the first retry delay; each further retry
// doubles it.
const defaultBackoffBase = time.Second

// Orchestrator runs one job's pipeline: extract, transcode, subtitle
// processing. Stage transitions are monotone; any stage failure moves
// the job straight to Failed with that stage's error.
type Orchestrator struct {
	extractor  ports.Extractor
	transcoder ports.Transcoder
	subtitles  *subtitle.Pipeline
	storage    ports.Storage
	logger     hclog.Logger

	backoffBase time.Duration
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	extractor ports.Extractor,
	transcoder ports.Transcoder,
	subtitles *subtitle.Pipeline,
	storage ports.Storage,
	logger hclog.Logger,
) *Orchestrator {
	return &Orchestrator{
		extractor:   extractor,
		transcoder:  transcoder,
		subtitles:   subtitles,
		storage:     storage,
		logger:      logger.Named("orchestrator"),
		backoffBase: defaultBackoffBase,
	}
}

// RunJob executes the full state machine for one job. The returned
// result always satisfies the invariant that exactly one of Path and
// Err is set.
func (o *Orchestrator) RunJob(ctx context.Context, job domain.JobConfig) domain.DownloadResult {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	start := time.Now()
	result := domain.DownloadResult{JobID: job.ID, URL: job.URL, State: domain.StatePending}

	fail := func(err error) domain.DownloadResult {
		result.State = domain.StateFailed
		result.Success = false
		result.Path = ""
		result.Err = err
		result.Elapsed = time.Since(start)
		o.logger.Error("job failed", "job", job.ID, "url", job.URL, "error", err)
		return result
	}

	// Fail before any I/O on bad config or unsafe paths.
	if err := job.Validate(); err != nil {
		return fail(err)
	}
	if err := o.storage.ValidateOutputPath(job.OutputDir); err != nil {
		return fail(err)
	}

	defer func() {
		if err := o.storage.CleanupJob(job.ID); err != nil {
			o.logger.Warn("temp cleanup failed", "job", job.ID, "error", err)
		}
	}()

	o.logger.Info("starting job", "job", job.ID, "url", job.URL)

	if job.SkipExisting {
		if result, done := o.trySkipExisting(ctx, job, start); done {
			return result
		}
	}

	// Extraction, retried on transient engine failures.
	result.State = domain.StateExtracting
	var path string
	var meta *domain.VideoMetadata
	err := o.withRetry(ctx, job.Retries, "extract", job.ID, func() error {
		var stageErr error
		path, meta, stageErr = o.extractor.Download(ctx, job)
		return stageErr
	})
	if err != nil {
		return fail(err)
	}
	// Metadata sticks from here on, even if a later stage fails.
	result.Metadata = meta
	o.logger.Debug("extraction complete", "job", job.ID, "path", path)

	// Transcoding. Engine failures are deterministic, so no retry.
	if job.Processing.Enabled() {
		result.State = domain.StateTranscoding
		processed, err := o.transcoder.Process(ctx, path, *job.Processing)
		if err != nil {
			return fail(err)
		}
		path = processed
		o.logger.Debug("transcoding complete", "job", job.ID, "path", path)
	}

	// Subtitles. The fetch is network-bound and retried on transient
	// failures; post-processing errors surface immediately.
	if job.Subtitles.Enabled() {
		result.State = domain.StateSubtitleProcessing
		workDir := o.storage.TempPath(job.ID, "subs")
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return fail(&domain.SubtitleError{Reason: "failed to create work directory", Err: err})
		}
		baseName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		var subPaths []string
		err := o.withRetry(ctx, job.Retries, "subtitles", job.ID, func() error {
			var stageErr error
			subPaths, stageErr = o.subtitles.Run(ctx, job.URL, *job.Subtitles, workDir, job.OutputDir, baseName)
			return stageErr
		})
		if err != nil {
			return fail(err)
		}
		result.SubtitlePaths = subPaths
	}

	return o.complete(result, path, start, job.ID)
}

// trySkipExisting implements the skip-existing cache policy: probe for
// metadata only, and when the predicted output file is already present
// and non-empty, complete without re-downloading. The short-circuit
// covers the whole pipeline: transcode and subtitle stages are elided
// too, since the existing file is taken as the finished product of a
// previous run with the same settings.
func (o *Orchestrator) trySkipExisting(ctx context.Context, job domain.JobConfig, start time.Time) (domain.DownloadResult, bool) {
	meta, _, err := o.extractor.Probe(ctx, job)
	if err != nil {
		// Fall through to a normal run; the real extraction will
		// surface any persistent problem.
		o.logger.Debug("skip-existing probe failed", "job", job.ID, "error", err)
		return domain.DownloadResult{}, false
	}
	path := o.extractor.ResolveFilename(meta, job)
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return domain.DownloadResult{}, false
	}

	o.logger.Info("output already present, skipping download and processing stages",
		"job", job.ID, "path", path)
	result := domain.DownloadResult{
		JobID:    job.ID,
		URL:      job.URL,
		Metadata: meta,
	}
	return o.complete(result, path, start, job.ID), true
}

// complete finalizes a successful result with checksum and size.
func (o *Orchestrator) complete(result domain.DownloadResult, path string, start time.Time, jobID string) domain.DownloadResult {
	if size, err := o.storage.FileSize(path); err == nil {
		result.Size = size
	}
	if sum, err := o.storage.Checksum(path); err == nil {
		result.Checksum = sum
	}
	result.State = domain.StateCompleted
	result.Success = true
	result.Path = path
	result.Err = nil
	result.Elapsed = time.Since(start)
	o.logger.Info("job completed", "job", jobID, "path", path, "elapsed", result.Elapsed)
	return result
}

// withRetry runs fn up to attempts times with exponential backoff,
// retrying only errors the taxonomy marks transient. attempts is the
// total try budget; it is never less than one.
func (o *Orchestrator) withRetry(ctx context.Context, attempts int, stage, jobID string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := o.backoffBase << (attempt - 1)
			o.logger.Info("retrying stage", "job", jobID, "stage", stage,
				"attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
		o.logger.Warn("stage attempt failed", "job", jobID, "stage", stage,
			"attempt", attempt+1, "error", lastErr)
	}
	return &domain.RetryableExhaustedError{Attempts: attempts, Err: lastErr}
}
