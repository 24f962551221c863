package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videodl/internal/adapters/localstorage"
	"videodl/internal/core/domain"
	"videodl/internal/subtitle"
)

// fakeExtractor is an in-memory Extractor that writes real files so
// the checksum and size finalization paths run against the filesystem.
type fakeExtractor struct {
	mu            sync.Mutex
	downloadCalls int
	probeCalls    int
	// failures are consumed one per Download call before success.
	failures []error
	probeErr error

	delayFor func(job domain.JobConfig) time.Duration

	inflight    atomic.Int64
	maxInflight atomic.Int64
}

func (f *fakeExtractor) Probe(_ context.Context, _ domain.JobConfig) (*domain.VideoMetadata, []domain.Format, error) {
	f.mu.Lock()
	f.probeCalls++
	f.mu.Unlock()
	if f.probeErr != nil {
		return nil, nil, f.probeErr
	}
	return &domain.VideoMetadata{Title: "video"}, nil, nil
}

func (f *fakeExtractor) Download(ctx context.Context, job domain.JobConfig) (string, *domain.VideoMetadata, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		max := f.maxInflight.Load()
		if cur <= max || f.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.delayFor != nil {
		// Honor cancellation during the simulated transfer, the way a
		// real child process dies when its context is cancelled.
		select {
		case <-time.After(f.delayFor(job)):
		case <-ctx.Done():
			return "", nil, &domain.ExtractionError{URL: job.URL, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	f.downloadCalls++
	var err error
	if len(f.failures) > 0 {
		err = f.failures[0]
		f.failures = f.failures[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return "", nil, err
	}

	path := filepath.Join(job.OutputDir, "video-"+job.ID+".mp4")
	if err := os.WriteFile(path, []byte("video data"), 0o644); err != nil {
		return "", nil, err
	}
	return path, &domain.VideoMetadata{Title: "video"}, nil
}

func (f *fakeExtractor) ResolveFilename(meta *domain.VideoMetadata, job domain.JobConfig) string {
	return filepath.Join(job.OutputDir, meta.Title+".mp4")
}

type fakeTranscoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTranscoder) Process(_ context.Context, inputPath string, _ domain.ProcessingOptions) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	out := strings.TrimSuffix(inputPath, ".mp4") + "_processed.mp4"
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

type fakeSubFetcher struct{}

func (fakeSubFetcher) Fetch(_ context.Context, _ string, opts domain.SubtitleOptions, destDir string) ([]domain.SubtitleTrack, error) {
	var out []domain.SubtitleTrack
	for _, lang := range opts.DedupedLanguages() {
		path := filepath.Join(destDir, "subs."+lang+".srt")
		content := "1\n00:00:01,000 --> 00:00:02,000\n[" + lang + "] text\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
		out = append(out, domain.SubtitleTrack{Lang: lang, Format: "srt", Path: path})
	}
	return out, nil
}

func (fakeSubFetcher) ListAvailable(context.Context, string) ([]string, []string, error) {
	return nil, nil, nil
}

type harness struct {
	orch    *Orchestrator
	ext     *fakeExtractor
	trans   *fakeTranscoder
	storage *localstorage.LocalStorage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	st := localstorage.New(filepath.Join(root, "out"), filepath.Join(root, "tmp"))
	require.NoError(t, st.EnsureDirs())

	ext := &fakeExtractor{}
	trans := &fakeTranscoder{}
	subs := subtitle.NewPipeline(fakeSubFetcher{}, hclog.NewNullLogger())
	orch := NewOrchestrator(ext, trans, subs, st, hclog.NewNullLogger())
	orch.backoffBase = time.Millisecond

	return &harness{orch: orch, ext: ext, trans: trans, storage: st}
}

func (h *harness) job() domain.JobConfig {
	return domain.JobConfig{
		URL:       "https://example.com/watch?v=abc",
		OutputDir: h.storage.OutputDir(),
		Retries:   3,
	}
}

func transientErr() error {
	return &domain.ExtractionError{URL: "https://example.com/watch?v=abc",
		Transient: true, Err: errors.New("connection reset")}
}

func TestRunJobSuccess(t *testing.T) {
	h := newHarness(t)

	result := h.orch.RunJob(context.Background(), h.job())

	assert.True(t, result.Success)
	assert.Equal(t, domain.StateCompleted, result.State)
	assert.NotEmpty(t, result.Path)
	assert.NoError(t, result.Err)
	assert.NotEmpty(t, result.JobID)
	assert.NotNil(t, result.Metadata)
	assert.Equal(t, int64(len("video data")), result.Size)
	assert.NotEmpty(t, result.Checksum)
	assert.Equal(t, 0, h.trans.calls, "no processing requested")
}

func TestRunJobValidationFailsBeforeExtraction(t *testing.T) {
	h := newHarness(t)
	job := h.job()
	job.URL = "not-a-url"

	result := h.orch.RunJob(context.Background(), job)

	assert.False(t, result.Success)
	assert.Equal(t, domain.StateFailed, result.State)
	assert.Empty(t, result.Path)
	var verr *domain.ValidationError
	assert.True(t, errors.As(result.Err, &verr))
	assert.Equal(t, 0, h.ext.downloadCalls)
}

func TestRunJobRejectsUnsafeOutputDir(t *testing.T) {
	h := newHarness(t)
	job := h.job()
	job.OutputDir = filepath.Join(h.storage.OutputDir(), "..", "elsewhere")

	result := h.orch.RunJob(context.Background(), job)

	var serr *domain.SecurityError
	assert.True(t, errors.As(result.Err, &serr))
	assert.Equal(t, 0, h.ext.downloadCalls)
}

func TestRunJobRetriesTransientFailures(t *testing.T) {
	h := newHarness(t)
	h.ext.failures = []error{transientErr(), transientErr()}

	result := h.orch.RunJob(context.Background(), h.job())

	assert.True(t, result.Success)
	assert.Equal(t, 3, h.ext.downloadCalls, "two failures plus the succeeding attempt")
}

func TestRunJobRetryBudgetExhausted(t *testing.T) {
	h := newHarness(t)
	h.ext.failures = []error{transientErr(), transientErr(), transientErr()}

	result := h.orch.RunJob(context.Background(), h.job())

	assert.False(t, result.Success)
	assert.Equal(t, 3, h.ext.downloadCalls, "retries bound total attempts")

	var rerr *domain.RetryableExhaustedError
	require.True(t, errors.As(result.Err, &rerr))
	assert.Equal(t, 3, rerr.Attempts)
	var xerr *domain.ExtractionError
	assert.True(t, errors.As(result.Err, &xerr), "last stage error stays reachable")
}

func TestRunJobNoRetryOnPermanentFailure(t *testing.T) {
	h := newHarness(t)
	h.ext.failures = []error{&domain.ExtractionError{URL: "u", Err: errors.New("video is private")}}

	result := h.orch.RunJob(context.Background(), h.job())

	assert.False(t, result.Success)
	assert.Equal(t, 1, h.ext.downloadCalls)
}

func TestRunJobTranscodes(t *testing.T) {
	h := newHarness(t)
	job := h.job()
	job.Processing = &domain.ProcessingOptions{Resize: "1280x720"}

	result := h.orch.RunJob(context.Background(), job)

	require.True(t, result.Success)
	assert.Equal(t, 1, h.trans.calls)
	assert.Contains(t, result.Path, "_processed")
}

func TestRunJobTranscodeFailureKeepsMetadata(t *testing.T) {
	h := newHarness(t)
	h.trans.err = &domain.ProcessingError{Op: "transcode", Err: errors.New("boom")}
	job := h.job()
	job.Processing = &domain.ProcessingOptions{Resize: "1280x720"}

	result := h.orch.RunJob(context.Background(), job)

	assert.False(t, result.Success)
	assert.Equal(t, domain.StateFailed, result.State)
	assert.Empty(t, result.Path)
	assert.NotNil(t, result.Metadata, "metadata from extraction survives a later failure")
	assert.Equal(t, 1, h.trans.calls, "engine failures are deterministic, never retried")
}

func TestRunJobFetchesSubtitles(t *testing.T) {
	h := newHarness(t)
	job := h.job()
	job.Subtitles = &domain.SubtitleOptions{Languages: []string{"en"}}

	result := h.orch.RunJob(context.Background(), job)

	require.True(t, result.Success)
	require.Len(t, result.SubtitlePaths, 1)

	// The finished track lands next to the video, named after it.
	base := strings.TrimSuffix(filepath.Base(result.Path), filepath.Ext(result.Path))
	assert.Equal(t, filepath.Join(h.storage.OutputDir(), base+".en.srt"), result.SubtitlePaths[0])
	_, err := os.Stat(result.SubtitlePaths[0])
	assert.NoError(t, err)

	// The job's subtitle work directory is reaped with the temp files.
	entries, err := os.ReadDir(h.storage.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunJobSkipExisting(t *testing.T) {
	h := newHarness(t)
	job := h.job()
	job.SkipExisting = true
	job.Processing = &domain.ProcessingOptions{Resize: "1280x720"}

	existing := filepath.Join(h.storage.OutputDir(), "video.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0o644))

	result := h.orch.RunJob(context.Background(), job)

	assert.True(t, result.Success)
	assert.Equal(t, existing, result.Path)
	assert.Equal(t, 0, h.ext.downloadCalls, "present output short-circuits the download")
	assert.Equal(t, 1, h.ext.probeCalls)
	assert.Equal(t, 0, h.trans.calls,
		"the existing file counts as the finished product, so processing is elided too")
	assert.NotEmpty(t, result.Checksum)
}

func TestRunJobSkipExistingFallsThrough(t *testing.T) {
	t.Run("file absent", func(t *testing.T) {
		h := newHarness(t)
		job := h.job()
		job.SkipExisting = true

		result := h.orch.RunJob(context.Background(), job)
		assert.True(t, result.Success)
		assert.Equal(t, 1, h.ext.downloadCalls)
	})

	t.Run("probe failure", func(t *testing.T) {
		h := newHarness(t)
		h.ext.probeErr = transientErr()
		job := h.job()
		job.SkipExisting = true

		result := h.orch.RunJob(context.Background(), job)
		assert.True(t, result.Success, "a failed probe never fails the job")
		assert.Equal(t, 1, h.ext.downloadCalls)
	})
}

func TestRunJobAssignsID(t *testing.T) {
	h := newHarness(t)

	result := h.orch.RunJob(context.Background(), h.job())
	assert.NotEmpty(t, result.JobID)

	job := h.job()
	job.ID = "job-fixed"
	result = h.orch.RunJob(context.Background(), job)
	assert.Equal(t, "job-fixed", result.JobID)
}
