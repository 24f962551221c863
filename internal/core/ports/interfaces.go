package ports

import (
	"context"

	"videodl/internal/core/domain"
)

// Extractor defines the contract with the external extraction engine.
// Implementations normalize the engine's loosely-typed output into
// domain types; nothing engine-specific leaks past this boundary.
type Extractor interface {
	// Probe resolves metadata and the available formats for a URL
	// without downloading anything.
	Probe(ctx context.Context, job domain.JobConfig) (*domain.VideoMetadata, []domain.Format, error)

	// Download retrieves the video for the job, writing the final file
	// into job.OutputDir. Must not leave partial files behind on
	// failure (temp-name-then-rename).
	Download(ctx context.Context, job domain.JobConfig) (path string, meta *domain.VideoMetadata, err error)

	// ResolveFilename predicts the output path Download would produce
	// for already-probed metadata, without downloading. Used by the
	// skip-existing cache policy.
	ResolveFilename(meta *domain.VideoMetadata, job domain.JobConfig) string
}

// SubtitleFetcher downloads subtitle tracks for requested languages.
// Fetching is best-effort per language; the pipeline decides whether
// missing languages are fatal.
type SubtitleFetcher interface {
	// Fetch downloads available tracks for the requested languages into
	// destDir and returns one track per language that was available.
	Fetch(ctx context.Context, url string, opts domain.SubtitleOptions, destDir string) ([]domain.SubtitleTrack, error)

	// ListAvailable reports the manual and auto-generated subtitle
	// languages the extractor knows about for a URL.
	ListAvailable(ctx context.Context, url string) (manual, auto []string, err error)
}

// Transcoder defines the contract with the external media-processing
// engine. Process applies the requested operations in the engine's
// fixed order and produces exactly one output file; temp files are
// cleaned up on both success and failure.
type Transcoder interface {
	Process(ctx context.Context, inputPath string, opts domain.ProcessingOptions) (outputPath string, err error)
}

// Storage abstracts the shared output and temp directories.
type Storage interface {
	// EnsureDirs creates the output and temp directories.
	EnsureDirs() error

	// ValidateOutputPath rejects paths that escape the output root.
	// Must be called before any I/O on a caller-supplied path.
	ValidateOutputPath(path string) error

	// TempPath returns a unique temp-file path keyed by job id, so
	// concurrent jobs never collide.
	TempPath(jobID, name string) string

	// CleanupJob removes any temp files left by a job.
	CleanupJob(jobID string) error

	Checksum(path string) (string, error)
	FileSize(path string) (int64, error)

	OutputDir() string
	TempDir() string
}
