package localstorage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"videodl/internal/core/domain"
)

// LocalStorage implements ports.Storage on the local filesystem. The
// output and temp directories are shared across workers; per-job temp
// names keep concurrent jobs from colliding.
type LocalStorage struct {
	outputDir string
	tempDir   string
}

// New creates a LocalStorage rooted at the given directories.
func New(outputDir, tempDir string) *LocalStorage {
	return &LocalStorage{outputDir: outputDir, tempDir: tempDir}
}

// EnsureDirs creates the output and temp directories.
func (s *LocalStorage) EnsureDirs() error {
	for _, dir := range []string{s.outputDir, s.tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ValidateOutputPath rejects paths that escape the output root. Called
// before any I/O on caller-supplied paths.
func (s *LocalStorage) ValidateOutputPath(path string) error {
	if path == "" {
		return &domain.SecurityError{Path: path, Reason: "empty path"}
	}
	if strings.ContainsRune(path, '\x00') {
		return &domain.SecurityError{Path: path, Reason: "contains NUL byte"}
	}
	root, err := filepath.Abs(s.outputDir)
	if err != nil {
		return &domain.SecurityError{Path: path, Reason: "output root cannot be resolved"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return &domain.SecurityError{Path: path, Reason: "cannot be resolved"}
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return &domain.SecurityError{Path: path, Reason: "escapes output directory"}
	}
	return nil
}

// TempPath returns a unique temp path for a job-scoped artifact.
func (s *LocalStorage) TempPath(jobID, name string) string {
	return filepath.Join(s.tempDir, jobID+"-"+CleanFilename(name))
}

// CleanupJob removes temp files and work directories left behind by a
// job.
func (s *LocalStorage) CleanupJob(jobID string) error {
	matches, err := filepath.Glob(filepath.Join(s.tempDir, jobID+"-*"))
	if err != nil {
		return fmt.Errorf("failed to list temp files for job %s: %w", jobID, err)
	}
	for _, path := range matches {
		// Matches include per-job work directories, not just files.
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove temp file %s: %w", path, err)
		}
	}
	return nil
}

// PruneTemp removes temp files older than maxAge, then oldest-first
// until the temp directory is within maxSize. A zero value disables
// the corresponding bound.
func (s *LocalStorage) PruneTemp(maxAge time.Duration, maxSize int64) error {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read temp directory %s: %w", s.tempDir, err)
	}

	type tempFile struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []tempFile
	var total int64
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(s.tempDir, entry.Name())
		if maxAge > 0 && info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove stale temp file %s: %w", path, err)
			}
			continue
		}
		files = append(files, tempFile{path: path, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}

	if maxSize <= 0 || total <= maxSize {
		return nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for _, f := range files {
		if total <= maxSize {
			break
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove temp file %s: %w", f.path, err)
		}
		total -= f.size
	}
	return nil
}

// Checksum returns the sha256 hex digest of a file.
func (s *LocalStorage) Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for checksum: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileSize returns the size of a file in bytes.
func (s *LocalStorage) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// OutputDir returns the output root.
func (s *LocalStorage) OutputDir() string { return s.outputDir }

// TempDir returns the temp root.
func (s *LocalStorage) TempDir() string { return s.tempDir }

// CleanFilename replaces characters that are invalid in filenames and
// caps the length.
func CleanFilename(name string) string {
	const invalid = `<>:"/\|?*`
	out := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if len(out) > 255 {
		out = out[:255]
	}
	return out
}

// SafeMove renames src to dst, picking a unique destination name if
// dst already exists. Falls back to copy+remove across filesystems.
func SafeMove(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	dst = UniquePath(dst)
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	// Rename fails across devices; copy instead.
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", dst, err)
	}
	os.Remove(src)
	return dst, nil
}

// UniquePath returns path, or path with a numeric suffix if a file
// already exists there.
func UniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
