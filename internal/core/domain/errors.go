package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError means the caller supplied a bad config value or URL.
// Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExtractionError means the extraction engine failed. Transient
// failures (timeouts, 5xx, rate limiting) are retryable.
type ExtractionError struct {
	URL       string
	Transient bool
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// FormatUnavailableError means the requested quality or format id does
// not exist among the formats the extractor reported. Not retryable.
type FormatUnavailableError struct {
	Requested string
	URL       string
}

func (e *FormatUnavailableError) Error() string {
	return fmt.Sprintf("requested format %q is not available for %s", e.Requested, e.URL)
}

// CodecUnsupportedError means the transcoding engine lacks a requested
// codec. Raised before any transcoding work starts.
type CodecUnsupportedError struct {
	Codec string
}

func (e *CodecUnsupportedError) Error() string {
	return fmt.Sprintf("unsupported codec: %s", e.Codec)
}

// ProcessingError means the transcoding engine failed. Deterministic
// for a given input, so never retried.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("processing failed: %v", e.Err)
	}
	return fmt.Sprintf("processing failed during %s: %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// SubtitleError means the subtitle stage failed. Network-bound fetch
// failures may be transient and retryable; everything else is not.
type SubtitleError struct {
	Reason    string
	Transient bool
	Err       error
}

func (e *SubtitleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("subtitle stage failed: %s: %v", e.Reason, e.Err)
	}
	return "subtitle stage failed: " + e.Reason
}

func (e *SubtitleError) Unwrap() error { return e.Err }

// NoSubtitlesFoundError means zero requested languages were available.
// The only fatal subtitle condition when RequireAll is off.
type NoSubtitlesFoundError struct {
	Languages []string
}

func (e *NoSubtitlesFoundError) Error() string {
	return fmt.Sprintf("no subtitles found for any requested language (%s)",
		strings.Join(e.Languages, ", "))
}

// SecurityError means an output path escaped the configured root or is
// otherwise unsafe. Always fatal, raised before any I/O.
type SecurityError struct {
	Path   string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("unsafe path %q: %s", e.Path, e.Reason)
}

// RetryableExhaustedError wraps the last transient error after the
// configured retry budget is spent.
type RetryableExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryableExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryableExhaustedError) Unwrap() error { return e.Err }

// ErrSkipped marks a job that was never attempted: the batch download
// cap was already reached or the batch was cancelled before it started.
var ErrSkipped = errors.New("job skipped")

// IsRetryable reports whether the orchestrator may retry after err.
// Only transient extraction and subtitle-fetch failures qualify.
func IsRetryable(err error) bool {
	var ex *ExtractionError
	if errors.As(err, &ex) {
		return ex.Transient
	}
	var sub *SubtitleError
	if errors.As(err, &sub) {
		return sub.Transient
	}
	return false
}

// transientMarkers are substrings of engine stderr output that signal
// a failure worth retrying.
var transientMarkers = []string{
	"timed out",
	"timeout",
	"temporary failure",
	"connection reset",
	"connection refused",
	"http error 5",
	"http error 429",
	"too many requests",
	"rate limit",
	"rate-limit",
	"try again",
}

// TransientText reports whether engine output looks like a transient
// network-level failure rather than a deterministic one.
func TransientText(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range transientMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
