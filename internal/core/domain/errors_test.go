package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient extraction", &ExtractionError{URL: "u", Transient: true, Err: errors.New("timed out")}, true},
		{"deterministic extraction", &ExtractionError{URL: "u", Err: errors.New("bad url")}, false},
		{"transient subtitle", &SubtitleError{Reason: "fetch", Transient: true}, true},
		{"subtitle post-processing", &SubtitleError{Reason: "parse"}, false},
		{"validation", &ValidationError{Field: "url", Reason: "empty"}, false},
		{"codec", &CodecUnsupportedError{Codec: "libfoo"}, false},
		{"processing", &ProcessingError{Op: "transcode", Err: errors.New("boom")}, false},
		{"format unavailable", &FormatUnavailableError{Requested: "137"}, false},
		{"security", &SecurityError{Path: "../x", Reason: "escape"}, false},
		{"wrapped transient", fmt.Errorf("stage: %w", &ExtractionError{Transient: true, Err: errors.New("x")}), true},
		{"plain error", errors.New("whatever"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTransientText(t *testing.T) {
	assert.True(t, TransientText("ERROR: HTTP Error 503: Service Unavailable"))
	assert.True(t, TransientText("read: connection reset by peer"))
	assert.True(t, TransientText("HTTP Error 429: Too Many Requests"))
	assert.True(t, TransientText("socket timed out"))
	assert.False(t, TransientText("ERROR: Unsupported URL: ftp://example.com"))
	assert.False(t, TransientText("Requested format is not available"))
}

func TestErrorUnwrapping(t *testing.T) {
	inner := errors.New("engine said no")
	wrapped := &RetryableExhaustedError{Attempts: 3, Err: &ExtractionError{URL: "u", Transient: true, Err: inner}}

	var ex *ExtractionError
	assert.True(t, errors.As(wrapped, &ex))
	assert.True(t, errors.Is(wrapped, inner))
}
