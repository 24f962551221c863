package domain

import (
	"net/url"
	"regexp"
)

// maxURLLength is the common practical URL length limit.
const maxURLLength = 2083

var formatIDPattern = regexp.MustCompile(`^[\w\-+\[\]<>=/,. ]+$`)

// ValidateURL checks that a job URL is a well-formed http(s) URL.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Reason: "cannot be empty"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{Field: "url", Reason: "exceeds maximum length"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "url", Reason: "malformed: " + err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "url", Reason: "missing host"}
	}
	if u.Path == "" && u.RawQuery == "" && u.Fragment == "" {
		return &ValidationError{Field: "url", Reason: "missing path or query"}
	}
	return nil
}

// Validate checks a JobConfig before the job starts. Only static
// checks; path safety against the storage root is the storage
// adapter's concern.
func (c JobConfig) Validate() error {
	if err := ValidateURL(c.URL); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return &ValidationError{Field: "output_dir", Reason: "cannot be empty"}
	}
	if c.FormatID != "" && !formatIDPattern.MatchString(c.FormatID) {
		return &ValidationError{Field: "format", Reason: "contains invalid characters"}
	}
	if c.Retries < 0 {
		return &ValidationError{Field: "retries", Reason: "must not be negative"}
	}
	if p := c.Processing; p != nil {
		if p.Rotate != 0 && p.Rotate != 90 && p.Rotate != 180 && p.Rotate != 270 {
			return &ValidationError{Field: "rotate", Reason: "must be 90, 180 or 270 degrees"}
		}
		if p.FPS < 0 {
			return &ValidationError{Field: "fps", Reason: "must not be negative"}
		}
	}
	return nil
}
