package ytdlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"videodl/internal/core/domain"
)

// bestFormatSpec prefers an h264 mp4 with m4a audio so outputs play
// everywhere without remuxing.
const bestFormatSpec = "bestvideo[ext=mp4][vcodec^=avc]+bestaudio[ext=m4a]/best[ext=mp4][vcodec^=avc]/best"

var (
	qualityPattern = regexp.MustCompile(`^(\d+)p?$`)
	sizePattern    = regexp.MustCompile(`^([\d.]+)([KMG])?$`)
)

// buildFormatSpec translates the job's quality setting into the
// engine's format selector grammar. An explicit FormatID is passed
// through uninterpreted.
func buildFormatSpec(job domain.JobConfig) (string, error) {
	if job.FormatID != "" {
		return job.FormatID, nil
	}
	quality := strings.TrimSpace(job.Quality)
	if quality == "" || quality == "best" {
		return bestFormatSpec, nil
	}
	m := qualityPattern.FindStringSubmatch(quality)
	if m == nil {
		return "", &domain.ValidationError{Field: "quality",
			Reason: fmt.Sprintf("%q is not \"best\" or a height like \"1080p\"", quality)}
	}
	height := m[1]
	return fmt.Sprintf(
		"bestvideo[height<=%s][ext=mp4][vcodec^=avc]+bestaudio[ext=m4a]/best[height<=%s][ext=mp4][vcodec^=avc]/best",
		height, height), nil
}

// parseSizeString converts a human size like "1M" or "500K" to bytes.
func parseSizeString(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid size format: %q", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %q", m[1])
	}
	unit := int64(1)
	switch m[2] {
	case "K":
		unit = 1 << 10
	case "M":
		unit = 1 << 20
	case "G":
		unit = 1 << 30
	}
	return int64(value * float64(unit)), nil
}
