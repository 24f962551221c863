package subtitle

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	vttTimingPattern = regexp.MustCompile(
		`(\d{2}:)?\d{2}:\d{2}\.\d{3}\s*-->\s*(\d{2}:)?\d{2}:\d{2}\.\d{3}`)
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
	assTagPattern  = regexp.MustCompile(`\{[^}]+\}`)
)

// VTTToSRT converts WebVTT content to SRT: the header and per-cue
// settings are dropped, timestamps switch from dot to comma decimal
// separators, and cues are numbered sequentially.
func VTTToSRT(content string) (string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.Contains(content, "WEBVTT") && !vttTimingPattern.MatchString(content) {
		return "", fmt.Errorf("not a WebVTT document")
	}

	var cues []Cue
	blocks := strings.Split(content, "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")

		timingIdx := -1
		for i, line := range lines {
			if vttTimingPattern.MatchString(line) {
				timingIdx = i
				break
			}
		}
		if timingIdx < 0 {
			continue // header, NOTE or STYLE block
		}

		timing := vttTimingPattern.FindString(lines[timingIdx])
		timing = strings.ReplaceAll(timing, ".", ",")
		parts := strings.Split(timing, "-->")
		start := normalizeVTTTimestamp(strings.TrimSpace(parts[0]))
		end := normalizeVTTTimestamp(strings.TrimSpace(parts[1]))

		m := timingPattern.FindStringSubmatch(start + " --> " + end)
		if m == nil {
			continue
		}
		cues = append(cues, Cue{
			Start: timestampFromParts(m[1], m[2], m[3], m[4]),
			End:   timestampFromParts(m[5], m[6], m[7], m[8]),
			Text:  lines[timingIdx+1:],
		})
	}

	if len(cues) == 0 {
		return "", fmt.Errorf("no cues found in WebVTT document")
	}
	return FormatSRT(cues), nil
}

// normalizeVTTTimestamp pads mm:ss,mmm timestamps to hh:mm:ss,mmm.
func normalizeVTTTimestamp(ts string) string {
	if strings.Count(ts, ":") == 1 {
		return "00:" + ts
	}
	return ts
}

// StripFormatting removes HTML-style tags and SSA/ASS override blocks
// from cue text.
func StripFormatting(cues []Cue) []Cue {
	out := make([]Cue, len(cues))
	for i, cue := range cues {
		text := make([]string, 0, len(cue.Text))
		for _, line := range cue.Text {
			line = htmlTagPattern.ReplaceAllString(line, "")
			line = assTagPattern.ReplaceAllString(line, "")
			text = append(text, line)
		}
		cue.Text = text
		out[i] = cue
	}
	return out
}
