package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cue is one subtitle block: a time range and its text lines.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  []string
}

var timingPattern = regexp.MustCompile(
	`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// ParseSRT parses SRT content into cues. Index lines are optional and
// renumbered on output, so slightly malformed files still parse.
func ParseSRT(content string) ([]Cue, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var cues []Cue

	blocks := strings.Split(content, "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || lines[0] == "" {
			continue
		}

		i := 0
		// Optional numeric index line.
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
			i = 1
		}
		if i >= len(lines) {
			continue
		}

		m := timingPattern.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		start := timestampFromParts(m[1], m[2], m[3], m[4])
		end := timestampFromParts(m[5], m[6], m[7], m[8])

		var text []string
		for _, line := range lines[i+1:] {
			text = append(text, line)
		}
		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: end, Text: text})
	}

	if len(cues) == 0 {
		return nil, fmt.Errorf("no cues found")
	}
	return cues, nil
}

// FormatSRT renders cues as SRT with sequential numbering and
// Unix-style line endings.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(cue.Start), formatTimestamp(cue.End))
		for _, line := range cue.Text {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Shift moves every cue by offset, clamping at zero so negative
// offsets never produce negative timestamps.
func Shift(cues []Cue, offset time.Duration) []Cue {
	out := make([]Cue, len(cues))
	for i, cue := range cues {
		cue.Start = clampZero(cue.Start + offset)
		cue.End = clampZero(cue.End + offset)
		out[i] = cue
	}
	return out
}

func clampZero(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func timestampFromParts(h, m, s, ms string) time.Duration {
	hi, _ := strconv.Atoi(h)
	mi, _ := strconv.Atoi(m)
	si, _ := strconv.Atoi(s)
	msi, _ := strconv.Atoi(ms)
	return time.Duration(hi)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(si)*time.Second +
		time.Duration(msi)*time.Millisecond
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
