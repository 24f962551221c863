package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"videodl/internal/core/domain"
)

// ProbeInfo is the subset of ffprobe output the tool uses.
type ProbeInfo struct {
	Duration float64
	Width    int
	Height   int
	FPS      float64
	VCodec   string
	ACodec   string
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe inspects a media file with ffprobe.
func (t *Transcoder) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, &domain.ProcessingError{Op: "probe",
			Err: fmt.Errorf("ffprobe failed for %s: %w", path, err)}
	}

	var raw probeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &domain.ProcessingError{Op: "probe",
			Err: fmt.Errorf("failed to parse ffprobe output: %w", err)}
	}
	if len(raw.Streams) == 0 {
		return nil, &domain.ProcessingError{Op: "probe",
			Err: fmt.Errorf("no streams found in %s", path)}
	}

	info := &ProbeInfo{}
	info.Duration, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if info.VCodec == "" {
				info.VCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
				info.FPS = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			if info.ACodec == "" {
				info.ACodec = s.CodecName
			}
		}
	}
	return info, nil
}

// parseFrameRate converts an "num/den" rational to frames per second.
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, errN := strconv.ParseFloat(parts[0], 64)
	den, errD := strconv.ParseFloat(parts[1], 64)
	if errN != nil || errD != nil || den == 0 {
		return 0
	}
	return num / den
}
