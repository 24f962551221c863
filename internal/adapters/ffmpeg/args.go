package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"videodl/internal/core/domain"
)

// tonemapChain converts HDR material to SDR bt709. Tonemapping runs
// before the final encode so the color transform happens exactly once.
var tonemapChain = []string{
	"zscale=t=linear:npl=100",
	"format=gbrp",
	"zscale=p=bt709",
	"tonemap=tonemap=hable",
	"zscale=t=bt709:m=bt709:r=tv",
}

// BuildArgs translates ProcessingOptions into an ffmpeg argument list,
// excluding the output path. The filter order is fixed (crop, resize,
// rotate, fps, HDR-to-SDR tonemap, stabilize, denoise) because each
// later filter depends on the frame geometry and color space produced
// by the earlier ones. The second return value is the output extension
// ("" keeps the input's).
func BuildArgs(inputPath string, opts domain.ProcessingOptions) ([]string, string, error) {
	args := []string{"-y", "-i", inputPath, "-nostats", "-loglevel", "error"}

	if opts.ExtractAudio {
		return buildAudioExtractArgs(args, opts)
	}

	filters, err := videoFilters(opts)
	if err != nil {
		return nil, "", err
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	if opts.VideoCodec != "" {
		args = append(args, "-c:v", opts.VideoCodec)
	}
	if opts.VideoBitrate != "" {
		args = append(args, "-b:v", opts.VideoBitrate)
	}

	switch {
	case opts.RemoveAudio:
		args = append(args, "-an")
	default:
		if opts.AudioCodec != "" {
			args = append(args, "-c:a", opts.AudioCodec)
		}
		if opts.AudioBitrate != "" {
			args = append(args, "-b:a", opts.AudioBitrate)
		}
	}

	args = append(args, "-movflags", "+faststart")
	return args, "", nil
}

// buildAudioExtractArgs produces an audio-only output.
func buildAudioExtractArgs(args []string, opts domain.ProcessingOptions) ([]string, string, error) {
	args = append(args, "-vn")
	if opts.AudioCodec != "" {
		args = append(args, "-c:a", opts.AudioCodec)
	}
	if opts.AudioBitrate != "" {
		args = append(args, "-b:a", opts.AudioBitrate)
	}
	format := opts.AudioFormat
	if format == "" {
		format = "mp3"
	}
	return args, format, nil
}

// videoFilters assembles the -vf chain in the fixed operation order.
func videoFilters(opts domain.ProcessingOptions) ([]string, error) {
	var filters []string

	if opts.Crop != "" {
		w, h, x, y, err := ParseCrop(opts.Crop)
		if err != nil {
			return nil, err
		}
		filters = append(filters, fmt.Sprintf("crop=%d:%d:%d:%d", w, h, x, y))
	}

	if opts.Resize != "" {
		w, h, err := ParseResize(opts.Resize)
		if err != nil {
			return nil, err
		}
		filters = append(filters, fmt.Sprintf("scale=%d:%d", w, h))
	}

	if opts.Rotate != 0 {
		rotation, err := rotateFilter(opts.Rotate)
		if err != nil {
			return nil, err
		}
		filters = append(filters, rotation)
	}

	if opts.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%d", opts.FPS))
	}

	if opts.HDRToSDR {
		filters = append(filters, tonemapChain...)
	}

	if opts.Stabilize {
		filters = append(filters, "deshake")
	}
	if opts.Denoise {
		filters = append(filters, "nlmeans")
	}

	return filters, nil
}

// ParseCrop validates a "width:height:x:y" crop string.
func ParseCrop(s string) (w, h, x, y int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return 0, 0, 0, 0, &domain.ValidationError{Field: "crop",
			Reason: "must be width:height:x:y"}
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, convErr := strconv.Atoi(p)
		if convErr != nil || v < 0 {
			return 0, 0, 0, 0, &domain.ValidationError{Field: "crop",
				Reason: fmt.Sprintf("%q is not a non-negative integer", p)}
		}
		vals[i] = v
	}
	if vals[0] == 0 || vals[1] == 0 {
		return 0, 0, 0, 0, &domain.ValidationError{Field: "crop",
			Reason: "width and height must be positive"}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

// ParseResize validates a "widthxheight" resize string.
func ParseResize(s string) (w, h int, err error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 2 {
		return 0, 0, &domain.ValidationError{Field: "resize",
			Reason: "must be widthxheight"}
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, &domain.ValidationError{Field: "resize",
			Reason: "width and height must be positive integers"}
	}
	return w, h, nil
}

// rotateFilter maps right-angle rotations onto lossless transposes.
func rotateFilter(degrees int) (string, error) {
	switch degrees {
	case 90:
		return "transpose=1", nil
	case 180:
		return "transpose=1,transpose=1", nil
	case 270:
		return "transpose=2", nil
	default:
		return "", &domain.ValidationError{Field: "rotate",
			Reason: "must be 90, 180 or 270 degrees"}
	}
}
