package domain

import (
	"strings"
	"time"
)

// JobState tracks a job through its pipeline stages. Transitions are
// monotone: a job never re-enters an earlier stage.
type JobState string

const (
	StatePending            JobState = "pending"
	StateExtracting         JobState = "extracting"
	StateTranscoding        JobState = "transcoding"
	StateSubtitleProcessing JobState = "subtitle_processing"
	StateCompleted          JobState = "completed"
	StateFailed             JobState = "failed"
	StateSkipped            JobState = "skipped"
)

// Terminal reports whether the state ends a job's lifecycle.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSkipped
}

// JobConfig holds everything needed to run a single download job.
// Immutable once the job starts.
type JobConfig struct {
	ID        string `json:"job_id"`
	URL       string `json:"url"`
	OutputDir string `json:"output_dir"`

	// Quality is "best" or a height like "1080p". FormatID, when set,
	// is a yt-dlp format selector passed through uninterpreted and
	// takes precedence over Quality.
	Quality  string `json:"quality"`
	FormatID string `json:"format_id,omitempty"`

	Processing *ProcessingOptions `json:"processing,omitempty"`
	Subtitles  *SubtitleOptions   `json:"subtitles,omitempty"`

	Proxy       string `json:"proxy,omitempty"`
	RateLimit   string `json:"rate_limit,omitempty"` // e.g. "1M", "500K"
	CookiesFile string `json:"cookies_file,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	GeoBypass   bool   `json:"geo_bypass,omitempty"`

	// Retries is the total number of attempts for retryable stages.
	Retries int `json:"retries"`

	// SkipExisting enables the skip-if-already-downloaded cache policy:
	// when the resolved output file already exists and is non-empty the
	// job completes without re-downloading.
	SkipExisting bool `json:"skip_existing,omitempty"`
}

// ProcessingOptions is a sparse option set for the transcoder. Unset
// fields mean "leave unchanged".
type ProcessingOptions struct {
	Crop   string `json:"crop,omitempty"`   // "width:height:x:y"
	Resize string `json:"resize,omitempty"` // "widthxheight"
	Rotate int    `json:"rotate,omitempty"` // 90, 180 or 270
	FPS    int    `json:"fps,omitempty"`

	VideoCodec   string `json:"video_codec,omitempty"`
	AudioCodec   string `json:"audio_codec,omitempty"`
	VideoBitrate string `json:"video_bitrate,omitempty"` // e.g. "5M"
	AudioBitrate string `json:"audio_bitrate,omitempty"` // e.g. "192k"

	RemoveAudio  bool   `json:"remove_audio,omitempty"`
	ExtractAudio bool   `json:"extract_audio,omitempty"`
	AudioFormat  string `json:"audio_format,omitempty"` // used with ExtractAudio

	Stabilize bool `json:"stabilize,omitempty"`
	Denoise   bool `json:"denoise,omitempty"`
	HDRToSDR  bool `json:"hdr_to_sdr,omitempty"`
}

// Enabled reports whether any processing operation is requested.
func (p *ProcessingOptions) Enabled() bool {
	if p == nil {
		return false
	}
	return p.Crop != "" || p.Resize != "" || p.Rotate != 0 || p.FPS != 0 ||
		p.VideoCodec != "" || p.AudioCodec != "" ||
		p.VideoBitrate != "" || p.AudioBitrate != "" ||
		p.RemoveAudio || p.ExtractAudio ||
		p.Stabilize || p.Denoise || p.HDRToSDR
}

// SubtitleOptions configures the subtitle stage of a job.
type SubtitleOptions struct {
	// Languages is the requested language list; merge output follows
	// this order. Duplicates are ignored.
	Languages []string `json:"languages"`
	Formats   []string `json:"formats,omitempty"` // preferred fetch formats, e.g. vtt, srt

	AutoGenerated    bool `json:"auto_generated,omitempty"`
	ConvertToSRT     bool `json:"convert_to_srt,omitempty"`
	FixEncoding      bool `json:"fix_encoding,omitempty"`
	RemoveFormatting bool `json:"remove_formatting,omitempty"`
	Merge            bool `json:"merge,omitempty"`

	// RequireAll makes a missing requested language fatal instead of a
	// partial-success warning.
	RequireAll bool `json:"require_all,omitempty"`

	// TimeOffset shifts every cue by this many seconds (may be negative).
	TimeOffset float64 `json:"time_offset,omitempty"`
}

// DedupedLanguages returns Languages with duplicates removed, first
// occurrence wins, order preserved.
func (s *SubtitleOptions) DedupedLanguages() []string {
	seen := make(map[string]bool, len(s.Languages))
	out := make([]string, 0, len(s.Languages))
	for _, lang := range s.Languages {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// Enabled reports whether the subtitle stage should run at all.
func (s *SubtitleOptions) Enabled() bool {
	return s != nil && len(s.Languages) > 0
}

// VideoMetadata holds extractor-reported attributes. Read-only; it is
// normalized at the extractor adapter boundary and never mutated by
// later stages.
type VideoMetadata struct {
	Title        string   `json:"title"`
	Duration     float64  `json:"duration,omitempty"` // seconds
	UploadDate   string   `json:"upload_date,omitempty"`
	Uploader     string   `json:"uploader,omitempty"`
	ViewCount    int64    `json:"view_count,omitempty"`
	LikeCount    int64    `json:"like_count,omitempty"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	WebpageURL   string   `json:"webpage_url"`
	Extractor    string   `json:"extractor"`
	FormatID     string   `json:"format_id,omitempty"`
	Width        int      `json:"width,omitempty"`
	Height       int      `json:"height,omitempty"`
	FPS          float64  `json:"fps,omitempty"`
	VCodec       string   `json:"vcodec,omitempty"`
	ACodec       string   `json:"acodec,omitempty"`
	Filesize     int64    `json:"filesize,omitempty"`
}

// Format is one downloadable stream format reported by the extractor.
type Format struct {
	ID         string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	VCodec     string  `json:"vcodec,omitempty"`
	ACodec     string  `json:"acodec,omitempty"`
	Filesize   int64   `json:"filesize,omitempty"`
	Note       string  `json:"format_note,omitempty"`
}

// SubtitleTrack is one fetched subtitle file for a single language.
type SubtitleTrack struct {
	Lang   string `json:"lang"`
	Format string `json:"format"` // "vtt" or "srt"
	Path   string `json:"path"`
}

// DownloadResult is the outcome of one job. Exactly one of Path and
// Err is set: Path iff Success, Err otherwise.
type DownloadResult struct {
	JobID string   `json:"job_id"`
	URL   string   `json:"url"`
	State JobState `json:"state"`

	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Err     error  `json:"-"`

	Metadata      *VideoMetadata `json:"metadata,omitempty"`
	SubtitlePaths []string       `json:"subtitle_paths,omitempty"`

	Elapsed  time.Duration `json:"elapsed"`
	Size     int64         `json:"size,omitempty"`
	Checksum string        `json:"checksum,omitempty"`
}

// Skipped reports whether the job was never attempted (batch cap or
// cancellation before start).
func (r DownloadResult) Skipped() bool {
	return r.State == StateSkipped
}

// BatchResult aggregates per-job results in the input order of the
// batch, regardless of completion order.
type BatchResult struct {
	Results   []DownloadResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
}

// Tally recomputes the counters from Results.
func (b *BatchResult) Tally() {
	b.Succeeded, b.Failed, b.Skipped = 0, 0, 0
	for _, r := range b.Results {
		switch {
		case r.Skipped():
			b.Skipped++
		case r.Success:
			b.Succeeded++
		default:
			b.Failed++
		}
	}
}
