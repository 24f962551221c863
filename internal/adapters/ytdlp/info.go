package ytdlp

import (
	"encoding/json"

	"videodl/internal/core/domain"
)

// videoInfo mirrors the subset of the engine's JSON dump this adapter
// consumes. The loosely-typed response never leaves this package.
type videoInfo struct {
	Title       string   `json:"title"`
	Duration    float64  `json:"duration"`
	UploadDate  string   `json:"upload_date"`
	Uploader    string   `json:"uploader"`
	ViewCount   int64    `json:"view_count"`
	LikeCount   int64    `json:"like_count"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Categories  []string `json:"categories"`
	Thumbnail   string   `json:"thumbnail"`
	WebpageURL  string   `json:"webpage_url"`
	Extractor   string   `json:"extractor"`
	FormatID    string   `json:"format_id"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	FPS         float64  `json:"fps"`
	VCodec      string   `json:"vcodec"`
	ACodec      string   `json:"acodec"`
	Filesize    int64    `json:"filesize"`

	Filename           string `json:"_filename"`
	RequestedDownloads []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`

	Formats []formatInfo `json:"formats"`

	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
}

type formatInfo struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	Filesize   int64   `json:"filesize"`
	FormatNote string  `json:"format_note"`
}

// metadata converts the dump into the read-only domain type.
func (v *videoInfo) metadata() *domain.VideoMetadata {
	return &domain.VideoMetadata{
		Title:        v.Title,
		Duration:     v.Duration,
		UploadDate:   v.UploadDate,
		Uploader:     v.Uploader,
		ViewCount:    v.ViewCount,
		LikeCount:    v.LikeCount,
		Description:  v.Description,
		Tags:         v.Tags,
		Categories:   v.Categories,
		ThumbnailURL: v.Thumbnail,
		WebpageURL:   v.WebpageURL,
		Extractor:    v.Extractor,
		FormatID:     v.FormatID,
		Width:        v.Width,
		Height:       v.Height,
		FPS:          v.FPS,
		VCodec:       v.VCodec,
		ACodec:       v.ACodec,
		Filesize:     v.Filesize,
	}
}

func (v *videoInfo) normalizedFormats() []domain.Format {
	out := make([]domain.Format, 0, len(v.Formats))
	for _, f := range v.Formats {
		out = append(out, domain.Format{
			ID:         f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			Width:      f.Width,
			Height:     f.Height,
			FPS:        f.FPS,
			VCodec:     f.VCodec,
			ACodec:     f.ACodec,
			Filesize:   f.Filesize,
			Note:       f.FormatNote,
		})
	}
	return out
}

// downloadedFile returns the path the engine wrote the merged output
// to. Newer engine versions report it under requested_downloads.
func (v *videoInfo) downloadedFile() string {
	for _, d := range v.RequestedDownloads {
		if d.Filepath != "" {
			return d.Filepath
		}
	}
	return v.Filename
}

func (v *videoInfo) subtitleLanguages() (manual, auto []string) {
	for lang := range v.Subtitles {
		manual = append(manual, lang)
	}
	for lang := range v.AutomaticCaptions {
		auto = append(auto, lang)
	}
	return manual, auto
}
