package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"videodl/internal/core/domain"
)

// subtitleStem is the base name subtitle files are written under; the
// engine inserts ".<lang>" before the extension.
const subtitleStem = "subs"

// Fetch downloads subtitle tracks for the requested languages into
// destDir. Missing languages are simply absent from the returned
// slice; the pipeline decides whether that is fatal.
func (e *Extractor) Fetch(ctx context.Context, url string, opts domain.SubtitleOptions, destDir string) ([]domain.SubtitleTrack, error) {
	langs := opts.DedupedLanguages()
	if len(langs) == 0 {
		return nil, &domain.SubtitleError{Reason: "no languages requested"}
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{"vtt", "srt"}
	}

	args := []string{
		"--no-warnings", "--no-playlist",
		"--skip-download",
		"--write-subs",
		"--sub-langs", strings.Join(langs, ","),
		"--sub-format", strings.Join(formats, "/"),
		"-o", filepath.Join(destDir, subtitleStem+".%(ext)s"),
	}
	if opts.AutoGenerated {
		args = append(args, "--write-auto-subs")
	}
	args = append(args, url)

	if _, err := e.run(ctx, args, url); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		var ex *domain.ExtractionError
		transient := false
		if errors.As(err, &ex) {
			transient = ex.Transient
		}
		return nil, &domain.SubtitleError{Reason: "subtitle fetch failed", Transient: transient, Err: err}
	}

	// Collect whatever the engine produced, in requested-language order.
	var tracks []domain.SubtitleTrack
	for _, lang := range langs {
		track, ok := e.findTrack(destDir, lang)
		if !ok {
			e.logger.Debug("no subtitle file produced", "lang", lang, "url", url)
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// findTrack locates the downloaded file for a language, preferring vtt
// over srt so downstream conversion has a single source of truth.
func (e *Extractor) findTrack(destDir, lang string) (domain.SubtitleTrack, bool) {
	for _, ext := range []string{"vtt", "srt"} {
		path := filepath.Join(destDir, fmt.Sprintf("%s.%s.%s", subtitleStem, lang, ext))
		if matches, _ := filepath.Glob(path); len(matches) > 0 {
			return domain.SubtitleTrack{Lang: lang, Format: ext, Path: matches[0]}, true
		}
	}
	return domain.SubtitleTrack{}, false
}

// ListAvailable reports the manual and auto-generated subtitle
// languages known for a URL.
func (e *Extractor) ListAvailable(ctx context.Context, url string) ([]string, []string, error) {
	stdout, err := e.run(ctx, []string{"--no-warnings", "--no-playlist", "-J", url}, url)
	if err != nil {
		return nil, nil, err
	}
	info, err := parseInfo(stdout)
	if err != nil {
		return nil, nil, &domain.SubtitleError{Reason: "failed to list subtitles", Err: err}
	}
	manual, auto := info.subtitleLanguages()
	sort.Strings(manual)
	sort.Strings(auto)
	return manual, auto, nil
}
