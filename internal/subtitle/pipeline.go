package subtitle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"videodl/internal/adapters/localstorage"
	"videodl/internal/core/domain"
	"videodl/internal/core/ports"
)

// MergedSuffix is appended to the video's base name for a merged
// multi-language track.
const MergedSuffix = "merged_subtitles.srt"

// Pipeline runs the subtitle stage: fetch, encoding fix, format
// conversion, markup strip, time offset, merge. Fetching is delegated
// to the extraction engine through the SubtitleFetcher port; all
// post-processing happens here.
type Pipeline struct {
	fetcher ports.SubtitleFetcher
	logger  hclog.Logger
}

// NewPipeline creates a subtitle Pipeline.
func NewPipeline(fetcher ports.SubtitleFetcher, logger hclog.Logger) *Pipeline {
	return &Pipeline{fetcher: fetcher, logger: logger.Named("subtitle")}
}

type processedTrack struct {
	lang string
	path string
	cues []Cue
}

// Run executes the subtitle stage for one job and returns the final
// subtitle file paths. Missing languages are warnings unless the
// options demand all of them; zero available languages is fatal.
//
// All fetching and post-processing happens inside workDir, which must
// be private to the job; finished tracks are then moved into destDir
// under baseName-derived names, so jobs sharing an output directory
// never clobber each other's subtitle files.
func (p *Pipeline) Run(ctx context.Context, url string, opts domain.SubtitleOptions, workDir, destDir, baseName string) ([]string, error) {
	langs := opts.DedupedLanguages()
	if len(langs) == 0 {
		return nil, &domain.SubtitleError{Reason: "no languages requested"}
	}

	tracks, err := p.fetcher.Fetch(ctx, url, opts, workDir)
	if err != nil {
		return nil, err
	}

	if len(tracks) == 0 {
		return nil, &domain.NoSubtitlesFoundError{Languages: langs}
	}
	if missing := missingLanguages(langs, tracks); len(missing) > 0 {
		if opts.RequireAll {
			return nil, &domain.SubtitleError{
				Reason: "required languages unavailable: " + strings.Join(missing, ", ")}
		}
		p.logger.Warn("some requested subtitle languages unavailable",
			"url", url, "missing", strings.Join(missing, ", "))
	}

	processed := make([]processedTrack, 0, len(tracks))
	for _, track := range tracks {
		pt, err := p.processTrack(track, opts)
		if err != nil {
			return nil, err
		}
		processed = append(processed, pt)
	}

	base := localstorage.CleanFilename(baseName)
	if opts.Merge && len(processed) > 1 {
		mergedPath, err := p.merge(processed, workDir)
		if err != nil {
			return nil, err
		}
		final, err := localstorage.SafeMove(mergedPath, filepath.Join(destDir, base+"."+MergedSuffix))
		if err != nil {
			return nil, &domain.SubtitleError{Reason: "failed to place merged file", Err: err}
		}
		return []string{final}, nil
	}

	paths := make([]string, len(processed))
	for i, pt := range processed {
		name := base + "." + pt.lang + filepath.Ext(pt.path)
		final, err := localstorage.SafeMove(pt.path, filepath.Join(destDir, name))
		if err != nil {
			return nil, &domain.SubtitleError{Reason: "failed to place " + name, Err: err}
		}
		paths[i] = final
	}
	return paths, nil
}

// processTrack applies per-file post-processing: encoding fix, VTT to
// SRT conversion, markup strip, time offset.
func (p *Pipeline) processTrack(track domain.SubtitleTrack, opts domain.SubtitleOptions) (processedTrack, error) {
	raw, err := os.ReadFile(track.Path)
	if err != nil {
		return processedTrack{}, &domain.SubtitleError{
			Reason: "failed to read subtitle file " + track.Path, Err: err}
	}

	text := string(raw)
	if opts.FixEncoding {
		text, err = DecodeToUTF8(raw)
		if err != nil {
			return processedTrack{}, &domain.SubtitleError{
				Reason: "failed to fix encoding of " + track.Path, Err: err}
		}
	}

	path := track.Path
	if track.Format == "vtt" {
		if !opts.ConvertToSRT {
			// Leave the track in its native format; only the encoding
			// fix applies.
			if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
				return processedTrack{}, &domain.SubtitleError{
					Reason: "failed to rewrite " + path, Err: err}
			}
			return processedTrack{lang: track.Lang, path: path}, nil
		}
		text, err = VTTToSRT(text)
		if err != nil {
			return processedTrack{}, &domain.SubtitleError{
				Reason: "failed to convert " + path + " to SRT", Err: err}
		}
		newPath := strings.TrimSuffix(path, ".vtt") + ".srt"
		if err := os.WriteFile(newPath, []byte(text), 0o644); err != nil {
			return processedTrack{}, &domain.SubtitleError{
				Reason: "failed to write " + newPath, Err: err}
		}
		os.Remove(path)
		path = newPath
	}

	cues, err := ParseSRT(text)
	if err != nil {
		return processedTrack{}, &domain.SubtitleError{
			Reason: "failed to parse " + path, Err: err}
	}

	if opts.RemoveFormatting {
		cues = StripFormatting(cues)
	}
	if opts.TimeOffset != 0 {
		offset := time.Duration(opts.TimeOffset * float64(time.Second))
		cues = Shift(cues, offset)
	}

	if err := os.WriteFile(path, []byte(FormatSRT(cues)), 0o644); err != nil {
		return processedTrack{}, &domain.SubtitleError{
			Reason: "failed to write " + path, Err: err}
	}
	return processedTrack{lang: track.Lang, path: path, cues: cues}, nil
}

// merge concatenates tracks into one SRT in requested-language order,
// tagging every cue with its language so a merged file stays readable.
// The merged file is written inside the job's work directory; the
// caller moves it into place.
func (p *Pipeline) merge(tracks []processedTrack, workDir string) (string, error) {
	var merged []Cue
	for _, track := range tracks {
		if track.cues == nil {
			// Unconverted VTT tracks carry no parsed cues and cannot
			// participate in a merge.
			p.logger.Warn("skipping unconverted track in merge", "lang", track.lang)
			continue
		}
		for _, cue := range track.cues {
			cue.Text = append([]string{fmt.Sprintf("[%s]", track.lang)}, cue.Text...)
			merged = append(merged, cue)
		}
	}
	if len(merged) == 0 {
		return "", &domain.SubtitleError{Reason: "nothing to merge"}
	}

	path := filepath.Join(workDir, MergedSuffix)
	if err := os.WriteFile(path, []byte(FormatSRT(merged)), 0o644); err != nil {
		return "", &domain.SubtitleError{Reason: "failed to write merged file", Err: err}
	}

	// The per-language sources are folded into the merged file.
	for _, track := range tracks {
		if track.cues != nil {
			os.Remove(track.path)
		}
	}
	return path, nil
}

func missingLanguages(requested []string, tracks []domain.SubtitleTrack) []string {
	have := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		have[t.Lang] = true
	}
	var missing []string
	for _, lang := range requested {
		if !have[lang] {
			missing = append(missing, lang)
		}
	}
	return missing
}
