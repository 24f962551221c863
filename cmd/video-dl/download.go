package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"videodl/internal/config"
	"videodl/internal/core/domain"
)

// jobFlags holds the flags shared by the download and batch commands.
type jobFlags struct {
	configPath string
	verbose    bool

	output  string
	quality string
	format  string

	proxy        string
	limitRate    string
	cookies      string
	username     string
	password     string
	geoBypass    bool
	retries      int
	skipExisting bool

	process      bool
	crop         string
	resize       string
	rotate       int
	fps          int
	videoCodec   string
	audioCodec   string
	videoBitrate string
	audioBitrate string
	removeAudio  bool
	extractAudio bool
	audioFormat  string
	stabilize    bool
	denoise      bool
	hdrToSDR     bool

	subs           bool
	subLangs       string
	subFormats     string
	autoSubs       bool
	convertSRT     bool
	fixEncoding    bool
	stripMarkup    bool
	mergeSubs      bool
	requireAllSubs bool
	subOffset      float64
}

func (f *jobFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "config file path")
	fs.BoolVar(&f.verbose, "verbose", false, "enable debug logging")

	fs.StringVar(&f.output, "o", "", "output directory")
	fs.StringVar(&f.output, "output", "", "output directory")
	fs.StringVar(&f.quality, "q", "", "video quality (e.g. 720p, 1080p, best)")
	fs.StringVar(&f.quality, "quality", "", "video quality (e.g. 720p, 1080p, best)")
	fs.StringVar(&f.format, "f", "", "format selector passed to the extractor")
	fs.StringVar(&f.format, "format", "", "format selector passed to the extractor")

	fs.StringVar(&f.proxy, "proxy", "", "proxy URL")
	fs.StringVar(&f.limitRate, "limit-rate", "", "download rate limit (e.g. 1M, 500K)")
	fs.StringVar(&f.cookies, "cookies", "", "cookies file path")
	fs.StringVar(&f.username, "username", "", "account username")
	fs.StringVar(&f.password, "password", "", "account password")
	fs.BoolVar(&f.geoBypass, "geo-bypass", false, "bypass geographic restrictions")
	fs.IntVar(&f.retries, "retries", -1, "retry attempts for transient failures")
	fs.BoolVar(&f.skipExisting, "skip-existing", false, "skip downloads whose output file already exists")

	fs.BoolVar(&f.process, "process", false, "enable video processing")
	fs.StringVar(&f.crop, "crop", "", "crop video (width:height:x:y)")
	fs.StringVar(&f.resize, "resize", "", "resize video (widthxheight)")
	fs.IntVar(&f.rotate, "rotate", 0, "rotate video (90, 180 or 270 degrees)")
	fs.IntVar(&f.fps, "fps", 0, "target frames per second")
	fs.StringVar(&f.videoCodec, "video-codec", "", "video codec (e.g. libx264, libx265)")
	fs.StringVar(&f.audioCodec, "audio-codec", "", "audio codec (e.g. aac, mp3)")
	fs.StringVar(&f.videoBitrate, "video-bitrate", "", "video bitrate (e.g. 5M)")
	fs.StringVar(&f.audioBitrate, "audio-bitrate", "", "audio bitrate (e.g. 192k)")
	fs.BoolVar(&f.removeAudio, "remove-audio", false, "remove the audio track")
	fs.BoolVar(&f.extractAudio, "extract-audio", false, "extract audio only")
	fs.StringVar(&f.audioFormat, "audio-format", "mp3", "audio format for extraction")
	fs.BoolVar(&f.stabilize, "stabilize", false, "stabilize shaky video")
	fs.BoolVar(&f.denoise, "denoise", false, "denoise video")
	fs.BoolVar(&f.hdrToSDR, "hdr-to-sdr", false, "tonemap HDR to SDR")

	fs.BoolVar(&f.subs, "subs", false, "download subtitles")
	fs.StringVar(&f.subLangs, "sub-langs", "", "comma-separated subtitle languages")
	fs.StringVar(&f.subFormats, "sub-formats", "", "comma-separated subtitle formats")
	fs.BoolVar(&f.autoSubs, "auto-subs", false, "include auto-generated subtitles")
	fs.BoolVar(&f.convertSRT, "convert-srt", true, "convert subtitles to SRT")
	fs.BoolVar(&f.fixEncoding, "fix-encoding", true, "fix subtitle character encoding")
	fs.BoolVar(&f.stripMarkup, "strip-markup", false, "remove formatting tags from subtitles")
	fs.BoolVar(&f.mergeSubs, "merge-subs", false, "merge subtitle languages into one file")
	fs.BoolVar(&f.requireAllSubs, "require-all-subs", false, "fail when any requested subtitle language is missing")
	fs.Float64Var(&f.subOffset, "sub-offset", 0, "subtitle time offset in seconds")
}

// jobConfig merges config-file/env defaults with the explicitly set
// CLI flags; flags always win.
func (f *jobFlags) jobConfig(url string, cfg config.Config, set map[string]bool) domain.JobConfig {
	job := domain.JobConfig{
		URL:          url,
		OutputDir:    cfg.Download.OutputDir,
		Quality:      cfg.Download.DefaultQuality,
		Proxy:        cfg.Download.Proxy,
		RateLimit:    cfg.Download.RateLimit,
		Retries:      cfg.Download.Retries,
		SkipExisting: cfg.Download.SkipExisting,
	}

	if f.output != "" {
		job.OutputDir = f.output
	}
	if f.quality != "" {
		job.Quality = f.quality
	}
	job.FormatID = f.format
	if f.proxy != "" {
		job.Proxy = f.proxy
	}
	if f.limitRate != "" {
		job.RateLimit = f.limitRate
	}
	job.CookiesFile = f.cookies
	job.Username = f.username
	job.Password = f.password
	job.GeoBypass = f.geoBypass
	if f.retries >= 0 {
		job.Retries = f.retries
	}
	if set["skip-existing"] {
		job.SkipExisting = f.skipExisting
	}

	if f.process {
		job.Processing = &domain.ProcessingOptions{
			Crop:         f.crop,
			Resize:       f.resize,
			Rotate:       f.rotate,
			FPS:          f.fps,
			VideoCodec:   f.videoCodec,
			AudioCodec:   f.audioCodec,
			VideoBitrate: f.videoBitrate,
			AudioBitrate: f.audioBitrate,
			RemoveAudio:  f.removeAudio,
			ExtractAudio: f.extractAudio,
			AudioFormat:  f.audioFormat,
			Stabilize:    f.stabilize,
			Denoise:      f.denoise,
			HDRToSDR:     f.hdrToSDR,
		}
	}

	if f.subs {
		langs := cfg.Subtitles.Languages
		if f.subLangs != "" {
			langs = strings.Split(f.subLangs, ",")
		}
		var formats []string
		if f.subFormats != "" {
			formats = strings.Split(f.subFormats, ",")
		}
		auto := cfg.Subtitles.DownloadAuto || f.autoSubs
		convert := cfg.Subtitles.ConvertToSRT
		if set["convert-srt"] {
			convert = f.convertSRT
		}
		fix := cfg.Subtitles.FixEncoding
		if set["fix-encoding"] {
			fix = f.fixEncoding
		}
		job.Subtitles = &domain.SubtitleOptions{
			Languages:        langs,
			Formats:          formats,
			AutoGenerated:    auto,
			ConvertToSRT:     convert,
			FixEncoding:      fix,
			RemoveFormatting: f.stripMarkup,
			Merge:            f.mergeSubs,
			RequireAll:       f.requireAllSubs,
			TimeOffset:       f.subOffset,
		}
	}

	return job
}

// setFlags records which flags were given explicitly, so they can
// override config-file and environment values.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	var flags jobFlags
	flags.register(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: video-dl download [flags] <url>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	url := fs.Arg(0)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	comps, err := buildComponents(cfg, flags.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	job := flags.jobConfig(url, cfg, setFlags(fs))
	if job.Processing.Enabled() {
		if err := comps.transcoder.CheckInstallation(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
			return 1
		}
	}
	result := comps.orch.RunJob(ctx, job)
	printResult(result)
	if !result.Success {
		return 1
	}
	return 0
}
