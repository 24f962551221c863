package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"videodl/internal/config"
	"videodl/internal/core/domain"
)

func runInfo(args []string) int {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	showFormats := fs.Bool("formats", false, "list available formats")
	showSubs := fs.Bool("subs", false, "list available subtitle languages")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: video-dl info [flags] <url>")
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

	if err := domain.ValidateURL(url); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	comps, err := buildComponents(cfg, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	meta, formats, err := comps.extractor.Probe(ctx, domain.JobConfig{URL: url})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("Title:     %s\n", meta.Title)
	fmt.Printf("Uploader:  %s\n", meta.Uploader)
	fmt.Printf("Duration:  %.0fs\n", meta.Duration)
	if meta.Width > 0 {
		fmt.Printf("Best:      %dx%d @ %.4g fps (%s/%s)\n",
			meta.Width, meta.Height, meta.FPS, meta.VCodec, meta.ACodec)
	}
	fmt.Printf("Extractor: %s\n", meta.Extractor)

	if *showFormats {
		fmt.Println("\nFormats:")
		for _, f := range formats {
			fmt.Printf("  %-10s %-5s %-10s %s/%s %s\n",
				f.ID, f.Ext, f.Resolution, f.VCodec, f.ACodec, f.Note)
		}
	}

	if *showSubs {
		manual, auto, err := comps.extractor.ListAvailable(ctx, url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Printf("\nSubtitles:      %s\n", joinOrNone(manual))
		fmt.Printf("Auto captions:  %s\n", joinOrNone(auto))
	}
	return 0
}

func joinOrNone(langs []string) string {
	if len(langs) == 0 {
		return "(none)"
	}
	return strings.Join(langs, ", ")
}
