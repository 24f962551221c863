package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"videodl/internal/config"
	"videodl/internal/core/domain"
)

func runBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	var flags jobFlags
	flags.register(fs)
	input := fs.String("i", "", "file with one URL per line")
	fs.StringVar(input, "input", "", "file with one URL per line")
	concurrency := fs.Int("concurrency", 0, "max parallel downloads (overrides config)")
	maxDownloads := fs.Int("max-downloads", 0, "stop after this many successful downloads (overrides config)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: video-dl batch -i <url-file> [flags] [url ...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	urls := fs.Args()
	if *input != "" {
		fileURLs, err := readURLFile(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		urls = append(fileURLs, urls...)
	}
	if len(urls) == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	if *concurrency > 0 {
		cfg.Download.MaxConcurrentDownloads = *concurrency
	}
	if *maxDownloads > 0 {
		cfg.Download.MaxDownloads = *maxDownloads
	}

	comps, err := buildComponents(cfg, flags.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	set := setFlags(fs)
	jobs := make([]domain.JobConfig, len(urls))
	for i, url := range urls {
		jobs[i] = flags.jobConfig(url, cfg, set)
	}
	if flags.process {
		if err := comps.transcoder.CheckInstallation(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
			return 1
		}
	}

	batch := comps.scheduler.Run(ctx, jobs)
	printBatch(batch)
	if batch.Failed > 0 {
		return 1
	}
	return 0
}

// readURLFile reads one URL per line; blank lines and # comments are
// ignored.
func readURLFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL file %s: %w", path, err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL file %s: %w", path, err)
	}
	return urls, nil
}

func printBatch(batch domain.BatchResult) {
	fmt.Println("\n=== Batch Summary ===")
	for i, result := range batch.Results {
		status := "FAILED"
		detail := ""
		switch {
		case result.Skipped():
			status = "skipped"
		case result.Success:
			status = "ok"
			detail = result.Path
		default:
			if result.Err != nil {
				detail = result.Err.Error()
			}
		}
		fmt.Printf("%3d. [%s] %s  %s\n", i+1, status, result.URL, detail)
	}
	fmt.Printf("\nSucceeded: %d  Failed: %d  Skipped: %d\n",
		batch.Succeeded, batch.Failed, batch.Skipped)
}
