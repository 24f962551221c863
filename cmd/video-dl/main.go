package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"videodl/internal/adapters/ffmpeg"
	"videodl/internal/adapters/localstorage"
	"videodl/internal/adapters/ytdlp"
	"videodl/internal/config"
	"videodl/internal/core/domain"
	"videodl/internal/service"
	"videodl/internal/subtitle"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// A .env file is optional; environment variables may be set manually.
	_ = godotenv.Load()

	if len(args) < 1 {
		usage()
		return 2
	}

	switch args[0] {
	case "download":
		return runDownload(args[1:])
	case "batch":
		return runBatch(args[1:])
	case "info":
		return runInfo(args[1:])
	case "config":
		return runConfig(args[1:])
	case "-h", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: video-dl <command> [flags]

Commands:
  download <url>    Download and optionally process a single video
  batch             Download a list of URLs with bounded concurrency
  info <url>        Show metadata, formats and subtitle languages
  config init       Write the default config file
  config validate   Check the config file
  config show       Print the effective configuration

Run "video-dl <command> -h" for command flags.`)
}

// newLogger builds the application logger; --verbose switches to debug.
func newLogger(verbose bool) hclog.Logger {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:  "video-dl",
		Level: level,
	})
}

// components wires the adapters and services from the effective config.
type components struct {
	storage    *localstorage.LocalStorage
	extractor  *ytdlp.Extractor
	transcoder *ffmpeg.Transcoder
	orch       *service.Orchestrator
	scheduler  *service.Scheduler
	logger     hclog.Logger
}

func buildComponents(cfg config.Config, verbose bool) (*components, error) {
	logger := newLogger(verbose)

	storage := localstorage.New(cfg.Download.OutputDir, cfg.Download.TempDir)
	if err := storage.EnsureDirs(); err != nil {
		return nil, err
	}
	pruneTemp(storage, cfg, logger)
	if err := checkFreeSpace(storage, cfg); err != nil {
		return nil, err
	}

	extractor := ytdlp.New(cfg.Download.ExtractorPath, storage.TempDir(), logger)
	transcoder := ffmpeg.New(cfg.Processing.FFmpegPath, cfg.Processing.FFprobePath, logger)
	pipeline := subtitle.NewPipeline(extractor, logger)

	orch := service.NewOrchestrator(extractor, transcoder, pipeline, storage, logger)
	scheduler := service.NewScheduler(orch,
		cfg.Download.MaxConcurrentDownloads,
		cfg.Download.MaxDownloads,
		logger)

	return &components{
		storage:    storage,
		extractor:  extractor,
		transcoder: transcoder,
		orch:       orch,
		scheduler:  scheduler,
		logger:     logger,
	}, nil
}

// pruneTemp enforces the storage retention policy on the temp dir.
// Best effort; a failed prune never blocks a run.
func pruneTemp(storage *localstorage.LocalStorage, cfg config.Config, logger hclog.Logger) {
	var maxAge time.Duration
	if days := cfg.Storage.CleanupAfterDays; days > 0 {
		maxAge = time.Duration(days) * 24 * time.Hour
	}
	var maxSize int64
	if cfg.Storage.MaxTempSize != "" {
		maxSize, _ = config.ParseSize(cfg.Storage.MaxTempSize)
	}
	if maxAge == 0 && maxSize == 0 {
		return
	}
	if err := storage.PruneTemp(maxAge, maxSize); err != nil {
		logger.Warn("temp directory prune failed", "error", err)
	}
}

// checkFreeSpace fails startup when the output filesystem is below the
// configured minimum. Zero free-space readings mean the platform
// cannot report it and the check is skipped.
func checkFreeSpace(storage *localstorage.LocalStorage, cfg config.Config) error {
	if cfg.Storage.MinFreeSpace == "" {
		return nil
	}
	min, err := config.ParseSize(cfg.Storage.MinFreeSpace)
	if err != nil || min <= 0 {
		return nil
	}
	free, err := storage.FreeSpace()
	if err != nil || free == 0 {
		return nil
	}
	if free < min {
		return fmt.Errorf("only %.1fGB free on %s, %.1fGB required",
			float64(free)/(1<<30), storage.OutputDir(), float64(min)/(1<<30))
	}
	return nil
}

// signalContext cancels on SIGINT/SIGTERM so in-flight engine
// processes are terminated and queued batch jobs are skipped.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nreceived interrupt, cancelling...")
		cancel()
	}()
	return ctx, cancel
}

func printResult(result domain.DownloadResult) {
	fmt.Println("\n=== Job Summary ===")
	fmt.Printf("Job ID:    %s\n", result.JobID)
	fmt.Printf("URL:       %s\n", result.URL)
	fmt.Printf("Success:   %t\n", result.Success)
	if result.Success {
		fmt.Printf("File:      %s\n", result.Path)
		fmt.Printf("Size:      %.1fMB\n", float64(result.Size)/(1<<20))
		fmt.Printf("Checksum:  %s\n", result.Checksum)
		fmt.Printf("Elapsed:   %s\n", result.Elapsed.Round(10*time.Millisecond))
		for _, sub := range result.SubtitlePaths {
			fmt.Printf("Subtitle:  %s\n", sub)
		}
	} else if result.Err != nil {
		fmt.Printf("Error:     %v\n", result.Err)
	}
	if result.Metadata != nil {
		fmt.Printf("Title:     %s\n", result.Metadata.Title)
	}
}
