package main

import (
	"flag"
	"fmt"
	"os"

	"videodl/internal/config"
)

func runConfig(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: video-dl config {init|validate|show} [flags]")
		return 2
	}
	sub := args[0]

	fs := flag.NewFlagSet("config "+sub, flag.ExitOnError)
	path := fs.String("config", "", "config file path")
	force := fs.Bool("force", false, "overwrite an existing config file (init only)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	target := *path
	if target == "" {
		target = config.DefaultPath()
	}

	switch sub {
	case "init":
		if _, err := os.Stat(target); err == nil && !*force {
			fmt.Fprintf(os.Stderr, "config file already exists: %s (use -force to overwrite)\n", target)
			return 1
		}
		cfg := config.Default()
		if err := cfg.Save(target); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Printf("wrote default config to %s\n", target)
		return 0

	case "validate":
		if _, err := config.Load(*path); err != nil {
			fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
			return 1
		}
		fmt.Println("config is valid")
		return 0

	case "show":
		cfg, err := config.Load(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			return 1
		}
		out, err := cfg.Dump()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Print(out)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "unknown config subcommand: %s\n", sub)
		return 2
	}
}
