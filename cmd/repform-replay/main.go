package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/claude/repform/internal/config"
	"github.com/claude/repform/internal/progression"
	"github.com/claude/repform/internal/replay"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "optional config file with pipeline, exercise and feedback overrides")
	exerciseName := flag.String("exercise", "", "exercise the recordings show (required)")
	outDir := flag.String("out", ".", "directory for session files")
	progressionPath := flag.String("progression", "", "progression state file (default <out>/progression.json)")
	serverURL := flag.String("server", "", "RepForm server URL to upload sessions to")
	apiKey := flag.String("api-key", os.Getenv("REPFORM_AUTH_API_KEY"), "API key for uploads")
	dryRun := flag.Bool("dry-run", false, "score recordings without writing files or uploading")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("repform-replay", Version)
		return
	}

	if *exerciseName == "" || flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: repform-replay -exercise <name> [-out dir] [-server URL] [-dry-run] <recording|dir>...\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *serverURL != "" && *apiKey == "" {
		fmt.Fprintf(os.Stderr, "Error: -api-key (or REPFORM_AUTH_API_KEY) is required with -server\n")
		os.Exit(1)
	}

	cfg, err := config.LoadAnalysis(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	var state *replay.StateDB
	if !*dryRun {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		state, err = replay.OpenStateDB(filepath.Join(homeDir, ".repform-replay"))
		if err != nil {
			log.Error("failed to open state database", "error", err)
			os.Exit(1)
		}
		defer state.Close()
	}

	var client *replay.Client
	if *serverURL != "" && !*dryRun {
		client = replay.NewClient(*serverURL, *apiKey)
	}

	if *dryRun {
		log.Info("DRY RUN mode: recordings will be scored but nothing is written")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := replay.New(cfg, client, state, replay.Options{
		Exercise:        *exerciseName,
		OutDir:          *outDir,
		ProgressionPath: *progressionPath,
		DryRun:          *dryRun,
	}, log)
	stats, err := runner.Run(ctx, flag.Args())
	if err != nil {
		log.Error("replay failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	if stats.FilesErrored > 0 {
		os.Exit(1)
	}
}

func printStats(stats *replay.Stats) {
	fmt.Println()
	fmt.Println("=== Replay Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files replayed:   %d\n", stats.FilesReplayed)
	fmt.Printf("  Files skipped:    %d (already counted)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Reps scored:      %d\n", stats.RepsScored)
	fmt.Printf("  Sessions sent:    %d\n", stats.SessionsUploaded)
	fmt.Printf("  Duplicates:       %d\n", stats.Duplicates)

	if len(stats.Decisions) > 0 {
		fmt.Printf("\n  Progression decisions:\n")
		actions := make([]string, 0, len(stats.Decisions))
		for a := range stats.Decisions {
			actions = append(actions, string(a))
		}
		sort.Strings(actions)
		for _, a := range actions {
			fmt.Printf("    - %s: %d\n", a, stats.Decisions[progression.Action(a)])
		}
	}
	fmt.Println()
}
