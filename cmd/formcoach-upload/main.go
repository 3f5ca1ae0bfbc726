package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/storage"
	"github.com/claude/formcoach/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	backendURL := flag.String("backend", "http://localhost:5000", "analysis backend URL")
	videoPath := flag.String("path", "", "directory of videos to analyze")
	mode := flag.String("mode", models.DefaultMode, "analysis mode (Beginner or Pro)")
	exercise := flag.String("exercise", string(models.Squat), "exercise type (squat or plank)")
	dryRun := flag.Bool("dry-run", false, "list videos that would be uploaded without sending them")
	downloadDir := flag.String("download", "", "directory to save processed videos into")
	stateDir := flag.String("state-dir", "", "state database directory (default ~/.formcoach-upload)")
	databaseURL := flag.String("database-url", "", "PostgreSQL URL of the analysis journal (optional)")
	verbose := flag.Bool("v", false, "debug logging")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("formcoach-upload", Version)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))

	if *videoPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: formcoach-upload -path <dir> [-backend URL] [-mode Beginner|Pro] [-exercise squat|plank] [-dry-run] [-download dir]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ex, err := models.ParseExerciseType(*exercise)
	if err != nil {
		log.Error("invalid exercise", "exercise", *exercise, "error", err)
		os.Exit(1)
	}

	info, err := os.Stat(*videoPath)
	if err != nil || !info.IsDir() {
		log.Error("video directory not found", "path", *videoPath)
		os.Exit(1)
	}

	// Open state database
	dir := *stateDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(homeDir, ".formcoach-upload")
	}
	state, err := upload.OpenStateDB(dir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := upload.Options{
		Mode:        *mode,
		Exercise:    ex,
		DryRun:      *dryRun,
		DownloadDir: *downloadDir,
	}

	if *databaseURL != "" && !*dryRun {
		db, err := storage.New(ctx, *databaseURL)
		if err != nil {
			log.Error("failed to connect journal database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		opts.Journal = db
	}

	// Client is only needed outside dry-run mode
	var api upload.Analyzer
	if !*dryRun {
		api = fitness.NewClient(strings.TrimRight(*backendURL, "/"), 10*time.Minute, log)
	} else {
		log.Info("DRY RUN mode: videos will be listed but not sent")
	}

	stats, err := upload.New(api, state, *videoPath, opts, log).Run(ctx)
	if err != nil {
		log.Error("upload failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("upload complete")
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Videos found:     %d\n", stats.FilesTotal)
	fmt.Printf("  Videos analyzed:  %d\n", stats.FilesUploaded)
	fmt.Printf("  Videos skipped:   %d (already analyzed)\n", stats.FilesSkipped)
	fmt.Printf("  Videos errored:   %d\n", stats.FilesErrored)
	fmt.Printf("  Downloads:        %d\n", stats.FilesDownloaded)
	fmt.Printf("  Other files:      %d (not video)\n", stats.FilesIgnored)
	fmt.Println()
}
