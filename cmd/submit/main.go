package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/slides-explainer/internal/bus"
	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/intake"
	repo "github.com/joseph-ayodele/slides-explainer/internal/repository"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file  = flag.String("file", "", "document to submit")
		dir   = flag.String("dir", "", "directory of documents to submit")
		owner = flag.String("owner", "", "owner identifier (e.g. email)")
	)
	flag.Parse()

	if (*file == "") == (*dir == "") {
		printError("Error: exactly one of --file or --dir is required\n")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)
	if err := repo.Migrate(ctx, db); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}

	docs, _, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}

	var notifier intake.Notifier
	if cfg.NATS.URL != "" {
		bc, err := bus.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			logger.Warn("nats unavailable, workers will pick jobs up on their next poll", "error", err)
		} else {
			defer bc.Close()
			notifier = bc
		}
	}

	svc := intake.NewService(repo.NewJobRepository(db, logger), repo.NewUserRepository(db, logger), docs, notifier, logger)

	start := time.Now()
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			logger.Error("open file", "path", *file, "error", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		id, err := svc.Upload(ctx, filepath.Base(*file), *owner, f)
		if err != nil {
			logger.Error("submit failed", "path", *file, "error", err)
			os.Exit(1)
		}
		fmt.Println(id.String())
		return
	}

	results, stats, err := svc.UploadDirectory(ctx, *dir, *owner)
	if err != nil {
		logger.Error("submit directory failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != "" {
			fmt.Printf("FAIL %s: %s\n", r.Path, r.Err)
			continue
		}
		fmt.Printf("%s %s\n", r.JobID, r.Path)
	}
	logger.Info("submit.done",
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
