package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/slides-explainer/internal/apiclient"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	_ = godotenv.Load()
	var (
		api      = flag.String("api", envOr("EXPLAINER_API_URL", "http://localhost:5000"), "explainer HTTP API base URL")
		file     = flag.String("file", "", "document to upload (required)")
		owner    = flag.String("owner", "", "owner identifier (e.g. email)")
		interval = flag.Duration("interval", time.Second, "status poll interval")
		timeout  = flag.Duration("timeout", 30*time.Minute, "give up waiting after this long")
	)
	flag.Parse()

	if *file == "" {
		printError("Error: --file is required\n")
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	c := apiclient.New(*api, logger, apiclient.WithPollInterval(*interval))
	id, err := c.UploadFile(ctx, *file, *owner)
	if err != nil {
		printError("Error uploading file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("File uploaded successfully. UID: %s\n", id)

	v, err := c.Wait(ctx, id)
	if err != nil {
		printError("Error waiting for %s: %v\n", id, err)
		os.Exit(1)
	}

	ts := v.SubmittedAt
	if v.FinishedAt != nil {
		ts = *v.FinishedAt
	}
	explanation := ""
	if v.Explanation != nil {
		explanation = *v.Explanation
	}
	fmt.Printf("File %s:\n", v.State)
	fmt.Printf("  Filename: %s\n", v.SourceName)
	fmt.Printf("  Timestamp: %s\n", ts.Format(time.RFC3339))
	fmt.Printf("  Explanation: %s\n", explanation)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
