package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/export"
	"github.com/joseph-ayodele/slides-explainer/internal/llm/openai"
	"github.com/joseph-ayodele/slides-explainer/internal/pipeline"
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
		in   = flag.String("in", "", "path to a .pptx or .xlsx document (required)")
		out  = flag.String("out", "", "write the slideN JSON here instead of stdout")
		xlsx = flag.String("xlsx", "", "also write an XLSX workbook to this path")
	)
	flag.Parse()

	if *in == "" {
		printError("Error: --in is required\n")
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		printError("Error: OPENAI_API_KEY is required\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger, *in, *out, *xlsx); err != nil {
		logger.Error("explain failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger, in, out, xlsxPath string) error {
	start := time.Now()

	tmp, err := os.MkdirTemp("", "explain-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	docs, err := storage.NewFSDocumentStore(tmp)
	if err != nil {
		return err
	}
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	id := uuid.New()
	err = docs.Put(ctx, id, filepath.Base(in), f)
	_ = f.Close()
	if err != nil {
		return err
	}

	explainer, err := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return err
	}
	tr := pipeline.NewTransformer(docs, explainer, logger,
		pipeline.WithUnitTimeout(cfg.Worker.UnitTimeout),
		pipeline.WithRateLimit(cfg.LLM.RatePerSec),
	)

	explanations, err := tr.Transform(ctx, id)
	if err != nil {
		return err
	}
	a := &entity.Artifact{JobID: id, Explanations: explanations, CreatedAt: time.Now().UTC()}

	b, err := json.MarshalIndent(a.BySlide(), "", "  ")
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Println(string(b))
	} else if err := os.WriteFile(out, b, 0o644); err != nil {
		return err
	}

	if xlsxPath != "" {
		job := &entity.Job{ID: id, SourceName: filepath.Base(in)}
		wb, err := export.Workbook(job, a)
		if err != nil {
			return err
		}
		if err := os.WriteFile(xlsxPath, wb, 0o644); err != nil {
			return err
		}
	}

	logger.Info("explain.done",
		"source", in,
		"slides", len(explanations),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
