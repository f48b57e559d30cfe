package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/slides-explainer/internal/async"
	"github.com/joseph-ayodele/slides-explainer/internal/bus"
	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/export"
	"github.com/joseph-ayodele/slides-explainer/internal/intake"
	"github.com/joseph-ayodele/slides-explainer/internal/llm/openai"
	"github.com/joseph-ayodele/slides-explainer/internal/pipeline"
	"github.com/joseph-ayodele/slides-explainer/internal/repository"
	"github.com/joseph-ayodele/slides-explainer/internal/server"
	"github.com/joseph-ayodele/slides-explainer/internal/status"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using process environment")
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("explainerd exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("explainerd stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db, logger)

	if err := repository.HealthCheck(ctx, db, 3*time.Second, logger); err != nil {
		return err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)

	docs, artifacts, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	jobs := repository.NewJobRepository(db, logger)
	users := repository.NewUserRepository(db, logger)

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
	transformer := pipeline.NewTransformer(docs, explainer, logger,
		pipeline.WithUnitTimeout(cfg.Worker.UnitTimeout),
		pipeline.WithRateLimit(cfg.LLM.RatePerSec),
	)
	worker := async.NewWorker(jobs, artifacts, transformer, logger,
		async.WithPollInterval(cfg.Worker.PollInterval),
		async.WithBatchSize(cfg.Worker.BatchSize),
	)

	var notifier intake.Notifier
	if cfg.NATS.URL != "" {
		bc, err := bus.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return err
		}
		defer bc.Close()
		if _, err := bc.OnJobSubmitted(func(uuid.UUID) { worker.Notify() }); err != nil {
			return err
		}
		notifier = bc
		logger.Info("nats connected", "subject", cfg.NATS.Subject)
	}

	var cache status.Cache
	if cfg.Redis.Addr != "" {
		rc, err := status.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		cache = status.NewRedisCache(rc, cfg.Redis.CacheTTL)
		logger.Info("status cache enabled", "addr", cfg.Redis.Addr)
	}

	intakeSvc := intake.NewService(jobs, users, docs, notifier, logger)
	resolver := status.NewResolver(jobs, artifacts, cache, logger)
	exporter := export.NewService(jobs, artifacts, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewRouter(server.NewJobHandler(intakeSvc, resolver, exporter, logger), server.HTTPConfig{UploadRPS: cfg.Server.UploadRPS}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv, healthSrv := server.NewGRPCServer(server.NewJobsService(intakeSvc, resolver, logger), logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		logger.Info("grpc serving", "addr", cfg.Server.GRPCAddr)
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		healthSrv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}
