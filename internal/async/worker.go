// Package async runs the background loop that drives pending jobs to a terminal state.
package async

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/repository"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

const tracerName = "github.com/joseph-ayodele/slides-explainer/internal/async"

// Transformer produces the ordered explanations for a job.
type Transformer interface {
	Transform(ctx context.Context, jobID uuid.UUID) ([]string, error)
}

// Worker polls for pending jobs, claims them and records the outcome.
// Several workers (in one or many processes) may share a database: the claim is atomic.
type Worker struct {
	jobs        repository.JobRepository
	artifacts   storage.ArtifactStore
	transformer Transformer
	logger      *slog.Logger
	tracer      trace.Tracer

	pollInterval  time.Duration
	batchSize     int
	finishTimeout time.Duration
	now           func() time.Time

	wake chan struct{}
}

type Option func(*Worker)

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(w *Worker) {
		if t != nil {
			w.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func NewWorker(jobs repository.JobRepository, artifacts storage.ArtifactStore, tr Transformer, logger *slog.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		jobs:          jobs,
		artifacts:     artifacts,
		transformer:   tr,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
		pollInterval:  10 * time.Second,
		batchSize:     50,
		finishTimeout: 10 * time.Second,
		now:           time.Now,
		wake:          make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Notify wakes the loop before the next poll tick. It never blocks.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run processes pending jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker.started", "poll_interval", w.pollInterval.String(), "batch_size", w.batchSize)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("worker.cycle.failed", "err", err)
		}
		select {
		case <-ctx.Done():
			w.logger.Info("worker.stopped")
			return nil
		case <-ticker.C:
		case <-w.wake:
			w.logger.Debug("worker.woken")
		}
	}
}

// RunOnce handles one batch of pending jobs and returns how many it claimed.
// Per-job failures are recorded on the job and never abort the batch.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.jobs.ListPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) > 0 {
		w.logger.Info("worker.cycle.start", "pending", len(pending))
	}

	claimed := 0
	for _, job := range pending {
		if ctx.Err() != nil {
			break
		}
		ok, err := w.jobs.Claim(ctx, job.ID)
		if err != nil {
			w.logger.Error("worker.job.claim_failed", "job_id", job.ID, "err", err)
			continue
		}
		if !ok {
			w.logger.Debug("worker.job.claim_lost", "job_id", job.ID)
			continue
		}
		claimed++
		w.process(ctx, job)
	}
	return claimed, nil
}

func (w *Worker) process(ctx context.Context, job *entity.Job) {
	ctx, span := w.tracer.Start(ctx, "explainer.job.process",
		trace.WithAttributes(
			attribute.String("explainer.job.id", job.ID.String()),
			attribute.String("explainer.job.source_name", job.SourceName),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := w.now()
	w.logger.Info("worker.job.claimed", "job_id", job.ID, "source_name", job.SourceName)

	if err := w.execute(ctx, job.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
	w.logger.Info("worker.job.completed", "job_id", job.ID, "elapsed_ms", w.now().Sub(start).Milliseconds())
}

// execute transforms the document, stores the artifact and only then completes the job.
func (w *Worker) execute(ctx context.Context, id uuid.UUID) error {
	explanations, err := w.transformer.Transform(ctx, id)
	if err != nil {
		w.fail(ctx, id, err)
		return err
	}
	artifact := entity.Artifact{JobID: id, Explanations: explanations, CreatedAt: w.now().UTC()}
	if err := w.artifacts.Put(ctx, artifact); err != nil {
		w.fail(ctx, id, err)
		return err
	}

	// The artifact exists from here on; the transition must not be lost to cancellation.
	fctx, cancel := w.finishContext(ctx)
	defer cancel()
	if err := w.jobs.Complete(fctx, id); err != nil {
		w.logger.Error("worker.job.complete_failed", "job_id", id, "err", err)
		if derr := w.artifacts.Delete(fctx, id); derr != nil {
			// A failed job must never carry an artifact; leave it processing for an operator.
			w.logger.Error("worker.job.stranded", "job_id", id, "err", derr)
			return err
		}
		w.fail(ctx, id, err)
		return err
	}
	return nil
}

func (w *Worker) finishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), w.finishTimeout)
}

// fail records the terminal failure even when ctx is already cancelled, so no job is left processing.
func (w *Worker) fail(ctx context.Context, id uuid.UUID, cause error) {
	fctx, cancel := w.finishContext(ctx)
	defer cancel()
	w.logger.Warn("worker.job.failed", "job_id", id, "err", cause)
	if err := w.jobs.Fail(fctx, id, cause.Error()); err != nil {
		w.logger.Error("worker.job.fail_record_failed", "job_id", id, "err", err)
	}
}
