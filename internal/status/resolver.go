// Package status answers "where is my job" from the job store and the artifact store.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/constants"
	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/repository"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

// Cache holds views of terminal jobs. Those never change, so entries are never invalidated.
type Cache interface {
	Get(ctx context.Context, jobID uuid.UUID) (*entity.StatusView, bool, error)
	Set(ctx context.Context, view *entity.StatusView) error
}

type Resolver struct {
	jobs      repository.JobRepository
	artifacts storage.ArtifactStore
	cache     Cache
	logger    *slog.Logger
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(jobs repository.JobRepository, artifacts storage.ArtifactStore, cache Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{jobs: jobs, artifacts: artifacts, cache: cache, logger: logger}
}

// ResolveByID returns the current view of a job.
func (r *Resolver) ResolveByID(ctx context.Context, id uuid.UUID) (*entity.StatusView, error) {
	if v, ok := r.cached(ctx, id); ok {
		return v, nil
	}
	job, err := r.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.view(ctx, job)
}

// ResolveByOwner returns the view of the owner's most recent job, optionally for one source name.
func (r *Resolver) ResolveByOwner(ctx context.Context, ownerIdentifier, sourceName string) (*entity.StatusView, error) {
	ownerIdentifier = strings.TrimSpace(ownerIdentifier)
	if ownerIdentifier == "" {
		return nil, common.InvalidInputError("ownerIdentifier is required")
	}
	// the latest job can change with every submission, so the lookup itself is never cached
	job, err := r.jobs.LatestByOwner(ctx, ownerIdentifier, strings.TrimSpace(sourceName))
	if err != nil {
		return nil, err
	}
	if v, ok := r.cached(ctx, job.ID); ok {
		return v, nil
	}
	return r.view(ctx, job)
}

func (r *Resolver) view(ctx context.Context, job *entity.Job) (*entity.StatusView, error) {
	v := &entity.StatusView{
		JobID:       job.ID,
		State:       job.State,
		SourceName:  job.SourceName,
		HallName:    entity.HallName(job.SourceName),
		SubmittedAt: job.SubmittedAt,
		FinishedAt:  job.FinishedAt,
	}

	switch job.State {
	case constants.JobStateCompleted:
		a, err := r.artifacts.Get(ctx, job.ID)
		if err != nil {
			r.logger.Error("status.artifact.missing", "job_id", job.ID, "error", err)
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.StorageError(fmt.Sprintf("artifact for completed job %s", job.ID), err)
			}
			return nil, err
		}
		text := a.Render()
		v.Explanation = &text
	case constants.JobStateFailed:
		msg := constants.FailureMessage
		v.Explanation = &msg
	}

	if job.State.Terminal() && r.cache != nil {
		if err := r.cache.Set(ctx, v); err != nil {
			r.logger.Warn("status.cache.set_failed", "job_id", job.ID, "error", err)
		}
	}
	return v, nil
}

func (r *Resolver) cached(ctx context.Context, id uuid.UUID) (*entity.StatusView, bool) {
	if r.cache == nil {
		return nil, false
	}
	v, ok, err := r.cache.Get(ctx, id)
	if err != nil {
		r.logger.Warn("status.cache.get_failed", "job_id", id, "error", err)
		return nil, false
	}
	return v, ok
}
