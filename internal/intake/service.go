// Package intake accepts documents and registers them as pending jobs.
package intake

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/repository"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

const (
	maxSourceNameLen = 255
	discardTimeout   = 5 * time.Second
)

// Notifier is told about every newly submitted job. Delivery is best effort.
type Notifier interface {
	JobSubmitted(ctx context.Context, jobID uuid.UUID) error
}

// SubmitRequest registers an already stored document.
type SubmitRequest struct {
	ID              uuid.UUID // uuid.Nil -> generated
	SourceName      string
	OwnerIdentifier string // optional
}

// Service handles job intake business logic.
type Service struct {
	jobs     repository.JobRepository
	users    repository.UserRepository
	docs     storage.DocumentStore
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a new intake service. notifier may be nil.
func NewService(jobs repository.JobRepository, users repository.UserRepository, docs storage.DocumentStore, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, users: users, docs: docs, notifier: notifier, logger: logger}
}

// Submit creates a pending job, resolving (or creating) its owner first.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	req.SourceName = strings.TrimSpace(req.SourceName)
	req.OwnerIdentifier = strings.TrimSpace(req.OwnerIdentifier)
	if err := validate(req.SourceName, req.OwnerIdentifier); err != nil {
		s.logger.Warn("intake.submit.invalid", "source_name", req.SourceName, "error", err)
		return uuid.Nil, err
	}

	in := repository.NewJob{ID: req.ID, SourceName: req.SourceName}
	if req.OwnerIdentifier != "" {
		u, err := s.users.GetOrCreate(ctx, req.OwnerIdentifier)
		if err != nil {
			return uuid.Nil, err
		}
		in.OwnerID = &u.ID
	}

	job, err := s.jobs.Create(ctx, in)
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("intake.submit.ok", "job_id", job.ID, "source_name", job.SourceName, "has_owner", in.OwnerID != nil)
	s.notify(ctx, job.ID)
	return job.ID, nil
}

// Upload stores the raw document and then submits the job, so a worker never claims a job
// whose document is missing.
func (s *Service) Upload(ctx context.Context, sourceName, ownerIdentifier string, r io.Reader) (uuid.UUID, error) {
	sourceName = strings.TrimSpace(sourceName)
	ownerIdentifier = strings.TrimSpace(ownerIdentifier)
	if err := validate(sourceName, ownerIdentifier); err != nil {
		s.logger.Warn("intake.upload.invalid", "source_name", sourceName, "error", err)
		return uuid.Nil, err
	}

	id := uuid.New()
	if err := s.docs.Put(ctx, id, sourceName, r); err != nil {
		s.logger.Error("intake.upload.store_failed", "job_id", id, "source_name", sourceName, "error", err)
		return uuid.Nil, err
	}
	s.logger.Info("intake.upload.stored", "job_id", id, "source_name", sourceName)

	jobID, err := s.Submit(ctx, SubmitRequest{ID: id, SourceName: sourceName, OwnerIdentifier: ownerIdentifier})
	if err != nil {
		s.discard(ctx, id)
		return uuid.Nil, err
	}
	return jobID, nil
}

// discard removes an upload whose job was never created.
func (s *Service) discard(ctx context.Context, id uuid.UUID) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if err := s.docs.Delete(dctx, id); err != nil {
		s.logger.Error("intake.upload.orphaned", "job_id", id, "error", err)
		return
	}
	s.logger.Info("intake.upload.discarded", "job_id", id)
}

func (s *Service) notify(ctx context.Context, id uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.JobSubmitted(ctx, id); err != nil {
		s.logger.Warn("intake.notify.failed", "job_id", id, "error", err)
	}
}

func validate(sourceName, owner string) error {
	return common.NewValidator().
		Field("sourceName", sourceName, common.Required, common.MaxLength(maxSourceNameLen), common.DocumentName).
		Field("ownerIdentifier", owner, common.MaxLength(maxSourceNameLen)).
		Err()
}
