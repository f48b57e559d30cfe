// Package storage holds the raw uploaded documents and the artifacts produced for completed jobs.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/internal/entity"
)

// ErrArtifactExists is returned when an artifact is written twice for the same job.
var ErrArtifactExists = errors.New("artifact already exists")

// Document is a raw uploaded source document.
type Document struct {
	Name  string
	Bytes []byte
}

// DocumentStore keeps uploaded documents addressed by job id.
type DocumentStore interface {
	Put(ctx context.Context, jobID uuid.UUID, name string, r io.Reader) error
	Fetch(ctx context.Context, jobID uuid.UUID) (*Document, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
}

// ArtifactStore keeps one immutable artifact per completed job.
// Only the worker holding a job's claim writes or deletes its artifact.
type ArtifactStore interface {
	Put(ctx context.Context, a entity.Artifact) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.Artifact, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
}
