// Package server exposes job intake and status over HTTP (gin) and gRPC.
package server

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/intake"
)

// Intake is satisfied by *intake.Service.
type Intake interface {
	Submit(ctx context.Context, req intake.SubmitRequest) (uuid.UUID, error)
	Upload(ctx context.Context, sourceName, ownerIdentifier string, r io.Reader) (uuid.UUID, error)
}

// StatusResolver is satisfied by *status.Resolver.
type StatusResolver interface {
	ResolveByID(ctx context.Context, id uuid.UUID) (*entity.StatusView, error)
	ResolveByOwner(ctx context.Context, ownerIdentifier, sourceName string) (*entity.StatusView, error)
}

// Exporter is satisfied by *export.Service.
type Exporter interface {
	ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error)
}
