package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/repository"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

func newService(t *testing.T) (*Service, repository.JobRepository, *storage.FSArtifactStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := "file:" + filepath.Join(t.TempDir(), "export.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := repository.OpenSQLite(context.Background(), dsn, logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repository.Close(db, logger) })
	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	artifacts, err := storage.NewFSArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	jobs := repository.NewJobRepository(db, logger)
	return NewService(jobs, artifacts, logger), jobs, artifacts
}

func TestExportJobXLSX(t *testing.T) {
	ctx := context.Background()
	svc, jobs, artifacts := newService(t)
	job, _ := jobs.Create(ctx, repository.NewJob{SourceName: "deck.pptx"})
	_, _ = jobs.Claim(ctx, job.ID)
	if err := artifacts.Put(ctx, entity.Artifact{JobID: job.ID, Explanations: []string{"E1", "E2"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := jobs.Complete(ctx, job.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	b, err := svc.ExportJobXLSX(ctx, job.ID)
	if err != nil {
		t.Fatalf("ExportJobXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1][0] != "slide1" || rows[1][1] != "E1" || rows[2][0] != "slide2" || rows[2][1] != "E2" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestExportRejectsUnfinishedJob(t *testing.T) {
	ctx := context.Background()
	svc, jobs, _ := newService(t)
	job, _ := jobs.Create(ctx, repository.NewJob{SourceName: "deck.pptx"})

	if _, err := svc.ExportJobXLSX(ctx, job.ID); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}
}
