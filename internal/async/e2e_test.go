package async

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/constants"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/intake"
	"github.com/joseph-ayodele/slides-explainer/internal/llm"
	"github.com/joseph-ayodele/slides-explainer/internal/pipeline"
	"github.com/joseph-ayodele/slides-explainer/internal/repository"
	"github.com/joseph-ayodele/slides-explainer/internal/status"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

const e2eSlide = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody><a:bodyPr/><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`

func deck(t *testing.T, slides ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, text := range slides {
		w, err := zw.Create(fmt.Sprintf("ppt/slides/slide%d.xml", i+1))
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := fmt.Fprintf(w, e2eSlide, text); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

type explainFunc func(ctx context.Context, req llm.ExplainRequest) (string, error)

func (f explainFunc) Explain(ctx context.Context, req llm.ExplainRequest) (string, error) {
	return f(ctx, req)
}

// numbered explains slide N as "EN".
var numbered = explainFunc(func(_ context.Context, req llm.ExplainRequest) (string, error) {
	return fmt.Sprintf("E%d", req.UnitIndex+1), nil
})

type system struct {
	intake   *intake.Service
	worker   *Worker
	resolver *status.Resolver
}

func newSystem(t *testing.T, ex llm.Explainer) system {
	t.Helper()
	logger := discardLogger()
	dsn := "file:" + filepath.Join(t.TempDir(), "e2e.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := repository.OpenSQLite(context.Background(), dsn, logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repository.Close(db, logger) })
	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	docs, err := storage.NewFSDocumentStore(t.TempDir())
	if err != nil {
		t.Fatalf("doc store: %v", err)
	}
	artifacts := newArtifacts(t)
	jobs := repository.NewJobRepository(db, logger)

	return system{
		intake:   intake.NewService(jobs, repository.NewUserRepository(db, logger), docs, nil, logger),
		worker:   NewWorker(jobs, artifacts, pipeline.NewTransformer(docs, ex, logger), logger),
		resolver: status.NewResolver(jobs, artifacts, nil, logger),
	}
}

func (s system) settle(t *testing.T, id uuid.UUID) *entity.StatusView {
	t.Helper()
	ctx := context.Background()
	before, err := s.resolver.ResolveByID(ctx, id)
	if err != nil {
		t.Fatalf("resolve before run: %v", err)
	}
	if before.State != constants.JobStatePending || before.Explanation != nil {
		t.Fatalf("unexpected view before run: %+v", before)
	}
	if n, err := s.worker.RunOnce(ctx); err != nil || n != 1 {
		t.Fatalf("RunOnce = %d, %v", n, err)
	}
	v, err := s.resolver.ResolveByID(ctx, id)
	if err != nil {
		t.Fatalf("resolve after run: %v", err)
	}
	return v
}

func TestUploadToCompletedStatus(t *testing.T) {
	s := newSystem(t, numbered)
	id, err := s.intake.Upload(context.Background(), "hall3_cells.pptx", "ada@example.com",
		bytes.NewReader(deck(t, "What is a cell", "Cell membranes")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	v := s.settle(t, id)
	if v.State != constants.JobStateCompleted || v.Explanation == nil || *v.Explanation != "E1\nE2" {
		t.Fatalf("view = %+v", v)
	}
	if v.HallName != "hall3" || v.FinishedAt == nil {
		t.Fatalf("view = %+v", v)
	}
}

func TestSlideFailureKeepsJobCompleted(t *testing.T) {
	s := newSystem(t, explainFunc(func(ctx context.Context, req llm.ExplainRequest) (string, error) {
		if req.UnitIndex == 1 {
			return "", errors.New("model unavailable")
		}
		return numbered(ctx, req)
	}))
	id, err := s.intake.Upload(context.Background(), "deck.pptx", "", bytes.NewReader(deck(t, "one", "two", "three")))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	v := s.settle(t, id)
	if v.State != constants.JobStateCompleted || v.Explanation == nil {
		t.Fatalf("view = %+v", v)
	}
	lines := strings.Split(*v.Explanation, "\n")
	if len(lines) != 3 || lines[0] != "E1" || lines[2] != "E3" || !strings.HasPrefix(lines[1], constants.UnitErrorPrefix) {
		t.Fatalf("explanation = %q", *v.Explanation)
	}
}

func TestMissingDocumentEndsFailed(t *testing.T) {
	s := newSystem(t, numbered)
	id, err := s.intake.Submit(context.Background(), intake.SubmitRequest{SourceName: "never-uploaded.pptx"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	v := s.settle(t, id)
	if v.State != constants.JobStateFailed || v.Explanation == nil || *v.Explanation != constants.FailureMessage {
		t.Fatalf("view = %+v", v)
	}
}

func TestCorruptDocumentEndsFailed(t *testing.T) {
	s := newSystem(t, numbered)
	id, err := s.intake.Upload(context.Background(), "broken.pptx", "", strings.NewReader("not a zip"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	v := s.settle(t, id)
	if v.State != constants.JobStateFailed || *v.Explanation != constants.FailureMessage {
		t.Fatalf("view = %+v", v)
	}
}
