package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/slides-explainer/constants"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/repository"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

// ErrNotCompleted is returned when a workbook is requested for a job without an artifact.
var ErrNotCompleted = errors.New("job is not completed")

const sheet = "Explanations"

// Service produces XLSX bytes for a completed job's explanations.
type Service struct {
	jobs      repository.JobRepository
	artifacts storage.ArtifactStore
	logger    *slog.Logger
}

func NewService(jobs repository.JobRepository, artifacts storage.ArtifactStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, artifacts: artifacts, logger: logger}
}

// ExportJobXLSX returns a workbook with one row per slide: key, explanation.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State != constants.JobStateCompleted {
		return nil, fmt.Errorf("%w: state is %s", ErrNotCompleted, job.State)
	}
	a, err := s.artifacts.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	b, err := Workbook(job, a)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", jobID.String(),
		"rows", len(a.Explanations),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// Workbook renders an artifact as XLSX bytes.
func Workbook(job *entity.Job, a *entity.Artifact) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Slide", "Explanation"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, text := range a.Explanations {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, entity.SlideKey(i))
		write(2, text)
	}

	_ = f.SetColWidth(sheet, "A", "A", 10)
	_ = f.SetColWidth(sheet, "B", "B", 100)

	props := &excelize.DocProperties{
		Title:   job.SourceName,
		Subject: entity.HallName(job.SourceName),
	}
	_ = f.SetDocProps(props)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
