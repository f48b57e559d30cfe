package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
)

// FSDocumentStore stores uploads as <dir>/<timestamp>_<jobID>_<name>.
type FSDocumentStore struct {
	BaseDir string
	now     func() time.Time
}

func NewFSDocumentStore(baseDir string) (*FSDocumentStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory %s: %w", baseDir, err)
	}
	return &FSDocumentStore{BaseDir: baseDir, now: time.Now}, nil
}

func (s *FSDocumentStore) Put(_ context.Context, jobID uuid.UUID, name string, r io.Reader) error {
	filename := fmt.Sprintf("%s_%s_%s", s.now().UTC().Format("20060102150405"), jobID, filepath.Base(name))
	path := filepath.Join(s.BaseDir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return common.StorageError("create upload file", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return common.StorageError("write upload file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return common.StorageError("close upload file", err)
	}
	return nil
}

func (s *FSDocumentStore) Fetch(_ context.Context, jobID uuid.UUID) (*Document, error) {
	path, name, err := s.find(jobID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, common.StorageError("read upload file", err)
	}
	return &Document{Name: name, Bytes: b}, nil
}

// Delete removes the upload for jobID. A missing upload is not an error.
func (s *FSDocumentStore) Delete(_ context.Context, jobID uuid.UUID) error {
	path, _, err := s.find(jobID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.StorageError("remove upload file", err)
	}
	return nil
}

// find scans BaseDir for <timestamp>_<jobID>_<name>; BaseDir is never used as a pattern.
func (s *FSDocumentStore) find(jobID uuid.UUID) (string, string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		return "", "", common.StorageError("list uploads", err)
	}
	infix := "_" + jobID.String() + "_"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, name, ok := strings.Cut(e.Name(), infix); ok {
			return filepath.Join(s.BaseDir, e.Name()), name, nil
		}
	}
	return "", "", common.NotFoundError(fmt.Sprintf("document for job %s not found", jobID))
}

// FSArtifactStore stores artifacts as <dir>/<jobID>.json, created exclusively.
type FSArtifactStore struct {
	BaseDir string
}

func NewFSArtifactStore(baseDir string) (*FSArtifactStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create outputs directory %s: %w", baseDir, err)
	}
	return &FSArtifactStore{BaseDir: baseDir}, nil
}

func (s *FSArtifactStore) path(jobID uuid.UUID) string {
	return filepath.Join(s.BaseDir, jobID.String()+".json")
}

func (s *FSArtifactStore) Put(_ context.Context, a entity.Artifact) error {
	b, err := json.MarshalIndent(a, "", "    ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	path := s.path(a.JobID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return ErrArtifactExists
	}
	if err != nil {
		return common.StorageError("create artifact file", err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return common.StorageError("write artifact file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return common.StorageError("close artifact file", err)
	}
	return nil
}

// Delete removes the artifact for jobID. A missing artifact is not an error.
func (s *FSArtifactStore) Delete(_ context.Context, jobID uuid.UUID) error {
	if err := os.Remove(s.path(jobID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.StorageError("remove artifact file", err)
	}
	return nil
}

func (s *FSArtifactStore) Get(_ context.Context, jobID uuid.UUID) (*entity.Artifact, error) {
	b, err := os.ReadFile(s.path(jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NotFoundError(fmt.Sprintf("artifact for job %s not found", jobID))
	}
	if err != nil {
		return nil, common.StorageError("read artifact file", err)
	}
	var a entity.Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, common.StorageError("decode artifact", err)
	}
	return &a, nil
}
