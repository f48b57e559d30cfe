package storage

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
)

// FromConfig builds the document and artifact stores for the configured backend.
func FromConfig(ctx context.Context, cfg common.StorageConfig) (DocumentStore, ArtifactStore, error) {
	switch cfg.Backend {
	case "", "fs":
		docs, err := NewFSDocumentStore(cfg.UploadsDir)
		if err != nil {
			return nil, nil, err
		}
		arts, err := NewFSArtifactStore(cfg.OutputsDir)
		if err != nil {
			return nil, nil, err
		}
		return docs, arts, nil
	case "s3":
		s, err := NewS3(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s.Documents(), s.Artifacts(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
