package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
)

// S3Config describes an S3-compatible endpoint (MinIO, AWS).
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3 stores documents under documents/<jobID>/<name> and artifacts under artifacts/<jobID>.json.
type S3 struct {
	Client *minio.Client
	Bucket string
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("s3 make bucket: %w", err)
		}
	}
	return &S3{Client: client, Bucket: cfg.Bucket}, nil
}

func documentPrefix(jobID uuid.UUID) string {
	return "documents/" + jobID.String() + "/"
}

func artifactKey(jobID uuid.UUID) string {
	return "artifacts/" + jobID.String() + ".json"
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Documents returns a DocumentStore view of the bucket.
func (s *S3) Documents() DocumentStore { return s3Documents{s} }

// Artifacts returns an ArtifactStore view of the bucket.
func (s *S3) Artifacts() ArtifactStore { return s3Artifacts{s} }

type s3Documents struct{ s *S3 }

func (d s3Documents) Put(ctx context.Context, jobID uuid.UUID, name string, r io.Reader) error {
	key := documentPrefix(jobID) + path.Base(name)
	_, err := d.s.Client.PutObject(ctx, d.s.Bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return common.StorageError("s3 put document", err)
	}
	return nil
}

func (d s3Documents) Fetch(ctx context.Context, jobID uuid.UUID) (*Document, error) {
	prefix := documentPrefix(jobID)
	var key string
	for obj := range d.s.Client.ListObjects(ctx, d.s.Bucket, minio.ListObjectsOptions{Prefix: prefix, MaxKeys: 1}) {
		if obj.Err != nil {
			return nil, common.StorageError("s3 list documents", obj.Err)
		}
		key = obj.Key
		break
	}
	if key == "" {
		return nil, common.NotFoundError(fmt.Sprintf("document for job %s not found", jobID))
	}
	b, err := d.s.read(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Document{Name: strings.TrimPrefix(key, prefix), Bytes: b}, nil
}

func (d s3Documents) Delete(ctx context.Context, jobID uuid.UUID) error {
	for obj := range d.s.Client.ListObjects(ctx, d.s.Bucket, minio.ListObjectsOptions{Prefix: documentPrefix(jobID), Recursive: true}) {
		if obj.Err != nil {
			return common.StorageError("s3 list documents", obj.Err)
		}
		if err := d.s.Client.RemoveObject(ctx, d.s.Bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return common.StorageError("s3 remove document", err)
		}
	}
	return nil
}

type s3Artifacts struct{ s *S3 }

// Put refuses to overwrite. StatObject then PutObject is not atomic; it relies on the job
// claim, which lets exactly one worker write a given job's artifact.
func (a s3Artifacts) Put(ctx context.Context, art entity.Artifact) error {
	key := artifactKey(art.JobID)
	if _, err := a.s.Client.StatObject(ctx, a.s.Bucket, key, minio.StatObjectOptions{}); err == nil {
		return ErrArtifactExists
	} else if !isNoSuchKey(err) {
		return common.StorageError("s3 stat artifact", err)
	}

	b, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	_, err = a.s.Client.PutObject(ctx, a.s.Bucket, key, bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return common.StorageError("s3 put artifact", err)
	}
	return nil
}

func (a s3Artifacts) Get(ctx context.Context, jobID uuid.UUID) (*entity.Artifact, error) {
	b, err := a.s.read(ctx, artifactKey(jobID))
	if err != nil {
		return nil, err
	}
	var art entity.Artifact
	if err := json.Unmarshal(b, &art); err != nil {
		return nil, common.StorageError("decode artifact", err)
	}
	return &art, nil
}

func (a s3Artifacts) Delete(ctx context.Context, jobID uuid.UUID) error {
	if err := a.s.Client.RemoveObject(ctx, a.s.Bucket, artifactKey(jobID), minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return common.StorageError("s3 remove artifact", err)
	}
	return nil
}

func (s *S3) read(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, common.StorageError("s3 get object", err)
	}
	defer func() { _ = obj.Close() }()

	b, err := io.ReadAll(obj)
	if isNoSuchKey(err) {
		return nil, common.NotFoundError(fmt.Sprintf("object %s not found", key))
	}
	if err != nil {
		return nil, common.StorageError("s3 read object", err)
	}
	return b, nil
}
