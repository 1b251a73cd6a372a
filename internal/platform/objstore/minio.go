package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type s3Store struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewS3 connects to an S3-compatible endpoint and creates the bucket when
// it does not exist.
func NewS3(ctx context.Context, cfg Config, baseLog *logger.Logger) (Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket exists %s: %w", cfg.S3Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("s3 make bucket %s: %w", cfg.S3Bucket, err)
		}
	}
	log := baseLog.With("service", "S3Store")
	log.Info("Object storage initialized", "mode", ModeS3, "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	return &s3Store{client: client, bucket: cfg.S3Bucket, log: log}, nil
}

func (s *s3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, Join(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, Join(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object %s: %w", key, err)
	}
	defer obj.Close()
	b, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("s3 get object %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("s3 read object %s: %w", key, err)
	}
	return b, nil
}

func (s *s3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, info.Err)
		}
		out = append(out, info.Key)
	}
	sort.Strings(out)
	return out, nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, Join(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 remove object %s: %w", key, err)
	}
	return nil
}
