package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pec-cloud/server/internal/config"
	"github.com/pec-cloud/server/pkg/logger"
)

// BlobStore is the permanent home of file-node content, keyed by the
// node's ref. Content is already encrypted client-side, so the store
// only ever ships opaque bytes.
type BlobStore interface {
	Put(ctx context.Context, ref string, reader io.Reader, size int64) error
	Get(ctx context.Context, ref string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, ref string) error
}

type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinIOStore) Put(ctx context.Context, ref string, reader io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, m.bucket, ref, reader, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		logger.Error("blob_put_failed", err, map[string]interface{}{
			"ref":    ref,
			"size":   size,
			"bucket": m.bucket,
		})
	}
	return err
}

func (m *MinIOStore) Get(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("blob_get_failed", err, map[string]interface{}{
			"ref":    ref,
			"bucket": m.bucket,
		})
		return nil, 0, err
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		logger.Error("blob_stat_failed", err, map[string]interface{}{
			"ref":    ref,
			"bucket": m.bucket,
		})
		return nil, 0, err
	}

	return obj, stat.Size, nil
}

func (m *MinIOStore) Remove(ctx context.Context, ref string) error {
	err := m.client.RemoveObject(ctx, m.bucket, ref, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("blob_remove_failed", err, map[string]interface{}{
			"ref":    ref,
			"bucket": m.bucket,
		})
	}
	return err
}
