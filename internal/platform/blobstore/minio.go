package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"blog.local/internal/platform/metrics"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioOptions struct {
	Endpoint  string // host:port，不带 scheme
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL 为空时使用 {scheme}://{endpoint}/{bucket}
	PublicBaseURL string
}

// MinioStore 基于 S3 协议的对象存储（MinIO / S3 / R2 都可以）。
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
		slog.Info("blob bucket created", "bucket", opts.Bucket)
	}

	base := opts.PublicBaseURL
	if base == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + opts.Endpoint + "/" + opts.Bucket
	}
	return &MinioStore{client: client, bucket: opts.Bucket, publicBaseURL: base}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		metrics.BlobOperations.WithLabelValues("put", "error").Inc()
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	metrics.BlobOperations.WithLabelValues("put", "ok").Inc()
	return publicURL(s.publicBaseURL, key), nil
}

func (s *MinioStore) Delete(ctx context.Context, url string) error {
	key, err := KeyFromURL(s.publicBaseURL, url)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		metrics.BlobOperations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	metrics.BlobOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}
