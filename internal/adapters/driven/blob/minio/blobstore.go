// Package minio provides a blob store adapter for MinIO/S3 object
// storage, used to clean up uploaded source files when a document is
// deleted.
package minio

import (
	"context"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// Config holds connection settings for MinIO/S3.
type Config struct {
	// EndpointURL is the server URL, e.g. http://localhost:9000 (required).
	EndpointURL string

	// AccessKeyID and SecretAccessKey are the credentials (required).
	AccessKeyID     string
	SecretAccessKey string

	// Bucket is the bucket holding uploaded documents (required).
	Bucket string

	// Region is optional.
	Region string

	// UseSSL forces TLS even when the URL scheme is http.
	UseSSL bool
}

// BlobStore removes uploaded files from MinIO/S3.
type BlobStore struct {
	client *minio.Client
	bucket string
}

// NewBlobStore creates a MinIO-backed blob store.
func NewBlobStore(cfg Config) (*BlobStore, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("minio: endpoint URL is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("minio: credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}

	// Parse endpoint URL to extract host
	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("minio: invalid endpoint URL: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}

	useSSL := cfg.UseSSL
	if u.Scheme == "https" {
		useSSL = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: failed to create client: %w", err)
	}

	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// DeleteFile removes one object. Removing a missing object succeeds.
func (s *BlobStore) DeleteFile(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio: remove %s: %w", path, err)
	}
	return nil
}

// Ping validates connectivity and that the bucket exists.
func (s *BlobStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio: ping failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio: bucket %q does not exist", s.bucket)
	}
	return nil
}

// Close releases resources.
func (s *BlobStore) Close() error {
	return nil
}
