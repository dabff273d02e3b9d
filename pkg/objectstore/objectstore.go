package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// Config contains credentials for the S3-compatible object store. PublicURL
// is the CDN base under which bucket objects are reachable anonymously.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Store wraps an S3-compatible bucket with key-prefix scoped helpers.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    zerolog.Logger
}

// New constructs an object store client.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object store credentials must be provided")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store client: %w", err)
	}

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:    logger.With().Str("component", "objectstore").Logger(),
	}, nil
}

// PublicURL returns the anonymous URL for a key, or an empty string when no
// public base is configured.
func (s *Store) PublicURL(key string) string {
	if s.publicURL == "" {
		return ""
	}

	return s.publicURL + "/" + strings.TrimPrefix(key, "/")
}

// Put uploads a single object with metadata.
func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

// ListKeys returns every object key under the given prefix. The underlying
// client pages through continuation tokens transparently.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, object.Err)
		}
		keys = append(keys, object.Key)
	}

	return keys, nil
}

// Delete removes a single object.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// DeletePrefix removes every object under the prefix, returning how many were
// deleted. Individual failures are logged and skipped; cleanup is
// best-effort by contract.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	keys, err := s.ListKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to delete object")
			continue
		}
		deleted++
	}

	return deleted, nil
}
