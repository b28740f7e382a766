package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/config"
)

// ObjectStore abstracts storage for uploaded media and rendered artifacts.
type ObjectStore interface {
	// Save stores data under key. key format: {kind}/{YYYY-MM-DD}/{filename}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Put stores a local file under key and returns a URL for it.
	// Returns "" for local-only backends (the API serves those itself).
	Put(ctx context.Context, localFile, key, contentType string) (string, error)

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a presigned URL for the object.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if the object exists.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates an ObjectStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, mediaDir string, log zerolog.Logger) (ObjectStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(mediaDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return s3store, nil
}
