// Package storage fetches original and overlay images from a blob store.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/image-handler/internal/config"
)

// Object is a fetched blob with the response metadata the handler forwards.
type Object struct {
	Body         []byte
	ContentType  string
	CacheControl string
	Expires      *time.Time
	LastModified *time.Time
}

// BlobStore retrieves objects by bucket and key. Implementations return an
// *apierror.Error so the caller can surface upstream status codes.
type BlobStore interface {
	Get(ctx context.Context, bucket, key string) (*Object, error)
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.Storage) (BlobStore, error) {
	switch cfg.Backend {
	case config.BackendS3, "":
		return NewS3Store(ctx, cfg.Region)
	case config.BackendMinio:
		return NewMinioStore(cfg)
	case config.BackendLocal:
		return NewLocalStore(cfg.Root), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
