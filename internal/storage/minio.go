package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/config"
)

// MinioStore reads objects from an S3-compatible endpoint such as a local
// MinIO server.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore connects to cfg.Endpoint with static credentials.
func NewMinioStore(cfg config.Storage) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio storage requires STORAGE_ENDPOINT")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

// Get downloads bucket/key into memory.
func (s *MinioStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Downloading from MinIO")
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, mapMinioError(key, err)
	}
	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinioError(key, err)
	}

	out := &Object{
		Body:         body,
		ContentType:  info.ContentType,
		CacheControl: info.Metadata.Get("Cache-Control"),
		Expires:      parseHTTPTime(info.Metadata.Get("Expires")),
	}
	if !info.LastModified.IsZero() {
		lm := info.LastModified
		out.LastModified = &lm
	}
	return out, nil
}
