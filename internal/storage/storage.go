// Package storage writes exported artifacts to a filesystem directory or an
// S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/config"
)

// ObjectStorage captures the minimal write surface the exporters need.
type ObjectStorage interface {
	UploadObject(ctx context.Context, key string, r io.Reader, size int64) error
}

// Open builds the storage selected by cfg.Driver. The none driver returns a
// nil ObjectStorage and no error.
func Open(ctx context.Context, cfg config.ExportConfig) (ObjectStorage, error) {
	var (
		s   ObjectStorage
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "fs":
		s, err = NewFSStorage(cfg.FSRoot)
	case "minio":
		s, err = NewMinioStorage(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	case "s3":
		s, err = NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported export driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
