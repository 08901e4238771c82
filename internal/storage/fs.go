package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStorage writes objects below a root directory.
type FSStorage struct {
	root string
}

func NewFSStorage(root string) (*FSStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("fs export root must be provided")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create export root: %w", err)
	}
	return &FSStorage{root: root}, nil
}

func (s *FSStorage) UploadObject(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean("/" + strings.TrimPrefix(key, "/"))
	dest := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", dest, err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed creating %s: %w", dest, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed writing %s: %w", dest, err)
	}
	return f.Close()
}

var _ ObjectStorage = (*FSStorage)(nil)
