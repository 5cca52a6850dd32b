package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalStore keeps objects under a directory on disk. It backs local runs
// and tests; the bucket is the root directory.
type LocalStore struct {
	root   string
	logger *slog.Logger
}

func NewLocalStore(root string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{root: root, logger: logger}, nil
}

func (s *LocalStore) Upload(ctx context.Context, localPath string, key string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: Transient, Bucket: s.root, Key: key, Err: err}
	}
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return &Error{Kind: Transient, Bucket: s.root, Key: key, Err: errors.New("key escapes storage root")}
	}

	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return &Error{Kind: Transient, Bucket: s.root, Key: key, Err: err}
	}

	tmpPath, err := s.copyToTemp(localPath, filepath.Dir(target))
	if err != nil {
		return &Error{Kind: Transient, Bucket: s.root, Key: key, Err: err}
	}
	defer os.Remove(tmpPath)

	// Link fails if target exists, which gives create-if-absent semantics.
	if err := os.Link(tmpPath, target); err != nil {
		if os.IsExist(err) {
			return &Error{Kind: AlreadyExists, Bucket: s.root, Key: key, Err: err}
		}
		return &Error{Kind: Transient, Bucket: s.root, Key: key, Err: err}
	}

	s.logger.Info("uploaded submission", "bucket", s.root, "key", key, "source", localPath)
	return nil
}

func (s *LocalStore) copyToTemp(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
