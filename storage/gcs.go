package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSStore writes objects to a Google Cloud Storage bucket. The write-once
// rule is the generation-match-0 precondition (DoesNotExist).
type GCSStore struct {
	client *gcs.Client
	bucket string
	logger *slog.Logger
}

// NewGCSClient builds a storage client from a service account JSON key, or
// from Application Default Credentials when credentialsJSON is empty.
func NewGCSClient(ctx context.Context, credentialsJSON string) (*gcs.Client, error) {
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return client, nil
}

func NewGCSStore(client *gcs.Client, bucket string, logger *slog.Logger) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, logger: logger}
}

func (s *GCSStore) Upload(ctx context.Context, localPath string, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &Error{Kind: Transient, Bucket: s.bucket, Key: key, Err: err}
	}
	defer f.Close()

	obj := s.client.Bucket(s.bucket).Object(key).If(gcs.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = "application/zip"

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return classifyGCS(s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return classifyGCS(s.bucket, key, err)
	}

	s.logger.Info("uploaded submission", "bucket", s.bucket, "key", key, "source", localPath)
	return nil
}

func classifyGCS(bucket, key string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
		return &Error{Kind: AlreadyExists, Bucket: bucket, Key: key, Err: err}
	}
	return &Error{Kind: Transient, Bucket: bucket, Key: key, Err: err}
}
