package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type FetchReason string

const (
	NetworkError       FetchReason = "NetworkError"
	EmptyPayload       FetchReason = "EmptyPayload"
	InvalidContentType FetchReason = "InvalidContentType"
)

// FetchError explains why a submission could not be downloaded. Message is
// written for the student and ends up in the failure email.
type FetchError struct {
	Reason  FetchReason
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FetchError) Unwrap() error { return e.Err }

func networkError(err error) *FetchError {
	return &FetchError{Reason: NetworkError, Message: "Download failed: Invalid URL or network issues.", Err: err}
}

// Fetcher downloads submitted artifacts over HTTP.
type Fetcher struct {
	Client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client}
}

// Fetch downloads url into dest and returns dest. The body is streamed into
// a temporary file next to dest and renamed into place only after every
// check has passed, so a failed fetch never leaves a file at dest.
func (f *Fetcher) Fetch(ctx context.Context, url string, dest string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", networkError(err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", networkError(fmt.Errorf("unexpected status %s", resp.Status))
	}

	if resp.ContentLength == 0 || resp.Header.Get("Content-Length") == "0" {
		return "", &FetchError{Reason: EmptyPayload, Message: "Download failed. The file has a 0-byte payload."}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return "", fmt.Errorf("failed to write staging file: %w", err)
		}
		return "", networkError(err)
	}
	if n == 0 {
		return "", &FetchError{Reason: EmptyPayload, Message: "Download failed. The file has no content."}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application") && !strings.Contains(contentType, "zip") {
		return "", &FetchError{
			Reason:  InvalidContentType,
			Message: "Download failed. The URL does not point to a downloadable file.",
			Err:     fmt.Errorf("content type %q", contentType),
		}
	}

	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to flush staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("failed to move staging file into place: %w", err)
	}
	renamed = true

	return dest, nil
}
