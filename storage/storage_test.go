package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"google.golang.org/api/googleapi"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeStaged(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.zip")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write staged file: %v", err)
	}
	return path
}

func TestLocalStoreUpload(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, discardLogger())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	src := writeStaged(t, "first attempt")
	if err := store.Upload(context.Background(), src, "pa1/abcom/jo_doe_2.zip"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "pa1", "abcom", "jo_doe_2.zip"))
	if err != nil {
		t.Fatalf("uploaded object missing: %v", err)
	}
	if string(data) != "first attempt" {
		t.Errorf("object content = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "pa1", "abcom"))
	if len(entries) != 1 {
		t.Errorf("expected only the object in its directory, found %d entries", len(entries))
	}
}

func TestLocalStoreWriteOnce(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, discardLogger())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	key := "pa1/abcom/jo_doe_2.zip"

	if err := store.Upload(context.Background(), writeStaged(t, "original"), key); err != nil {
		t.Fatalf("first Upload failed: %v", err)
	}

	err = store.Upload(context.Background(), writeStaged(t, "replacement"), key)
	if !IsAlreadyExists(err) {
		t.Fatalf("second Upload error = %v, want AlreadyExists", err)
	}

	data, _ := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	if string(data) != "original" {
		t.Errorf("existing object was modified: %q", data)
	}
}

func TestLocalStoreRejectsEscapingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	err = store.Upload(context.Background(), writeStaged(t, "x"), "../outside.zip")
	var se *Error
	if !errors.As(err, &se) || se.Kind != Transient {
		t.Fatalf("Upload error = %v, want Transient storage error", err)
	}
}

func TestLocalStoreMissingSource(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	err = store.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.zip"), "a/b/c.zip")
	if err == nil || IsAlreadyExists(err) {
		t.Fatalf("Upload error = %v, want Transient", err)
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		data, _ := io.ReadAll(params.Body)
		f.body = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreUpload(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3Store(fake, "submissions", discardLogger())

	if err := store.Upload(context.Background(), writeStaged(t, "zip bytes"), "pa1/abcom/jo_doe_2.zip"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if got := aws.ToString(fake.input.Bucket); got != "submissions" {
		t.Errorf("Bucket = %q", got)
	}
	if got := aws.ToString(fake.input.Key); got != "pa1/abcom/jo_doe_2.zip" {
		t.Errorf("Key = %q", got)
	}
	if got := aws.ToString(fake.input.IfNoneMatch); got != "*" {
		t.Errorf("IfNoneMatch = %q, want *", got)
	}
	if got := aws.ToInt64(fake.input.ContentLength); got != int64(len("zip bytes")) {
		t.Errorf("ContentLength = %d", got)
	}
	if fake.body != "zip bytes" {
		t.Errorf("body = %q", fake.body)
	}
}

func TestS3StoreErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"precondition failed", &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}, AlreadyExists},
		{"conditional conflict", &smithy.GenericAPIError{Code: "ConditionalRequestConflict"}, AlreadyExists},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, Transient},
		{"network", errors.New("dial tcp: connection refused"), Transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewS3Store(&fakeS3{err: tt.err}, "submissions", discardLogger())
			err := store.Upload(context.Background(), writeStaged(t, "x"), "k.zip")
			var se *Error
			if !errors.As(err, &se) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if se.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", se.Kind, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("storage error does not wrap the cause")
			}
		})
	}
}

func TestClassifyGCS(t *testing.T) {
	precondition := &googleapi.Error{Code: http.StatusPreconditionFailed, Message: "conditionNotMet"}
	if err := classifyGCS("b", "k", precondition); !IsAlreadyExists(err) {
		t.Errorf("412 classified as %v, want AlreadyExists", err)
	}

	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	if err := classifyGCS("b", "k", unavailable); IsAlreadyExists(err) {
		t.Errorf("503 classified as AlreadyExists")
	}

	if err := classifyGCS("b", "k", context.DeadlineExceeded); IsAlreadyExists(err) {
		t.Errorf("deadline classified as AlreadyExists")
	}
}
