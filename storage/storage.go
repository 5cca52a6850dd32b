// Package storage uploads staged submission archives to object storage.
// Every backend writes once: uploading to a key that already holds an
// object fails with AlreadyExists and leaves that object untouched.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Store uploads the file at localPath under key in the configured bucket.
type Store interface {
	Upload(ctx context.Context, localPath string, key string) error
}

type Kind int

const (
	// Transient covers transport and service failures.
	Transient Kind = iota
	AlreadyExists
)

func (k Kind) String() string {
	switch k {
	case AlreadyExists:
		return "AlreadyExists"
	default:
		return "Transient"
	}
}

// Error is returned by every Store implementation.
type Error struct {
	Kind   Kind
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == AlreadyExists {
		return fmt.Sprintf("object %s/%s already exists", e.Bucket, e.Key)
	}
	return fmt.Sprintf("upload of %s/%s failed: %v", e.Bucket, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsAlreadyExists reports whether err is a write-once precondition failure.
func IsAlreadyExists(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == AlreadyExists
}
