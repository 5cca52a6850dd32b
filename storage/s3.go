package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the part of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes objects to an S3 bucket using a conditional
// If-None-Match: * put.
type S3Store struct {
	client S3API
	bucket string
	logger *slog.Logger
}

func NewS3Store(client S3API, bucket string, logger *slog.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, logger: logger}
}

func (s *S3Store) Upload(ctx context.Context, localPath string, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &Error{Kind: Transient, Bucket: s.bucket, Key: key, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &Error{Kind: Transient, Bucket: s.bucket, Key: key, Err: err}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/zip"),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return classifyS3(s.bucket, key, err)
	}

	s.logger.Info("uploaded submission", "bucket", s.bucket, "key", key, "source", localPath)
	return nil
}

func classifyS3(bucket, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return &Error{Kind: AlreadyExists, Bucket: bucket, Key: key, Err: err}
		}
	}
	return &Error{Kind: Transient, Bucket: bucket, Key: key, Err: err}
}
