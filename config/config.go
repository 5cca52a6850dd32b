package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	StorageGCS   = "gcs"
	StorageS3    = "s3"
	StorageLocal = "local"

	StatusDynamoDB = "dynamodb"
	StatusPostgres = "postgres"
)

// Config holds everything the submission worker needs. It is built once
// at cold start and passed down; nothing below main reads the environment.
type Config struct {
	// Email
	SenderEmail    string
	EmailSignature string
	EmailTimeout   time.Duration

	// AWS
	AWSRegion   string
	EmailRegion string

	// Object storage
	StorageProvider   string
	BucketName        string
	StorageDir        string
	GoogleCredentials string

	// Status records
	StatusBackend string
	TableName     string
	PostgresDSN   string

	// Download
	StagingDir   string
	FetchTimeout time.Duration

	LogLevel slog.Level
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := func(key, defaultValue string) string {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		SenderEmail:       env("SENDER_EMAIL", ""),
		EmailSignature:    env("EMAIL_SIGNATURE", "Course Staff"),
		AWSRegion:         env("AWS_REGION", "us-east-1"),
		StorageProvider:   strings.ToLower(env("STORAGE_PROVIDER", StorageGCS)),
		BucketName:        env("BUCKET_NAME", ""),
		StorageDir:        env("STORAGE_DIR", ""),
		GoogleCredentials: env("GOOGLE_CREDENTIALS", ""),
		StatusBackend:     strings.ToLower(env("STATUS_BACKEND", StatusDynamoDB)),
		TableName:         env("TABLE_NAME", ""),
		PostgresDSN:       env("POSTGRES_DSN", ""),
		StagingDir:        env("STAGING_DIR", os.TempDir()),
	}

	cfg.EmailRegion = env("EMAIL_REGION", cfg.AWSRegion)

	var errs []error

	var err error
	if cfg.FetchTimeout, err = time.ParseDuration(env("FETCH_TIMEOUT", "60s")); err != nil {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT: %w", err))
	}
	if cfg.EmailTimeout, err = time.ParseDuration(env("EMAIL_TIMEOUT", "10s")); err != nil {
		errs = append(errs, fmt.Errorf("EMAIL_TIMEOUT: %w", err))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.SenderEmail == "" {
		errs = append(errs, errors.New("SENDER_EMAIL is required"))
	}
	if c.TableName == "" {
		errs = append(errs, errors.New("TABLE_NAME is required"))
	}

	switch c.StorageProvider {
	case StorageGCS, StorageS3:
		if c.BucketName == "" {
			errs = append(errs, fmt.Errorf("BUCKET_NAME is required for storage provider %q", c.StorageProvider))
		}
	case StorageLocal:
		if c.StorageDir == "" {
			errs = append(errs, errors.New("STORAGE_DIR is required for storage provider \"local\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_PROVIDER %q", c.StorageProvider))
	}

	switch c.StatusBackend {
	case StatusDynamoDB:
	case StatusPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for status backend \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STATUS_BACKEND %q", c.StatusBackend))
	}

	if c.FetchTimeout < 0 || c.EmailTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}

	return errors.Join(errs...)
}
