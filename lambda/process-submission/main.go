package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"submitflow/backend/config"
	"submitflow/backend/db"
	"submitflow/backend/mail"
	"submitflow/backend/pipeline"
	"submitflow/backend/storage"
	"submitflow/backend/utils"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("unable to load SDK config: %v", err)
	}

	store, err := newStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		log.Fatalf("failed to set up storage: %v", err)
	}

	recorder, err := newRecorder(ctx, cfg, awsCfg)
	if err != nil {
		log.Fatalf("failed to set up status records: %v", err)
	}

	p := pipeline.New(pipeline.Deps{
		Fetcher:    utils.NewFetcher(&http.Client{Timeout: cfg.FetchTimeout}),
		Store:      store,
		Notifier:   mail.NewNotifier(newSESClient(awsCfg, cfg.EmailRegion), cfg.SenderEmail, cfg.EmailSignature, cfg.EmailTimeout, logger),
		Recorder:   recorder,
		StagingDir: cfg.StagingDir,
		Logger:     logger,
	})

	logger.Info("submission worker ready",
		"storage_provider", cfg.StorageProvider,
		"bucket", cfg.BucketName,
		"status_backend", cfg.StatusBackend,
		"table", cfg.TableName,
	)
	lambda.Start(p.Handle)
}

func newStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StorageProvider {
	case config.StorageS3:
		return storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.BucketName, logger), nil
	case config.StorageLocal:
		return storage.NewLocalStore(cfg.StorageDir, logger)
	default:
		client, err := storage.NewGCSClient(ctx, cfg.GoogleCredentials)
		if err != nil {
			return nil, err
		}
		return storage.NewGCSStore(client, cfg.BucketName, logger), nil
	}
}

func newRecorder(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (db.Recorder, error) {
	if cfg.StatusBackend == config.StatusPostgres {
		rec, err := db.NewPostgres(ctx, cfg.PostgresDSN, cfg.TableName)
		if err != nil {
			return nil, err
		}
		if err := rec.Migrate(ctx); err != nil {
			rec.Close()
			return nil, err
		}
		return rec, nil
	}
	return db.NewDynamoRecorder(dynamodb.NewFromConfig(awsCfg), cfg.TableName), nil
}

// SES may live in a different region than the function itself.
func newSESClient(awsCfg aws.Config, region string) *ses.Client {
	return ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		o.Region = region
	})
}
