package server

import (
	"context"
	"fmt"
	"os"
	"video-gate/catalog"
	"video-gate/config"
	"video-gate/constant"
	"video-gate/entitlement"
	"video-gate/repository"
	"video-gate/service"
	"video-gate/storage"

	"github.com/rs/zerolog"
)

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

// newStores builds the published-output store and the raw upload store. With minio both
// live in the bucket so a worker on another host can fetch the upload; with fs both are
// local directories.
func newStores(ctx context.Context, cfg *config.Config) (storage.Store, storage.SourceStore, error) {
	switch cfg.Storage.Driver {
	case "minio":
		client, err := config.NewMinIO(cfg.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("minio client: %w", err)
		}
		store := storage.NewMinIOStore(client, cfg.MinIO.Bucket, cfg.MinIO.Prefix)
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return store, storage.NewMinIOSources(client, cfg.MinIO.Bucket, cfg.MinIO.Prefix), nil
	default:
		store, err := storage.NewFSStore(cfg.Storage.Root)
		if err != nil {
			return nil, nil, err
		}
		sources, err := storage.NewLocalSources(cfg.Storage.RawDir)
		if err != nil {
			return nil, nil, err
		}
		return store, sources, nil
	}
}

func newTranscoder(cfg *config.Config, store storage.Store, sources storage.SourceStore) service.Service {
	encoder := service.NewFFmpegEncoder(cfg.FFmpeg.Path, cfg.FFmpeg.SegmentSeconds)
	return service.NewService(store, sources, encoder, cfg.Storage.WorkDir)
}

func newRepository(cfg *config.Config) (repository.Repository, error) {
	db, err := config.NewDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return repository.NewRepo(db), nil
}

func newEvaluator(cfg *config.Config, courses *catalog.Resolver, repo repository.Repository, store storage.Store) *entitlement.Evaluator {
	policy := entitlement.Policy{
		UnassignedTTL: cfg.Token.UnassignedTTL,
		FreeTTL:       cfg.Token.FreeTTL,
		MaxTTL:        cfg.Token.MaxTTL,
	}
	return entitlement.NewEvaluator(courses, repo, store, policy)
}
