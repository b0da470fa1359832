package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"video-gate/config"
	"video-gate/handler"
	"video-gate/pkg/rabbitmq"

	"github.com/rs/zerolog"
)

// RunWorker consumes transcode jobs from RabbitMQ without serving HTTP.
// It returns the first error that stopped it; a signal-driven shutdown is not an error.
func RunWorker(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runWorker(ctx, cfg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("worker stopped with error")
		return err
	}
	zerolog.Ctx(ctx).Info().Msg("worker shutdown")
	return nil
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	store, sources, err := newStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if cfg.Storage.Driver != "minio" {
		zerolog.Ctx(ctx).Warn().
			Str("root", cfg.Storage.Root).
			Str("raw_dir", cfg.Storage.RawDir).
			Msg("fs storage: root and raw_dir must be on a volume shared with the server")
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}

	deps := handler.ServiceDependencies{
		TranscodeService: newTranscoder(cfg, store, sources),
	}
	consumer := rabbitmq.NewConsumer(conn, cfg.RabbitMQ, cfg.Server.Workers, handler.JobHandler)
	if err := consumer.Consume(ctx, deps); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("transcode consumer: %w", err)
	}
	return nil
}
