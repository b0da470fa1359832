package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	"video-gate/catalog"
	"video-gate/config"
	"video-gate/handler"
	"video-gate/pkg/jobqueue"
	"video-gate/pkg/rabbitmq"
	"video-gate/service"
	"video-gate/token"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// RunHttp serves the HTTP API and runs transcode workers in the same process:
// an in-memory pool, or a RabbitMQ consumer when queue.driver is rabbitmq.
func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.IsProduction()).Send()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHttp(ctx, cfg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("server stopped with error")
		return err
	}
	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return nil
}

func runHttp(ctx context.Context, cfg *config.Config) error {
	repo, err := newRepository(cfg)
	if err != nil {
		return err
	}
	store, sources, err := newStores(ctx, cfg)
	if err != nil {
		return err
	}
	transcoder := newTranscoder(cfg, store, sources)
	courses := catalog.NewResolver(repo, cfg.Catalog.RefreshInterval)

	g, gctx := errgroup.WithContext(ctx)

	var queue service.Queue
	switch cfg.Queue.Driver {
	case "rabbitmq":
		conn, err := config.NewRabbitMQConn(gctx, cfg.RabbitMQ)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		publisher, err := rabbitmq.NewPublisher(gctx, conn, cfg.RabbitMQ)
		if err != nil {
			return fmt.Errorf("rabbitmq publisher: %w", err)
		}
		defer publisher.Close()
		queue = publisher

		consumer := rabbitmq.NewConsumer(conn, cfg.RabbitMQ, cfg.Server.Workers, handler.JobHandler)
		deps := handler.ServiceDependencies{TranscodeService: transcoder}
		g.Go(func() error {
			err := consumer.Consume(gctx, deps)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	default:
		pool := jobqueue.NewPool(cfg.Server.Workers, cfg.Server.QueueSize, transcoder.Process)
		pool.Start(gctx)
		defer func() {
			pool.Close()
			pool.Wait()
		}()
		queue = pool
	}

	scheduler := service.NewScheduler(store, queue, sources).WithStaleAfter(cfg.Queue.StaleAfter)

	router := NewRouter(RouterDependencies{
		Videos: &handler.VideoHandler{
			Scheduler:      scheduler,
			Evaluator:      newEvaluator(cfg, courses, repo, store),
			Issuer:         token.NewIssuer(cfg.Token.Secret),
			Courses:        courses,
			Store:          store,
			MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		},
		AuthSecret: cfg.Auth.Secret,
		Logger:     *zerolog.Ctx(ctx),
	})

	srv := &http.Server{
		Handler:           router,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		zerolog.Ctx(gctx).Info().Str("addr", srv.Addr).Str("queue", cfg.Queue.Driver).Str("storage", cfg.Storage.Driver).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zerolog.Ctx(gctx).Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
