package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"video-gate/constant"
	"video-gate/dto"
	"video-gate/entities"
	"video-gate/pkg/metrics"
	"video-gate/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrTranscodeFailed = errors.New("transcode failed")

// Service converts uploaded sources into published HLS output. Jobs for the
// same video id run one at a time; different ids run concurrently.
type Service interface {
	Process(ctx context.Context, message dto.JobMessage) error
}

type service struct {
	store   storage.Store
	sources storage.SourceStore
	encoder Encoder
	workDir string
	locks   *keyedMutex
	now     func() time.Time
}

func NewService(store storage.Store, sources storage.SourceStore, encoder Encoder, workDir string) Service {
	return &service{
		store:   store,
		sources: sources,
		encoder: encoder,
		workDir: workDir,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

func (s *service) Process(ctx context.Context, message dto.JobMessage) (err error) {
	logger := zerolog.Ctx(ctx).With().Str("video_id", message.VideoId).Int("attempt", message.Attempt).Logger()
	ctx = logger.WithContext(ctx)

	if !storage.ValidVideoID(message.VideoId) {
		logger.Error().Msg("dropping job with invalid video id")
		return fmt.Errorf("%w: invalid video id %q", ErrTranscodeFailed, message.VideoId)
	}

	unlock := s.locks.Lock(message.VideoId)
	defer unlock()

	started := s.now()
	job := s.record(ctx, message)
	job.Status = constant.JobStatusProcessing
	job.StartedAt = &started
	if err := s.store.WriteStatus(ctx, message.VideoId, job); err != nil {
		logger.Error().Err(err).Msg("failed to write processing status")
		return fmt.Errorf("%w: %w", ErrTranscodeFailed, err)
	}
	logger.Info().Str("source", message.SourcePath).Msg("processing job")

	defer func() {
		metrics.TranscodeDuration.Observe(s.now().Sub(started).Seconds())
		if err == nil {
			metrics.TranscodeJobsTotal.WithLabelValues(string(constant.JobStatusCompleted)).Inc()
			return
		}
		metrics.TranscodeJobsTotal.WithLabelValues(string(constant.JobStatusFailed)).Inc()
		failedAt := s.now()
		job.Status = constant.JobStatusFailed
		job.Error = err.Error()
		job.FailedAt = &failedAt
		if updateErr := s.store.WriteStatus(ctx, message.VideoId, job); updateErr != nil {
			logger.Error().Err(updateErr).Msg("failed to write failed status")
		}
		logger.Error().Err(err).Msg("job failed, source kept for manual retry")
		err = errors.Join(ErrTranscodeFailed, err)
	}()

	tempDir := filepath.Join(s.workDir, message.VideoId+"-"+uuid.NewString())
	defer os.RemoveAll(tempDir)
	outputDir := filepath.Join(tempDir, "output")
	if err = os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	logger.Info().Msg("fetch source")
	sourcePath, err := s.sources.Localize(ctx, message.SourcePath, tempDir)
	if err != nil {
		return fmt.Errorf("source file: %w", err)
	}

	logger.Info().Msg("transcode file")
	if err = s.encoder.Encode(ctx, sourcePath, outputDir); err != nil {
		return err
	}
	if _, err = os.Stat(filepath.Join(outputDir, constant.PlaylistName)); err != nil {
		return fmt.Errorf("encoder produced no playlist: %w", err)
	}

	logger.Info().Msg("publish segments")
	if err = s.store.Publish(ctx, message.VideoId, outputDir); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if removeErr := s.sources.Remove(ctx, message.SourcePath); removeErr != nil {
		logger.Warn().Err(removeErr).Msg("failed to delete source file")
	}

	completedAt := s.now()
	job.Status = constant.JobStatusCompleted
	job.SourcePath = ""
	job.Error = ""
	job.CompletedAt = &completedAt
	if err = s.store.WriteStatus(ctx, message.VideoId, job); err != nil {
		return fmt.Errorf("write completed status: %w", err)
	}

	logger.Info().Dur("took", completedAt.Sub(started)).Msg("job completed")
	return nil
}

// record starts from the existing status record so queue metadata survives.
func (s *service) record(ctx context.Context, message dto.JobMessage) entities.VideoJob {
	job := entities.VideoJob{VideoID: message.VideoId}
	if existing, err := s.store.ReadStatus(ctx, message.VideoId); err == nil {
		job = *existing
	} else if !errors.Is(err, storage.ErrNotFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("unreadable status record, starting fresh")
	}
	job.SourcePath = message.SourcePath
	job.Attempts = max(message.Attempt, 1)
	job.Error = ""
	job.FailedAt = nil
	job.CompletedAt = nil
	if job.QueuedAt == nil && !message.QueuedAt.IsZero() {
		queuedAt := message.QueuedAt
		job.QueuedAt = &queuedAt
	}
	return job
}
