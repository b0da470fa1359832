package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"
	"video-gate/constant"
	"video-gate/dto"
	"video-gate/entities"
	"video-gate/storage"

	"github.com/rs/zerolog"
)

var (
	ErrNotRetryable  = errors.New("job is not in a retryable state")
	ErrSourceMissing = errors.New("source file no longer exists")
	ErrInvalidUpload = errors.New("invalid upload")
)

// Queue hands a job to whatever runs Service.Process.
type Queue interface {
	Enqueue(ctx context.Context, message dto.JobMessage) error
}

// DefaultStaleAfter is how long a queued or processing record may sit untouched
// before an operator retry is allowed to take it over.
const DefaultStaleAfter = 6 * time.Hour

// Scheduler owns the request-side half of a job: storing the raw upload,
// writing the queued record and handing the job to the queue.
type Scheduler struct {
	store      storage.Store
	queue      Queue
	sources    storage.SourceStore
	staleAfter time.Duration
	now        func() time.Time
}

func NewScheduler(store storage.Store, queue Queue, sources storage.SourceStore) *Scheduler {
	return &Scheduler{store: store, queue: queue, sources: sources, staleAfter: DefaultStaleAfter, now: time.Now}
}

// WithStaleAfter sets how old an unfinished record must be before Retry takes it over.
func (s *Scheduler) WithStaleAfter(d time.Duration) *Scheduler {
	if d > 0 {
		s.staleAfter = d
	}
	return s
}

// SaveUpload hands the uploaded body to the source store and returns its reference.
func (s *Scheduler) SaveUpload(ctx context.Context, videoID, filename string, body io.Reader) (string, error) {
	if !storage.ValidVideoID(videoID) {
		return "", fmt.Errorf("%w: video id %q", ErrInvalidUpload, videoID)
	}
	return s.sources.Save(ctx, videoID, filename, body)
}

// Schedule records the job as queued and enqueues it. It returns once the job is queued,
// never waiting for conversion.
func (s *Scheduler) Schedule(ctx context.Context, videoID, sourcePath, filename string) (entities.VideoJob, error) {
	return s.enqueue(ctx, entities.VideoJob{VideoID: videoID, SourcePath: sourcePath}, filename, 1)
}

// Retry re-enqueues a job whose source is still available. Failed jobs are always
// retryable; queued or processing jobs only once they have gone stale, which is
// what a worker crash leaves behind.
func (s *Scheduler) Retry(ctx context.Context, videoID string) (entities.VideoJob, error) {
	job, err := s.store.ReadStatus(ctx, videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return entities.VideoJob{}, ErrNotRetryable
		}
		return entities.VideoJob{}, err
	}
	if !s.retryable(*job) {
		return *job, ErrNotRetryable
	}
	ok, err := s.sources.Exists(ctx, job.SourcePath)
	if err != nil {
		return *job, fmt.Errorf("check source: %w", err)
	}
	if !ok {
		return *job, ErrSourceMissing
	}

	zerolog.Ctx(ctx).Info().
		Str("video_id", videoID).
		Str("status", string(job.Status)).
		Int("attempts", job.Attempts).
		Msg("operator retry")
	return s.enqueue(ctx, *job, path.Base(job.SourcePath), job.Attempts+1)
}

func (s *Scheduler) retryable(job entities.VideoJob) bool {
	if job.Status == constant.JobStatusFailed {
		return true
	}
	if job.Status.Terminal() {
		return false
	}
	var last time.Time
	for _, t := range []*time.Time{job.QueuedAt, job.StartedAt} {
		if t != nil && t.After(last) {
			last = *t
		}
	}
	return s.now().Sub(last) >= s.staleAfter
}

func (s *Scheduler) enqueue(ctx context.Context, job entities.VideoJob, filename string, attempt int) (entities.VideoJob, error) {
	queuedAt := s.now()
	job.Status = constant.JobStatusQueued
	job.Attempts = attempt
	job.QueuedAt = &queuedAt
	job.StartedAt = nil
	job.Error = ""
	job.FailedAt = nil
	job.CompletedAt = nil
	if err := s.store.WriteStatus(ctx, job.VideoID, job); err != nil {
		return job, fmt.Errorf("write queued status: %w", err)
	}

	message := dto.JobMessage{
		VideoId:    job.VideoID,
		SourcePath: job.SourcePath,
		FileName:   filename,
		Attempt:    attempt,
		QueuedAt:   queuedAt,
	}
	if err := s.queue.Enqueue(ctx, message); err != nil {
		failedAt := s.now()
		job.Status = constant.JobStatusFailed
		job.Error = fmt.Sprintf("enqueue: %v", err)
		job.FailedAt = &failedAt
		if writeErr := s.store.WriteStatus(ctx, job.VideoID, job); writeErr != nil {
			zerolog.Ctx(ctx).Error().Err(writeErr).Str("video_id", job.VideoID).Msg("failed to write failed status")
		}
		return job, fmt.Errorf("enqueue job: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("video_id", job.VideoID).Int("attempt", attempt).Msg("job queued")
	return job, nil
}

// Status reports the job state. Without a record a published playlist means
// completed (jobs older than status records) and anything else means processing.
func (s *Scheduler) Status(ctx context.Context, videoID string) (entities.VideoJob, error) {
	if !storage.ValidVideoID(videoID) {
		return entities.VideoJob{}, fmt.Errorf("%w: video id %q", ErrInvalidUpload, videoID)
	}
	job, err := s.store.ReadStatus(ctx, videoID)
	if err == nil {
		return *job, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return entities.VideoJob{}, err
	}

	ready, err := s.store.Exists(ctx, videoID, constant.PlaylistName)
	if err != nil {
		return entities.VideoJob{}, err
	}
	if ready {
		return entities.VideoJob{VideoID: videoID, Status: constant.JobStatusCompleted}, nil
	}
	return entities.VideoJob{VideoID: videoID, Status: constant.JobStatusProcessing}, nil
}
