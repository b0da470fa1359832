package jobqueue

import (
	"context"
	"errors"
	"sync"
	"video-gate/dto"
	"video-gate/pkg/metrics"

	"github.com/rs/zerolog"
)

var (
	ErrClosed = errors.New("job queue closed")
	ErrFull   = errors.New("job queue full")
)

type Handler func(ctx context.Context, message dto.JobMessage) error

// Pool is a bounded in-process queue drained by a fixed number of workers.
type Pool struct {
	jobs       chan dto.JobMessage
	handler    Handler
	numWorkers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(numWorkers, queueSize int, handler Handler) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		jobs:       make(chan dto.JobMessage, queueSize),
		handler:    handler,
		numWorkers: numWorkers,
	}
}

// Enqueue never blocks: a full queue is reported to the caller.
func (p *Pool) Enqueue(_ context.Context, message dto.JobMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- message:
		metrics.TranscodeQueueDepth.Set(float64(len(p.jobs)))
		return nil
	default:
		return ErrFull
	}
}

// Start runs the workers until ctx is done, then stops accepting jobs and lets
// the workers drain what is already queued. Running jobs are not cancelled.
func (p *Pool) Start(ctx context.Context) {
	jobCtx := context.WithoutCancel(ctx)
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go func(workerId int) {
			defer p.wg.Done()
			for msg := range p.jobs {
				metrics.TranscodeQueueDepth.Set(float64(len(p.jobs)))
				if err := p.handler(jobCtx, msg); err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Int("worker_id", workerId).Str("video_id", msg.VideoId).Msg("failed to handle job")
				}
			}
		}(i)
	}

	go func() {
		<-ctx.Done()
		p.Close()
	}()
}

// Close stops accepting jobs. Already queued jobs are still processed.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
