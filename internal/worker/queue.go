package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
)

// ErrQueueClosed is returned by Enqueue after the queue stopped draining
var ErrQueueClosed = errors.New("queue is closed")

// Snapshot is the observable state of the in-memory queue
type Snapshot struct {
	Waiting    int  `json:"waiting"`
	Processing bool `json:"processing"`
}

// MemoryQueue is an unbounded in-process FIFO drained by a single goroutine.
// At most one payload is being handled at any instant.
type MemoryQueue struct {
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	pending []*domain.QueuePayload
	closed  bool

	wake chan struct{}
	busy atomic.Bool
}

// NewMemoryQueue creates a queue that hands payloads to handler
func NewMemoryQueue(handler Handler, logger *slog.Logger) *MemoryQueue {
	return &MemoryQueue{
		handler: handler,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue appends payload to the tail and wakes the drain loop
func (q *MemoryQueue) Enqueue(_ context.Context, payload *domain.QueuePayload) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if payload.EnqueuedAt.IsZero() {
		payload.EnqueuedAt = time.Now()
	}
	q.pending = append(q.pending, payload)
	waiting := len(q.pending)
	q.mu.Unlock()

	q.logger.Debug("Job enqueued",
		slog.String("job_id", payload.JobID),
		slog.Int("waiting", waiting),
	)

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return nil
}

// Snapshot reports how many payloads wait and whether one is in flight
func (q *MemoryQueue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Snapshot{Waiting: len(q.pending), Processing: q.busy.Load()}
}

// Run drains the queue until ctx is canceled. A payload already being handled
// runs to completion; payloads still waiting are dropped and logged.
func (q *MemoryQueue) Run(ctx context.Context) error {
	q.logger.Info("In-memory job queue started")

	for {
		if ctx.Err() != nil {
			return q.close()
		}

		payload := q.next()
		if payload == nil {
			select {
			case <-ctx.Done():
				return q.close()
			case <-q.wake:
				continue
			}
		}

		q.handler.Process(context.WithoutCancel(ctx), payload)
		q.busy.Store(false)
	}
}

// next pops the head and marks the queue busy under the same lock
func (q *MemoryQueue) next() *domain.QueuePayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	payload := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.busy.Store(true)
	return payload
}

func (q *MemoryQueue) close() error {
	q.mu.Lock()
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(dropped) > 0 {
		ids := make([]string, 0, len(dropped))
		for _, p := range dropped {
			ids = append(ids, p.JobID)
		}
		q.logger.Warn("In-memory job queue stopped with waiting jobs; they stay queued with credits reserved",
			slog.Int("count", len(dropped)),
			slog.Any("job_ids", ids),
		)
	}

	q.logger.Info("In-memory job queue stopped")
	return nil
}
