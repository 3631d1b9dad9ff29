package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Runner is a blocking drain loop: the in-memory queue or the RabbitMQ consumer
type Runner interface {
	Run(ctx context.Context) error
}

// Worker owns a Runner's goroutine and its graceful shutdown
type Worker struct {
	runner          Runner
	shutdownTimeout time.Duration
	logger          *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	err    error
	once   sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(runner Runner, shutdownTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		runner:          runner,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		done:            make(chan struct{}),
	}
}

// Start runs the drain loop in the background
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("Starting worker",
		slog.Duration("shutdown_timeout", w.shutdownTimeout),
	)

	go func() {
		defer close(w.done)
		if err := w.runner.Run(ctx); err != nil {
			w.logger.Error("Worker stopped with error",
				slog.Any("error", err),
			)
			w.err = err
		}
	}()
}

// Done is closed when the drain loop returns
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the drain loop's error once Done is closed
func (w *Worker) Err() error {
	<-w.done
	return w.err
}

// ErrShutdownTimeout is returned by Stop when the in-flight job outlives the timeout
var ErrShutdownTimeout = errors.New("worker shutdown timed out")

// Stop asks the loop to finish its in-flight job and waits up to the shutdown timeout.
// Stopping a worker that was never started returns immediately.
func (w *Worker) Stop() error {
	var err error
	w.once.Do(func() {
		if w.cancel == nil {
			return
		}

		w.logger.Info("Stopping worker...")
		w.cancel()

		timer := time.NewTimer(w.shutdownTimeout)
		defer timer.Stop()

		select {
		case <-w.done:
			w.logger.Info("Worker stopped")
		case <-timer.C:
			w.logger.Error("Worker did not stop in time; the in-flight job may be left processing",
				slog.Duration("shutdown_timeout", w.shutdownTimeout),
			)
			err = ErrShutdownTimeout
		}
	})
	return err
}
