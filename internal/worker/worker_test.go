package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuongbtq/genesis-be/shared/logger"
	"github.com/stretchr/testify/assert"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestWorker_StopWaitsForRunner(t *testing.T) {
	finished := make(chan struct{})
	w := NewWorker(runnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		close(finished)
		return nil
	}), time.Second, logger.NewDiscard())

	w.Start(context.Background())
	assert.NoError(t, w.Stop())

	select {
	case <-finished:
	default:
		t.Fatal("runner was not waited for")
	}
	assert.NoError(t, w.Err())
}

func TestWorker_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	w := NewWorker(runnerFunc(func(ctx context.Context) error {
		<-block
		return nil
	}), 20*time.Millisecond, logger.NewDiscard())

	w.Start(context.Background())
	assert.ErrorIs(t, w.Stop(), ErrShutdownTimeout)
}

func TestWorker_RunnerError(t *testing.T) {
	boom := errors.New("delivery channel closed")
	w := NewWorker(runnerFunc(func(ctx context.Context) error {
		return boom
	}), time.Second, logger.NewDiscard())

	w.Start(context.Background())
	<-w.Done()
	assert.ErrorIs(t, w.Err(), boom)
}

func TestWorker_StopBeforeStart(t *testing.T) {
	w := NewWorker(runnerFunc(func(ctx context.Context) error {
		return nil
	}), time.Minute, logger.NewDiscard())

	start := time.Now()
	assert.NoError(t, w.Stop())
	assert.Less(t, time.Since(start), time.Second)
}
