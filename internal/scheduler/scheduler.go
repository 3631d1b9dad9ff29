package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer zeroes balances whose expiry has passed
type Expirer interface {
	ExpireBalances(ctx context.Context) (int64, error)
}

// Scheduler runs the credit expiry sweep on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	expirer Expirer
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler; nothing runs until Start
func NewScheduler(expirer Expirer, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))

	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		expirer: expirer,
		timeout: 5 * time.Minute,
		logger:  logger,
	}
}

// Start registers the sweep under schedule and starts the cron loop
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep %q: %w", schedule, err)
	}

	s.logger.Info("Scheduled credit expiry sweep", slog.String("schedule", schedule))
	s.cron.Start()
	return nil
}

// Sweep runs one expiry pass
func (s *Scheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	expired, err := s.expirer.ExpireBalances(ctx)
	if err != nil {
		s.logger.Error("Credit expiry sweep failed", slog.Any("error", err))
		return
	}

	s.logger.Info("Credit expiry sweep completed",
		slog.Int64("expired", expired),
		slog.Duration("duration", time.Since(start)),
	)
}

// Stop stops scheduling and returns a context done when a running sweep finishes
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
