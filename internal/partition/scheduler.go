package partition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Default cron schedules, evaluated in UTC.
const (
	DefaultHourlySchedule = "5 * * * *"
	DefaultDailySchedule  = "30 0 * * *"
)

// Scheduler runs hourly and daily scan passes on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	scanner *Scanner
	logger  *slog.Logger
	now     func() time.Time

	// one pass per kind at a time; a tick that overlaps a running pass is skipped
	mu      sync.Mutex
	running map[string]bool
}

// NewScheduler creates a Scheduler. Empty schedules fall back to the
// defaults.
func NewScheduler(scanner *Scanner, hourly, daily string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if hourly == "" {
		hourly = DefaultHourlySchedule
	}
	if daily == "" {
		daily = DefaultDailySchedule
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		scanner: scanner,
		logger:  logger,
		now:     time.Now,
		running: make(map[string]bool),
	}

	if _, err := s.cron.AddFunc(hourly, func() { s.trigger(PassHourly) }); err != nil {
		return nil, fmt.Errorf("invalid hourly schedule %q: %w", hourly, err)
	}
	if _, err := s.cron.AddFunc(daily, func() { s.trigger(PassDaily) }); err != nil {
		return nil, fmt.Errorf("invalid daily schedule %q: %w", daily, err)
	}
	s.logger.Info("scheduled scan passes", "hourly", hourly, "daily", daily)
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("partition scheduler started")
}

// Stop stops the scheduler and waits for running passes to finish or ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("partition scheduler stop timed out")
	}
	s.logger.Info("partition scheduler stopped")
}

// RunHourly scans the current UTC hour.
func (s *Scheduler) RunHourly(ctx context.Context) (*PassResult, error) {
	return s.scanner.RunHourlyPass(ctx, s.now())
}

// RunDaily scans the current UTC day.
func (s *Scheduler) RunDaily(ctx context.Context) (*PassResult, error) {
	return s.scanner.RunDailyPass(ctx, s.now())
}

func (s *Scheduler) trigger(kind string) {
	s.mu.Lock()
	if s.running[kind] {
		s.mu.Unlock()
		s.logger.Warn("scan pass still running, skipping tick", "kind", kind)
		return
	}
	s.running[kind] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[kind] = false
		s.mu.Unlock()
	}()

	ctx := context.Background()
	var err error
	switch kind {
	case PassHourly:
		_, err = s.RunHourly(ctx)
	case PassDaily:
		_, err = s.RunDaily(ctx)
	}
	if err != nil {
		s.logger.Warn("scheduled scan pass failed", "kind", kind, "error", err)
	}
}
