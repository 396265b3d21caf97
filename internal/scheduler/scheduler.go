// Package scheduler runs the daily stats aggregation at a configured
// time of day.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geopulse/internal/stats"
	"geopulse/pkg/logging"
)

// DefaultRunAt is the daily run time when STATS_RUN_AT is not set. The
// end-of-day run catches the whole day's signals.
const DefaultRunAt = "23:59"

// Scheduler triggers the daily stats aggregation.
type Scheduler struct {
	logger     logging.Logger
	aggregator *stats.Aggregator
	runAt      string
	stopChan   chan bool
	runMu      sync.Mutex
	now        func() time.Time
	onRun      func(written int, err error, elapsed time.Duration)
}

// OnRun registers an observer invoked after every scheduled run. Call
// it before Start.
func (s *Scheduler) OnRun(fn func(written int, err error, elapsed time.Duration)) {
	s.onRun = fn
}

// NewScheduler creates a scheduler that runs the aggregator once a day
// at runAt (HH:MM, 24-hour clock).
func NewScheduler(aggregator *stats.Aggregator, runAt string, logger logging.Logger) (*Scheduler, error) {
	if runAt == "" {
		runAt = DefaultRunAt
	}
	if _, err := time.Parse("15:04", runAt); err != nil {
		return nil, fmt.Errorf("invalid run time %q: %w", runAt, err)
	}
	return &Scheduler{
		logger:     logger,
		aggregator: aggregator,
		runAt:      runAt,
		stopChan:   make(chan bool),
		now:        time.Now,
	}, nil
}

// nextRun returns the next occurrence of the configured time of day.
func (s *Scheduler) nextRun() time.Time {
	now := s.now()
	at, _ := time.Parse("15:04", s.runAt)
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start begins the daily run loop.
func (s *Scheduler) Start() {
	s.logger.WithFields(logging.Fields{
		"run_at": s.runAt,
	}).Info("Starting daily stats scheduler")

	go s.run()
}

// Stop stops the scheduler. A run already in progress finishes.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping daily stats scheduler")
	close(s.stopChan)
}

func (s *Scheduler) run() {
	for {
		next := s.nextRun()
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			s.runOnce(next)
		case <-s.stopChan:
			timer.Stop()
			s.logger.Info("Stopping daily stats runner")
			return
		}
	}
}

// runOnce performs one scheduled aggregation and reports it to the
// observer.
func (s *Scheduler) runOnce(t time.Time) {
	s.logger.Info("Running scheduled daily stats aggregation")
	start := s.now()
	written, err := s.TriggerRun(t)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled daily stats run failed")
	}
	if s.onRun != nil {
		s.onRun(written, err, elapsed)
	}
}

// ErrRunInProgress is returned when a trigger overlaps a running
// aggregation.
var ErrRunInProgress = fmt.Errorf("stats run already in progress")

// TriggerRun runs the aggregation for the day containing t. Overlapping
// runs are rejected rather than queued. Returns the number of geo-units
// written.
func (s *Scheduler) TriggerRun(t time.Time) (int, error) {
	if !s.runMu.TryLock() {
		return 0, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return s.aggregator.ComputeDailyStats(ctx, t)
}
