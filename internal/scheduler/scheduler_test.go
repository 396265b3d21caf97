package scheduler

import (
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"geopulse/internal/issues"
	"geopulse/internal/stats"
	"geopulse/pkg/logging"
)

func newTestScheduler(t *testing.T, runAt string) (*Scheduler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	agg := stats.NewAggregator(stats.NewStore(sqlxDB), issues.MustNewExtractor(), logging.NewLogger())
	sched, err := NewScheduler(agg, runAt, logging.NewLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sched, mock
}

func TestNewSchedulerRejectsBadRunTime(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	agg := stats.NewAggregator(stats.NewStore(sqlx.NewDb(db, "sqlmock")), issues.MustNewExtractor(), logging.NewLogger())

	if _, err := NewScheduler(agg, "25:99", logging.NewLogger()); err == nil {
		t.Fatal("expected error for invalid run time")
	}
}

func TestNewSchedulerDefaultsRunTime(t *testing.T) {
	sched, _ := newTestScheduler(t, "")
	if sched.runAt != DefaultRunAt {
		t.Fatalf("expected default run time %s, got %s", DefaultRunAt, sched.runAt)
	}
}

func TestNextRunSameDayWhenInFuture(t *testing.T) {
	sched, _ := newTestScheduler(t, "23:59")
	sched.now = func() time.Time {
		return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	}
	next := sched.nextRun()
	want := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextRunRollsToTomorrowWhenPassed(t *testing.T) {
	sched, _ := newTestScheduler(t, "23:59")
	sched.now = func() time.Time {
		return time.Date(2026, 8, 30, 23, 59, 30, 0, time.UTC)
	}
	next := sched.nextRun()
	want := time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestTriggerRunComputesDay(t *testing.T) {
	sched, mock := newTestScheduler(t, "23:59")
	day := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	start, end := stats.DayBounds(day)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT geo_unit_id FROM sentiment_signals`)).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"geo_unit_id"}))

	written, err := sched.TriggerRun(day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 0 {
		t.Fatalf("expected 0 units, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTriggerRunRejectsOverlap(t *testing.T) {
	sched, mock := newTestScheduler(t, "23:59")
	day := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	start, end := stats.DayBounds(day)

	release := make(chan struct{})
	firstRunning := make(chan struct{})
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT geo_unit_id FROM sentiment_signals`)).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"geo_unit_id"}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.runMu.Lock()
		close(firstRunning)
		<-release
		sched.runMu.Unlock()
	}()

	<-firstRunning
	if _, err := sched.TriggerRun(day); err != ErrRunInProgress {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	close(release)
	wg.Wait()

	// After the lock is released the trigger succeeds.
	if _, err := sched.TriggerRun(day); err != nil {
		t.Fatalf("expected run after release, got %v", err)
	}
}

func TestRunOnceReportsToObserver(t *testing.T) {
	sched, mock := newTestScheduler(t, "23:59")
	day := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	start, end := stats.DayBounds(day)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT geo_unit_id FROM sentiment_signals`)).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"geo_unit_id"}))

	var calls int
	var gotWritten int
	var gotErr error
	sched.OnRun(func(written int, err error, elapsed time.Duration) {
		calls++
		gotWritten = written
		gotErr = err
	})

	sched.runOnce(day)
	if calls != 1 {
		t.Fatalf("expected observer to be called once, got %d", calls)
	}
	if gotErr != nil {
		t.Fatalf("unexpected error reported: %v", gotErr)
	}
	if gotWritten != 0 {
		t.Fatalf("expected 0 units, got %d", gotWritten)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunOnceReportsFailure(t *testing.T) {
	sched, mock := newTestScheduler(t, "23:59")
	day := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	start, end := stats.DayBounds(day)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT geo_unit_id FROM sentiment_signals`)).
		WithArgs(start, end).
		WillReturnError(errors.New("connection refused"))

	var gotErr error
	sched.OnRun(func(written int, err error, elapsed time.Duration) {
		gotErr = err
	})

	sched.runOnce(day)
	if gotErr == nil {
		t.Fatal("expected the observer to see the run failure")
	}
}

func TestStartStop(t *testing.T) {
	sched, _ := newTestScheduler(t, "23:59")
	sched.Start()
	sched.Stop()
}
