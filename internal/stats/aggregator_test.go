package stats

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"geopulse/internal/issues"
	"geopulse/pkg/logging"
)

func newTestAggregator(t *testing.T) (*Aggregator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewAggregator(NewStore(sqlxDB), issues.MustNewExtractor(), logging.NewLogger()), mock
}

func signalColumns() []string {
	return []string{"id", "geo_unit_id", "source_ref_id", "label", "score", "confidence", "relevance_weight", "source_entity_type", "source_entity_id", "created_at"}
}

func articleColumns() []string {
	return []string{"id", "title", "summary", "url", "created_at"}
}

func TestDayBounds(t *testing.T) {
	at := time.Date(2026, 8, 30, 17, 45, 12, 0, time.UTC)
	start, end := DayBounds(at)
	if !start.Equal(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", end)
	}
}

func TestComputeStatsForGeoUnitRoundsAverages(t *testing.T) {
	agg, mock := newTestAggregator(t)
	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	start, end := DayBounds(day)
	now := time.Now()

	// avg = (0.5 + -0.25) / 2 = 0.13 rounded.
	// pulse = (0.5*0.8*1.0 + -0.25*0.4*1.0) / 2 = 0.15.
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sentiment_signals WHERE geo_unit_id = $1`)).
		WithArgs(int64(7), start, end).
		WillReturnRows(sqlmock.NewRows(signalColumns()).
			AddRow(1, 7, 100, "POSITIVE", 0.5, 0.8, 1.0, nil, nil, now).
			AddRow(2, 7, 101, "NEGATIVE", -0.25, 0.4, nil, nil, nil, now))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM news_articles WHERE id IN`)).
		WithArgs(int64(100), int64(101)).
		WillReturnRows(sqlmock.NewRows(articleColumns()).
			AddRow(100, "Protest on main road", "A rally followed", "http://example.com/a", now).
			AddRow(101, "Cabinet meeting", nil, "http://example.com/b", now))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO daily_geo_stats`)).
		WithArgs(int64(7), start, 0.13, 0.15, "Unrest", 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	wrote, err := agg.ComputeStatsForGeoUnit(context.Background(), 7, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !wrote {
		t.Fatalf("expected a row to be written")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestComputeStatsForGeoUnitZeroSignalsWritesNothing(t *testing.T) {
	agg, mock := newTestAggregator(t)
	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	start, end := DayBounds(day)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sentiment_signals WHERE geo_unit_id = $1`)).
		WithArgs(int64(7), start, end).
		WillReturnRows(sqlmock.NewRows(signalColumns()))

	wrote, err := agg.ComputeStatsForGeoUnit(context.Background(), 7, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrote {
		t.Fatalf("expected no write for a day without signals")
	}
	// No insert is expected; ExpectationsWereMet fails if one ran.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestComputeStatsForGeoUnitNoArticleTextNullIssue(t *testing.T) {
	agg, mock := newTestAggregator(t)
	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	start, end := DayBounds(day)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sentiment_signals WHERE geo_unit_id = $1`)).
		WithArgs(int64(7), start, end).
		WillReturnRows(sqlmock.NewRows(signalColumns()).
			AddRow(1, 7, 100, "NEUTRAL", 0.0, 0.5, 1.0, nil, nil, now))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM news_articles WHERE id IN`)).
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows(articleColumns()))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO daily_geo_stats`)).
		WithArgs(int64(7), start, 0.0, 0.0, nil, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if _, err := agg.ComputeStatsForGeoUnit(context.Background(), 7, day); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComputeStatsForGeoUnitIsIdempotent(t *testing.T) {
	agg, mock := newTestAggregator(t)
	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	start, end := DayBounds(day)
	now := time.Now()

	// avg = (0.5 + -0.2) / 2 = 0.15
	// pulse = (0.5*0.8*1.0 + -0.2*0.9*0.8) / 2 = 0.13 rounded.
	// Recomputing the same day upserts the exact same values.
	for run := 0; run < 2; run++ {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM sentiment_signals WHERE geo_unit_id = $1`)).
			WithArgs(int64(7), start, end).
			WillReturnRows(sqlmock.NewRows(signalColumns()).
				AddRow(1, 7, 100, "POSITIVE", 0.5, 0.8, 1.0, nil, nil, now).
				AddRow(2, 7, 101, "NEGATIVE", -0.2, 0.9, 0.8, nil, nil, now))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM news_articles WHERE id IN`)).
			WithArgs(int64(100), int64(101)).
			WillReturnRows(sqlmock.NewRows(articleColumns()).
				AddRow(100, "Budget session opens", nil, "http://example.com/a", now).
				AddRow(101, "Cabinet reshuffle talk", nil, "http://example.com/b", now))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO daily_geo_stats`)).
			WithArgs(int64(7), start, 0.15, 0.13, nil, 2).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	for run := 0; run < 2; run++ {
		wrote, err := agg.ComputeStatsForGeoUnit(context.Background(), 7, day)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", run, err)
		}
		if !wrote {
			t.Fatalf("run %d: expected a row to be written", run)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestComputeDailyStatsIsolatesFailingUnits(t *testing.T) {
	agg, mock := newTestAggregator(t)
	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	start, end := DayBounds(day)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT geo_unit_id FROM sentiment_signals`)).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"geo_unit_id"}).AddRow(1).AddRow(2))

	// Unit 1 fails at the signal query.
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sentiment_signals WHERE geo_unit_id = $1`)).
		WithArgs(int64(1), start, end).
		WillReturnError(errors.New("connection reset"))

	// Unit 2 succeeds.
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sentiment_signals WHERE geo_unit_id = $1`)).
		WithArgs(int64(2), start, end).
		WillReturnRows(sqlmock.NewRows(signalColumns()).
			AddRow(9, 2, 200, "POSITIVE", 1.0, 1.0, 1.0, nil, nil, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM news_articles WHERE id IN`)).
		WithArgs(int64(200)).
		WillReturnRows(sqlmock.NewRows(articleColumns()))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO daily_geo_stats`)).
		WithArgs(int64(2), start, 1.0, 1.0, nil, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	written, err := agg.ComputeDailyStats(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 1 {
		t.Fatalf("expected 1 unit written, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetDailyStatsAscending(t *testing.T) {
	agg, mock := newTestAggregator(t)
	now := time.Now()
	d1 := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM daily_geo_stats WHERE geo_unit_id = $1`)).
		WithArgs(int64(7), 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "geo_unit_id", "date", "avg_sentiment", "pulse_score", "dominant_issue", "signal_count", "updated_at"}).
			AddRow(1, 7, d1, 0.1, 0.2, "Water", 4, now).
			AddRow(2, 7, d2, -0.3, -0.1, nil, 9, now))

	rows, err := agg.GetDailyStats(context.Background(), 7, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || !rows[0].Date.Equal(d1) || !rows[1].Date.Equal(d2) {
		t.Fatalf("expected ascending rows, got %v", rows)
	}
}

func TestGetDailyStatsDefaultsWindow(t *testing.T) {
	agg, mock := newTestAggregator(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM daily_geo_stats WHERE geo_unit_id = $1`)).
		WithArgs(int64(7), 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "geo_unit_id", "date", "avg_sentiment", "pulse_score", "dominant_issue", "signal_count", "updated_at"}))

	if _, err := agg.GetDailyStats(context.Background(), 7, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
