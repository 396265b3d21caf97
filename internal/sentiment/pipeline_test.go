package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"geopulse/internal/attribution"
	"geopulse/internal/geo"
	"geopulse/pkg/logging"
	"geopulse/pkg/models"
)

func analysisStub(t *testing.T, result AnalysisResult) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(result)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, srv *httptest.Server) (*Pipeline, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	logger := logging.NewLogger()
	resolver := attribution.NewResolver(
		attribution.NewStore(sqlxDB),
		geo.NewStore(sqlxDB),
		attribution.Config{FallbackStateName: "Karnataka"},
		logger,
	)
	return NewPipeline(NewClient(srv.URL, logger), resolver, NewStore(sqlxDB), logger), mock
}

func TestAnalyzeAndStoreWritesOneSignalPerGeoUnit(t *testing.T) {
	srv := analysisStub(t, AnalysisResult{
		Label: models.SentimentNegative, Score: -0.6, Confidence: 0.9, ModelVersion: "v3",
	})
	pipeline, mock := newTestPipeline(t, srv)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM entity_mentions WHERE article_id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "article_id", "entity_type", "entity_id"}).
			AddRow(1, 42, "GEO_UNIT", 7).
			AddRow(2, 42, "GEO_UNIT", 8))

	// Direct geo mentions carry the geo-unit base weight.
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sentiment_signals`)).
		WithArgs(int64(7), "NEWS", int64(42), "NEGATIVE", -0.6, 0.9, "v3", 0.8, "GEO_UNIT", int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sentiment_signals`)).
		WithArgs(int64(8), "NEWS", int64(42), "NEGATIVE", -0.6, 0.9, "v3", 0.8, "GEO_UNIT", int64(8)).
		WillReturnResult(sqlmock.NewResult(2, 1))

	written, err := pipeline.AnalyzeAndStore(context.Background(), 42, "protest text", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 2 {
		t.Fatalf("expected 2 signals, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAnalyzeAndStoreExplicitGeoUnitSkipsResolver(t *testing.T) {
	srv := analysisStub(t, AnalysisResult{
		Label: models.SentimentPositive, Score: 0.3, Confidence: 0.7, ModelVersion: "v3",
	})
	pipeline, mock := newTestPipeline(t, srv)

	// No mentions query: the explicit unit bypasses attribution and gets
	// the untagged fallback weight.
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sentiment_signals`)).
		WithArgs(int64(9), "NEWS", int64(43), "POSITIVE", 0.3, 0.7, "v3", 0.4, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	explicit := int64(9)
	written, err := pipeline.AnalyzeAndStore(context.Background(), 43, "text", &explicit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 1 {
		t.Fatalf("expected 1 signal, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAnalyzeAndStoreNoResolutionStoresNothing(t *testing.T) {
	srv := analysisStub(t, AnalysisResult{
		Label: models.SentimentNeutral, Score: 0, Confidence: 0.5, ModelVersion: "v3",
	})
	pipeline, mock := newTestPipeline(t, srv)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM entity_mentions WHERE article_id = $1`)).
		WithArgs(int64(44)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "article_id", "entity_type", "entity_id"}))
	// Fallback lookup finds nothing.
	mock.ExpectQuery(regexp.QuoteMeta(`FROM geo_units WHERE name = $1 AND level = $2`)).
		WithArgs("Karnataka", models.GeoLevelState).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "level", "parent_id", "created_at"}))

	written, err := pipeline.AnalyzeAndStore(context.Background(), 44, "text", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 0 {
		t.Fatalf("expected no signals, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAnalyzeAndStoreInsertFailureIsolated(t *testing.T) {
	srv := analysisStub(t, AnalysisResult{
		Label: models.SentimentNegative, Score: -0.6, Confidence: 0.9, ModelVersion: "v3",
	})
	pipeline, mock := newTestPipeline(t, srv)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM entity_mentions WHERE article_id = $1`)).
		WithArgs(int64(45)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "article_id", "entity_type", "entity_id"}).
			AddRow(1, 45, "GEO_UNIT", 7).
			AddRow(2, 45, "GEO_UNIT", 8))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sentiment_signals`)).
		WithArgs(int64(7), "NEWS", int64(45), "NEGATIVE", -0.6, 0.9, "v3", 0.8, "GEO_UNIT", int64(7)).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sentiment_signals`)).
		WithArgs(int64(8), "NEWS", int64(45), "NEGATIVE", -0.6, 0.9, "v3", 0.8, "GEO_UNIT", int64(8)).
		WillReturnResult(sqlmock.NewResult(2, 1))

	written, err := pipeline.AnalyzeAndStore(context.Background(), 45, "text", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 1 {
		t.Fatalf("expected 1 signal despite first insert failing, got %d", written)
	}
}
