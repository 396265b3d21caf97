package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"geopulse/pkg/models"
)

// Store reads sentiment signals and owns the daily_geo_stats table.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// GeoUnitIDsWithSignals returns the distinct geo-units that received at
// least one signal in [start, end).
func (s *Store) GeoUnitIDsWithSignals(ctx context.Context, start, end time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT geo_unit_id FROM sentiment_signals WHERE created_at >= $1 AND created_at < $2 ORDER BY geo_unit_id`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("query geo units with signals: %w", err)
	}
	return ids, nil
}

// SignalsForUnit returns a geo-unit's signals in [start, end).
func (s *Store) SignalsForUnit(ctx context.Context, geoUnitID int64, start, end time.Time) ([]models.SentimentSignal, error) {
	var signals []models.SentimentSignal
	err := s.db.SelectContext(ctx, &signals,
		`SELECT id, geo_unit_id, source_ref_id, label, score, confidence, relevance_weight, source_entity_type, source_entity_id, created_at
		 FROM sentiment_signals WHERE geo_unit_id = $1 AND created_at >= $2 AND created_at < $3 ORDER BY id`,
		geoUnitID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query signals for geo unit %d: %w", geoUnitID, err)
	}
	return signals, nil
}

// ArticleTexts returns title and summary for the given articles.
func (s *Store) ArticleTexts(ctx context.Context, articleIDs []int64) ([]models.NewsArticle, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, title, summary, url, created_at FROM news_articles WHERE id IN (?)`, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("build article texts query: %w", err)
	}
	query = s.db.Rebind(query)

	var articles []models.NewsArticle
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("query article texts: %w", err)
	}
	return articles, nil
}

// UpsertDailyStats writes the aggregate for (geo_unit_id, date),
// replacing any previous row for that key.
func (s *Store) UpsertDailyStats(ctx context.Context, stats models.DailyGeoStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_geo_stats (geo_unit_id, date, avg_sentiment, pulse_score, dominant_issue, signal_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (geo_unit_id, date)
		 DO UPDATE SET avg_sentiment = EXCLUDED.avg_sentiment,
		               pulse_score = EXCLUDED.pulse_score,
		               dominant_issue = EXCLUDED.dominant_issue,
		               signal_count = EXCLUDED.signal_count,
		               updated_at = NOW()`,
		stats.GeoUnitID, stats.Date, stats.AvgSentiment, stats.PulseScore, stats.DominantIssue, stats.SignalCount)
	if err != nil {
		return fmt.Errorf("upsert daily stats for geo unit %d: %w", stats.GeoUnitID, err)
	}
	return nil
}

// DailyStats returns up to days rows for a geo-unit ending at the most
// recent date, ordered ascending by date.
func (s *Store) DailyStats(ctx context.Context, geoUnitID int64, days int) ([]models.DailyGeoStats, error) {
	var rows []models.DailyGeoStats
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, geo_unit_id, date, avg_sentiment, pulse_score, dominant_issue, signal_count, updated_at
		 FROM (SELECT id, geo_unit_id, date, avg_sentiment, pulse_score, dominant_issue, signal_count, updated_at
		       FROM daily_geo_stats WHERE geo_unit_id = $1 ORDER BY date DESC LIMIT $2) recent
		 ORDER BY date ASC`,
		geoUnitID, days)
	if err != nil {
		return nil, fmt.Errorf("query daily stats for geo unit %d: %w", geoUnitID, err)
	}
	return rows, nil
}
