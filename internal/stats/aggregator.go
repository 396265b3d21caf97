// Package stats computes the daily per-geo-unit sentiment aggregates.
// Aggregation is idempotent: a day can be recomputed at any time and the
// stored row converges to the same values.
package stats

import (
	"context"
	"math"
	"strings"
	"time"

	"geopulse/internal/issues"
	"geopulse/pkg/logging"
	"geopulse/pkg/models"
)

// Aggregator computes and stores DailyGeoStats rows.
type Aggregator struct {
	store     *Store
	extractor *issues.Extractor
	logger    logging.Logger
}

func NewAggregator(store *Store, extractor *issues.Extractor, logger logging.Logger) *Aggregator {
	return &Aggregator{store: store, extractor: extractor, logger: logger}
}

// DayBounds normalizes t to its UTC day: midnight and the following
// midnight. The midnight value is the stats row key.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeDailyStats aggregates every geo-unit that received signals on
// the day containing t. A failing unit is logged and skipped so one bad
// row cannot abort the whole run. Returns the number of units written.
func (a *Aggregator) ComputeDailyStats(ctx context.Context, t time.Time) (int, error) {
	start, end := DayBounds(t)
	unitIDs, err := a.store.GeoUnitIDsWithSignals(ctx, start, end)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, unitID := range unitIDs {
		wrote, err := a.ComputeStatsForGeoUnit(ctx, unitID, t)
		if err != nil {
			a.logger.WithError(err).WithFields(logging.Fields{
				"geo_unit_id": unitID,
				"date":        start.Format("2006-01-02"),
			}).Error("Failed to compute daily stats for geo unit")
			continue
		}
		if wrote {
			written++
		}
	}

	a.logger.WithFields(logging.Fields{
		"date":          start.Format("2006-01-02"),
		"units_total":   len(unitIDs),
		"units_written": written,
	}).Info("Daily stats run complete")
	return written, nil
}

// ComputeStatsForGeoUnit aggregates one geo-unit for the day containing
// t and upserts the result. A day without signals writes nothing; the
// bool reports whether a row was written.
func (a *Aggregator) ComputeStatsForGeoUnit(ctx context.Context, geoUnitID int64, t time.Time) (bool, error) {
	start, end := DayBounds(t)
	signals, err := a.store.SignalsForUnit(ctx, geoUnitID, start, end)
	if err != nil {
		return false, err
	}
	if len(signals) == 0 {
		return false, nil
	}

	var scoreSum, pulseSum float64
	articleIDs := make([]int64, 0, len(signals))
	seenArticles := make(map[int64]bool, len(signals))
	for _, sig := range signals {
		scoreSum += sig.Score
		weight := 1.0
		if sig.RelevanceWeight != nil {
			weight = *sig.RelevanceWeight
		}
		pulseSum += sig.Score * sig.Confidence * weight
		if !seenArticles[sig.SourceRefID] {
			seenArticles[sig.SourceRefID] = true
			articleIDs = append(articleIDs, sig.SourceRefID)
		}
	}

	n := float64(len(signals))
	row := models.DailyGeoStats{
		GeoUnitID:    geoUnitID,
		Date:         start,
		AvgSentiment: round2(scoreSum / n),
		PulseScore:   round2(pulseSum / n),
		SignalCount:  len(signals),
	}

	dominant, err := a.dominantIssue(ctx, articleIDs)
	if err != nil {
		// The issue label is decoration on top of the numeric aggregate;
		// a failed text fetch must not lose the day's numbers.
		a.logger.WithError(err).WithField("geo_unit_id", geoUnitID).Warn("Failed to extract dominant issue")
	} else {
		row.DominantIssue = dominant
	}

	if err := a.store.UpsertDailyStats(ctx, row); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Aggregator) dominantIssue(ctx context.Context, articleIDs []int64) (*string, error) {
	articles, err := a.store.ArticleTexts(ctx, articleIDs)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	for _, art := range articles {
		sb.WriteString(art.Title)
		sb.WriteString(" ")
		if art.Summary != nil {
			sb.WriteString(*art.Summary)
			sb.WriteString(" ")
		}
	}
	return a.extractor.Dominant(sb.String()), nil
}

// GetDailyStats returns the last days of aggregates for a geo-unit in
// ascending date order.
func (a *Aggregator) GetDailyStats(ctx context.Context, geoUnitID int64, days int) ([]models.DailyGeoStats, error) {
	if days <= 0 {
		days = 7
	}
	return a.store.DailyStats(ctx, geoUnitID, days)
}
