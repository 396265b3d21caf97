// Package pulse computes a candidate's weighted sentiment pulse:
// the average of score × confidence × relevance over a recent window,
// with a trend classification and the articles that drove it.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"geopulse/internal/relevance"
	"geopulse/pkg/logging"
	"geopulse/pkg/models"
)

// ErrCandidateNotFound is returned for unknown candidate IDs.
var ErrCandidateNotFound = errors.New("candidate not found")

// trendThreshold is the minimum change in average effective score for
// the trend to register as RISING or DECLINING.
const trendThreshold = 0.15

// DefaultWindowDays is the pulse window when the caller does not pick one.
const DefaultWindowDays = 7

// Service computes candidate pulse summaries.
type Service struct {
	store  *Store
	logger logging.Logger
	now    func() time.Time
}

func NewService(store *Store, logger logging.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

type scoredSignal struct {
	row            signalRow
	effectiveScore float64
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// CalculatePulse computes the pulse summary for a candidate over the
// last days days.
func (s *Service) CalculatePulse(ctx context.Context, candidateID int64, days int) (*models.CandidatePulse, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	return s.calculate(ctx, candidateID, days, false)
}

// calculate takes days literally; a zero-day window is a valid (empty)
// series point.
func (s *Service) calculate(ctx context.Context, candidateID int64, days int, skipTrend bool) (*models.CandidatePulse, error) {
	candidate, err := s.store.candidateByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, fmt.Errorf("candidate %d: %w", candidateID, ErrCandidateNotFound)
	}

	profile, err := s.store.profileByCandidateID(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	var targetGeoUnitID *int64
	if profile != nil {
		targetGeoUnitID = profile.PrimaryGeoUnitID
	}

	end := s.now()
	start := end.AddDate(0, 0, -days)

	rows, err := s.store.signalsForCandidate(ctx, candidateID, candidate.PartyID, targetGeoUnitID, start, end)
	if err != nil {
		return nil, err
	}

	partyName := ""
	if candidate.PartyName != nil {
		partyName = *candidate.PartyName
	}

	result := &models.CandidatePulse{
		CandidateID:      candidateID,
		CandidateName:    candidate.Name,
		PartyName:        partyName,
		Trend:            models.TrendStable,
		ArticlesAnalyzed: len(rows),
		TimeWindowDays:   days,
		LastUpdated:      end,
		TopDrivers:       []models.PulseDriver{},
	}
	if len(rows) == 0 {
		return result, nil
	}

	scored, err := s.scoreSignals(ctx, rows, candidateID, candidate.PartyID, targetGeoUnitID)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, sc := range scored {
		total += sc.effectiveScore
	}
	result.PulseScore = round4(total / float64(len(scored)))

	if !skipTrend {
		result.Trend = s.trend(scored)
	}
	result.TopDrivers = topDrivers(scored, 5)
	return result, nil
}

// scoreSignals attaches effective scores, recomputing relevance from
// article mentions for legacy signals stored without a weight.
func (s *Service) scoreSignals(ctx context.Context, rows []signalRow, candidateID int64, partyID, geoUnitID *int64) ([]scoredSignal, error) {
	var legacyArticles []int64
	seen := make(map[int64]bool)
	for _, row := range rows {
		if row.RelevanceWeight == nil && !seen[row.SourceRefID] {
			seen[row.SourceRefID] = true
			legacyArticles = append(legacyArticles, row.SourceRefID)
		}
	}
	mentionsByArticle, err := s.store.mentionsByArticles(ctx, legacyArticles)
	if err != nil {
		return nil, err
	}

	target := relevance.Target{CandidateID: &candidateID, PartyID: partyID, GeoUnitID: geoUnitID}
	scored := make([]scoredSignal, 0, len(rows))
	for _, row := range rows {
		weight := 0.0
		if row.RelevanceWeight != nil {
			weight = *row.RelevanceWeight
		}
		if weight == 0 {
			weight = relevance.Weight(mentionsByArticle[row.SourceRefID], target)
		}
		row.RelevanceWeight = &weight
		scored = append(scored, scoredSignal{
			row:            row,
			effectiveScore: row.Score * row.Confidence * weight,
		})
	}
	return scored, nil
}

// trend compares the last two days' average effective score against the
// whole window's.
func (s *Service) trend(scored []scoredSignal) models.PulseTrend {
	if len(scored) < 2 {
		return models.TrendStable
	}

	twoDaysAgo := s.now().AddDate(0, 0, -2)
	recentSum, recentN := 0.0, 0
	totalSum := 0.0
	for _, sc := range scored {
		totalSum += sc.effectiveScore
		if !sc.row.CreatedAt.Before(twoDaysAgo) {
			recentSum += sc.effectiveScore
			recentN++
		}
	}
	if recentN == 0 {
		return models.TrendStable
	}

	delta := recentSum/float64(recentN) - totalSum/float64(len(scored))
	switch {
	case delta > trendThreshold:
		return models.TrendRising
	case delta < -trendThreshold:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// topDrivers returns the n signals with the largest absolute effective
// score. Ties keep the newest-first fetch order.
func topDrivers(scored []scoredSignal, n int) []models.PulseDriver {
	ranked := make([]scoredSignal, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].effectiveScore) > math.Abs(ranked[j].effectiveScore)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	drivers := make([]models.PulseDriver, 0, len(ranked))
	for _, sc := range ranked {
		drivers = append(drivers, models.PulseDriver{
			ArticleID:       sc.row.SourceRefID,
			Headline:        sc.row.ArticleTitle,
			Sentiment:       sc.row.Label,
			SentimentScore:  sc.row.Score,
			Confidence:      sc.row.Confidence,
			RelevanceWeight: *sc.row.RelevanceWeight,
			EffectiveScore:  sc.effectiveScore,
			PublishedAt:     sc.row.PublishedAt,
		})
	}
	return drivers
}

// PulseTrendSeries computes a per-day pulse series for charting: one
// point per window ending today, shrinking from days down to zero.
func (s *Service) PulseTrendSeries(ctx context.Context, candidateID int64, days int) ([]models.PulsePoint, error) {
	if days <= 0 {
		days = 30
	}
	points := make([]models.PulsePoint, 0, days+1)
	for i := days; i >= 0; i-- {
		pulse, err := s.calculate(ctx, candidateID, i, true)
		if err != nil {
			return nil, err
		}
		date := s.now().AddDate(0, 0, -i)
		points = append(points, models.PulsePoint{
			Date:       date.Format("2006-01-02"),
			PulseScore: pulse.PulseScore,
		})
	}
	return points, nil
}
