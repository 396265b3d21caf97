package models

import "time"

// DailyGeoStats is the per-day aggregate of sentiment signals for one
// geo-unit. Rows are owned by the aggregator and recomputed idempotently;
// a row for (geo_unit_id, date) is safe to discard and rebuild.
type DailyGeoStats struct {
	ID            int64     `json:"id" db:"id"`
	GeoUnitID     int64     `json:"geo_unit_id" db:"geo_unit_id"`
	Date          time.Time `json:"date" db:"date"`
	AvgSentiment  float64   `json:"avg_sentiment" db:"avg_sentiment"`
	PulseScore    float64   `json:"pulse_score" db:"pulse_score"`
	DominantIssue *string   `json:"dominant_issue,omitempty" db:"dominant_issue"`
	SignalCount   int       `json:"signal_count" db:"signal_count"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PulseTrend classifies the direction of a candidate's recent pulse
// relative to the full window.
type PulseTrend string

const (
	TrendRising    PulseTrend = "RISING"
	TrendStable    PulseTrend = "STABLE"
	TrendDeclining PulseTrend = "DECLINING"
)

// PulseDriver is one article that contributed strongly to a candidate's
// pulse, ranked by the magnitude of its effective score.
type PulseDriver struct {
	ArticleID       int64          `json:"article_id"`
	Headline        string         `json:"headline"`
	Sentiment       SentimentLabel `json:"sentiment"`
	SentimentScore  float64        `json:"sentiment_score"`
	Confidence      float64        `json:"confidence"`
	RelevanceWeight float64        `json:"relevance_weight"`
	EffectiveScore  float64        `json:"effective_score"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
}

// CandidatePulse is the computed pulse summary for a candidate over a
// window of days.
type CandidatePulse struct {
	CandidateID      int64         `json:"candidate_id"`
	CandidateName    string        `json:"candidate_name"`
	PartyName        string        `json:"party_name,omitempty"`
	PulseScore       float64       `json:"pulse_score"`
	Trend            PulseTrend    `json:"trend"`
	ArticlesAnalyzed int           `json:"articles_analyzed"`
	TimeWindowDays   int           `json:"time_window_days"`
	LastUpdated      time.Time     `json:"last_updated"`
	TopDrivers       []PulseDriver `json:"top_drivers"`
}

// PulsePoint is one day of a candidate's pulse time series.
type PulsePoint struct {
	Date       string  `json:"date"`
	PulseScore float64 `json:"pulse_score"`
}
