package models

import (
	"fmt"
	"time"
)

// SentimentLabel is the discrete sentiment class assigned by the
// analysis service.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "POSITIVE"
	SentimentNegative SentimentLabel = "NEGATIVE"
	SentimentNeutral  SentimentLabel = "NEUTRAL"
)

// Valid reports whether l is a known label.
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	default:
		return false
	}
}

// ParseSentimentLabel validates a label string from the analysis service.
func ParseSentimentLabel(s string) (SentimentLabel, error) {
	l := SentimentLabel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown sentiment label %q", s)
	}
	return l, nil
}

// SourceTypeNews marks signals created from news articles. Other source
// types (social media, surveys) may join later.
const SourceTypeNews = "NEWS"

// SentimentSignal records one article's sentiment attributed to one
// geo-unit. Signals are immutable after creation.
type SentimentSignal struct {
	ID               int64          `json:"id" db:"id"`
	GeoUnitID        int64          `json:"geo_unit_id" db:"geo_unit_id"`
	SourceType       string         `json:"source_type" db:"source_type"`
	SourceRefID      int64          `json:"source_ref_id" db:"source_ref_id"`
	Label            SentimentLabel `json:"label" db:"label"`
	Score            float64        `json:"score" db:"score"`
	Confidence       float64        `json:"confidence" db:"confidence"`
	ModelVersion     *string        `json:"model_version,omitempty" db:"model_version"`
	RelevanceWeight  *float64       `json:"relevance_weight,omitempty" db:"relevance_weight"`
	SourceEntityType *EntityType    `json:"source_entity_type,omitempty" db:"source_entity_type"`
	SourceEntityID   *int64         `json:"source_entity_id,omitempty" db:"source_entity_id"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// GeoAttribution is one resolved geo-unit for an article, tagged with
// the mention that triggered it when one did.
type GeoAttribution struct {
	GeoUnitID        int64       `json:"geo_unit_id"`
	SourceEntityType *EntityType `json:"source_entity_type,omitempty"`
	SourceEntityID   *int64      `json:"source_entity_id,omitempty"`
}
