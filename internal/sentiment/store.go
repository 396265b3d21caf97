package sentiment

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geopulse/pkg/models"
)

// Store inserts sentiment signals.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// InsertSignal writes one immutable signal row.
func (s *Store) InsertSignal(ctx context.Context, sig models.SentimentSignal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sentiment_signals
		 (geo_unit_id, source_type, source_ref_id, label, score, confidence, model_version, relevance_weight, source_entity_type, source_entity_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		sig.GeoUnitID, sig.SourceType, sig.SourceRefID, sig.Label, sig.Score, sig.Confidence,
		sig.ModelVersion, sig.RelevanceWeight, sig.SourceEntityType, sig.SourceEntityID)
	if err != nil {
		return fmt.Errorf("insert sentiment signal for geo unit %d: %w", sig.GeoUnitID, err)
	}
	return nil
}
