package attribution

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geopulse/pkg/models"
)

// Store reads article mentions and candidate profiles.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// MentionsByArticle returns every entity mention for an article, in
// insertion order.
func (s *Store) MentionsByArticle(ctx context.Context, articleID int64) ([]models.EntityMention, error) {
	var mentions []models.EntityMention
	err := s.db.SelectContext(ctx, &mentions,
		`SELECT id, article_id, entity_type, entity_id FROM entity_mentions WHERE article_id = $1 ORDER BY id`,
		articleID)
	if err != nil {
		return nil, fmt.Errorf("query mentions for article %d: %w", articleID, err)
	}
	return mentions, nil
}

// ProfilesByCandidateIDs returns the profiles for the given candidates.
// Candidates without a profile are absent from the result.
func (s *Store) ProfilesByCandidateIDs(ctx context.Context, candidateIDs []int64) ([]models.CandidateProfile, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT candidate_id, primary_geo_unit_id, party_id FROM candidate_profiles WHERE candidate_id IN (?)`,
		candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("build profiles query: %w", err)
	}
	query = s.db.Rebind(query)

	var profiles []models.CandidateProfile
	if err := s.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("query candidate profiles: %w", err)
	}
	return profiles, nil
}
