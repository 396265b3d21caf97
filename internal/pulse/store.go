package pulse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"geopulse/pkg/models"
)

// candidateRow is a candidate joined with their party name.
type candidateRow struct {
	ID        int64   `db:"id"`
	Name      string  `db:"name"`
	PartyID   *int64  `db:"party_id"`
	PartyName *string `db:"party_name"`
}

// signalRow is a signal joined with its source article.
type signalRow struct {
	ID              int64                 `db:"id"`
	GeoUnitID       int64                 `db:"geo_unit_id"`
	SourceRefID     int64                 `db:"source_ref_id"`
	Label           models.SentimentLabel `db:"label"`
	Score           float64               `db:"score"`
	Confidence      float64               `db:"confidence"`
	RelevanceWeight *float64              `db:"relevance_weight"`
	CreatedAt       time.Time             `db:"created_at"`
	ArticleTitle    string                `db:"article_title"`
	PublishedAt     *time.Time            `db:"published_at"`
}

// Store reads candidates, profiles, and their attributed signals.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) candidateByID(ctx context.Context, id int64) (*candidateRow, error) {
	var row candidateRow
	err := s.db.GetContext(ctx, &row,
		`SELECT c.id, c.name, p.id AS party_id, p.name AS party_name
		 FROM candidates c LEFT JOIN parties p ON p.id = c.party_id
		 WHERE c.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query candidate %d: %w", id, err)
	}
	return &row, nil
}

func (s *Store) profileByCandidateID(ctx context.Context, id int64) (*models.CandidateProfile, error) {
	var profile models.CandidateProfile
	err := s.db.GetContext(ctx, &profile,
		`SELECT candidate_id, primary_geo_unit_id, party_id FROM candidate_profiles WHERE candidate_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile for candidate %d: %w", id, err)
	}
	return &profile, nil
}

// signalsForCandidate returns every signal in [start, end] attributable
// to the candidate: tagged by the candidate, their party, or their home
// constituency, plus legacy untagged signals whose article mentions any
// of those entities. Ordered newest first.
func (s *Store) signalsForCandidate(ctx context.Context, candidateID int64, partyID, geoUnitID *int64, start, end time.Time) ([]signalRow, error) {
	var rows []signalRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT sig.id, sig.geo_unit_id, sig.source_ref_id, sig.label, sig.score, sig.confidence,
		        sig.relevance_weight, sig.created_at,
		        a.title AS article_title, a.published_at
		 FROM sentiment_signals sig
		 JOIN news_articles a ON a.id = sig.source_ref_id
		 WHERE sig.created_at >= $1 AND sig.created_at <= $2
		   AND (
		     (sig.source_entity_type = 'CANDIDATE' AND sig.source_entity_id = $3)
		     OR (sig.source_entity_type = 'PARTY' AND sig.source_entity_id = $4)
		     OR (sig.source_entity_type = 'GEO_UNIT' AND sig.source_entity_id = $5)
		     OR (sig.relevance_weight IS NULL AND EXISTS (
		       SELECT 1 FROM entity_mentions m
		       WHERE m.article_id = sig.source_ref_id
		         AND ((m.entity_type = 'CANDIDATE' AND m.entity_id = $3)
		           OR (m.entity_type = 'PARTY' AND m.entity_id = $4)
		           OR (m.entity_type = 'GEO_UNIT' AND m.entity_id = $5))
		     ))
		   )
		 ORDER BY sig.created_at DESC`,
		start, end, candidateID, partyID, geoUnitID)
	if err != nil {
		return nil, fmt.Errorf("query signals for candidate %d: %w", candidateID, err)
	}
	return rows, nil
}

// mentionsByArticles returns mentions for the given articles, used to
// recompute relevance for legacy signals stored without a weight.
func (s *Store) mentionsByArticles(ctx context.Context, articleIDs []int64) (map[int64][]models.EntityMention, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, article_id, entity_type, entity_id FROM entity_mentions WHERE article_id IN (?)`, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("build mentions query: %w", err)
	}
	query = s.db.Rebind(query)

	var mentions []models.EntityMention
	if err := s.db.SelectContext(ctx, &mentions, query, args...); err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}
	byArticle := make(map[int64][]models.EntityMention, len(articleIDs))
	for _, m := range mentions {
		byArticle[m.ArticleID] = append(byArticle[m.ArticleID], m)
	}
	return byArticle, nil
}
