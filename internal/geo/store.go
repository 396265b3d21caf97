package geo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geopulse/pkg/models"
)

// Store reads the geo-unit tree from Postgres.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// UnitByID returns a single geo-unit.
func (s *Store) UnitByID(ctx context.Context, id int64) (*models.GeoUnit, error) {
	var unit models.GeoUnit
	err := s.db.GetContext(ctx, &unit,
		`SELECT id, code, name, level, parent_id, created_at FROM geo_units WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query geo unit %d: %w", id, err)
	}
	return &unit, nil
}

// UnitByNameLevel looks up a unit by exact name and level. Used to
// resolve the configured fallback state.
func (s *Store) UnitByNameLevel(ctx context.Context, name string, level models.GeoLevel) (*models.GeoUnit, error) {
	var unit models.GeoUnit
	err := s.db.GetContext(ctx, &unit,
		`SELECT id, code, name, level, parent_id, created_at FROM geo_units WHERE name = $1 AND level = $2`,
		name, level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query geo unit %q/%s: %w", name, level, err)
	}
	return &unit, nil
}

// UnitsByIDs returns the units whose IDs appear in ids. Missing IDs are
// simply absent from the result.
func (s *Store) UnitsByIDs(ctx context.Context, ids []int64) ([]models.GeoUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, code, name, level, parent_id, created_at FROM geo_units WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build geo units query: %w", err)
	}
	query = s.db.Rebind(query)

	var units []models.GeoUnit
	if err := s.db.SelectContext(ctx, &units, query, args...); err != nil {
		return nil, fmt.Errorf("query geo units: %w", err)
	}
	return units, nil
}

// ChildrenOf returns the direct children of the given parents.
func (s *Store) ChildrenOf(ctx context.Context, parentIDs []int64) ([]models.GeoUnit, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, code, name, level, parent_id, created_at FROM geo_units WHERE parent_id IN (?)`, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("build children query: %w", err)
	}
	query = s.db.Rebind(query)

	var units []models.GeoUnit
	if err := s.db.SelectContext(ctx, &units, query, args...); err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	return units, nil
}
