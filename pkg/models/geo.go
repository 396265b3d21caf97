package models

import (
	"fmt"
	"time"
)

// GeoLevel is the level of a node in the administrative-area tree.
type GeoLevel string

const (
	GeoLevelState        GeoLevel = "STATE"
	GeoLevelDistrict     GeoLevel = "DISTRICT"
	GeoLevelConstituency GeoLevel = "CONSTITUENCY"
)

// Valid reports whether l is a known level.
func (l GeoLevel) Valid() bool {
	switch l {
	case GeoLevelState, GeoLevelDistrict, GeoLevelConstituency:
		return true
	default:
		return false
	}
}

// ParseGeoLevel validates a level string from an API request.
func ParseGeoLevel(s string) (GeoLevel, error) {
	l := GeoLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown geo level %q", s)
	}
	return l, nil
}

// GeoUnit is a node in the administrative-area tree. Every non-root unit
// has exactly one parent; the tree has no cycles.
type GeoUnit struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Level     GeoLevel  `json:"level" db:"level"`
	ParentID  *int64    `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// GeoUnitTree is a geo-unit with its descendant subtree, nested for
// display.
type GeoUnitTree struct {
	Unit     GeoUnit        `json:"unit"`
	Children []*GeoUnitTree `json:"children,omitempty"`
}
