package models

import "fmt"

// EntityType classifies what an article mention points at. The set is
// closed; code switching on it must handle every case.
type EntityType string

const (
	EntityGeoUnit   EntityType = "GEO_UNIT"
	EntityCandidate EntityType = "CANDIDATE"
	EntityParty     EntityType = "PARTY"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityGeoUnit, EntityCandidate, EntityParty:
		return true
	default:
		return false
	}
}

// ParseEntityType validates an entity type string from storage or an API
// request.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

// EntityMention links an article to a candidate, party, or geo-unit.
// Duplicates may exist in storage but are treated as a set per type.
type EntityMention struct {
	ID         int64      `json:"id" db:"id"`
	ArticleID  int64      `json:"article_id" db:"article_id"`
	EntityType EntityType `json:"entity_type" db:"entity_type"`
	EntityID   int64      `json:"entity_id" db:"entity_id"`
}

// Candidate is a monitored political candidate.
type Candidate struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Party is a political party.
type Party struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// CandidateProfile ties a candidate to their home constituency and party.
// One profile per candidate.
type CandidateProfile struct {
	CandidateID      int64  `json:"candidate_id" db:"candidate_id"`
	PrimaryGeoUnitID *int64 `json:"primary_geo_unit_id,omitempty" db:"primary_geo_unit_id"`
	PartyID          *int64 `json:"party_id,omitempty" db:"party_id"`
}
