// Package relevance assigns a weight to a sentiment signal based on how
// directly the source article mentions the target entity.
package relevance

import "geopulse/pkg/models"

const (
	candidateWeight = 1.0
	geoUnitWeight   = 0.8
	partyWeight     = 0.6
	fallbackWeight  = 0.4
)

// Target identifies the entity a signal is being weighted against. Any
// field may be nil when the caller has no target of that kind.
type Target struct {
	CandidateID *int64
	PartyID     *int64
	GeoUnitID   *int64
}

// Weight computes the relevance of a set of article mentions to a target.
// A mention of the target candidate always wins with 1.0. Otherwise the
// maximum among geo-unit and party matches applies, falling back to 0.4
// when nothing matches.
func Weight(mentions []models.EntityMention, target Target) float64 {
	best := 0.0
	for _, m := range mentions {
		switch m.EntityType {
		case models.EntityCandidate:
			if target.CandidateID != nil && m.EntityID == *target.CandidateID {
				return candidateWeight
			}
		case models.EntityGeoUnit:
			if target.GeoUnitID != nil && m.EntityID == *target.GeoUnitID && geoUnitWeight > best {
				best = geoUnitWeight
			}
		case models.EntityParty:
			if target.PartyID != nil && m.EntityID == *target.PartyID && partyWeight > best {
				best = partyWeight
			}
		}
	}
	if best == 0 {
		return fallbackWeight
	}
	return best
}

// BaseWeight returns the weight applied when a mention of the given type
// matches its target.
func BaseWeight(t models.EntityType) float64 {
	switch t {
	case models.EntityCandidate:
		return candidateWeight
	case models.EntityGeoUnit:
		return geoUnitWeight
	case models.EntityParty:
		return partyWeight
	default:
		return fallbackWeight
	}
}

// Weights exposes the weight table for introspection. The returned map is
// a copy.
func Weights() map[string]float64 {
	return map[string]float64{
		string(models.EntityCandidate): candidateWeight,
		string(models.EntityGeoUnit):   geoUnitWeight,
		string(models.EntityParty):     partyWeight,
		"FALLBACK":                     fallbackWeight,
	}
}
