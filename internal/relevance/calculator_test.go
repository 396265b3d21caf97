package relevance

import (
	"testing"

	"geopulse/pkg/models"
)

func ptr(v int64) *int64 { return &v }

func TestWeightCandidateMatchShortCircuits(t *testing.T) {
	mentions := []models.EntityMention{
		{EntityType: models.EntityParty, EntityID: 5},
		{EntityType: models.EntityCandidate, EntityID: 10},
	}
	target := Target{CandidateID: ptr(10), PartyID: ptr(5)}
	if got := Weight(mentions, target); got != 1.0 {
		t.Fatalf("expected candidate match to win with 1.0, got %v", got)
	}
}

func TestWeightCandidateBeatsGeoUnitRegardlessOfOrder(t *testing.T) {
	mentions := []models.EntityMention{
		{EntityType: models.EntityGeoUnit, EntityID: 3},
		{EntityType: models.EntityCandidate, EntityID: 10},
		{EntityType: models.EntityGeoUnit, EntityID: 4},
	}
	target := Target{CandidateID: ptr(10), GeoUnitID: ptr(3)}
	if got := Weight(mentions, target); got != 1.0 {
		t.Fatalf("expected 1.0, got %v", got)
	}
}

func TestWeightGeoUnitBeatsParty(t *testing.T) {
	mentions := []models.EntityMention{
		{EntityType: models.EntityParty, EntityID: 5},
		{EntityType: models.EntityGeoUnit, EntityID: 3},
	}
	target := Target{PartyID: ptr(5), GeoUnitID: ptr(3)}
	if got := Weight(mentions, target); got != 0.8 {
		t.Fatalf("expected geo-unit weight 0.8, got %v", got)
	}
}

func TestWeightPartyOnly(t *testing.T) {
	mentions := []models.EntityMention{
		{EntityType: models.EntityParty, EntityID: 5},
	}
	target := Target{PartyID: ptr(5)}
	if got := Weight(mentions, target); got != 0.6 {
		t.Fatalf("expected party weight 0.6, got %v", got)
	}
}

func TestWeightFallbackWhenNothingMatches(t *testing.T) {
	mentions := []models.EntityMention{
		{EntityType: models.EntityParty, EntityID: 99},
		{EntityType: models.EntityGeoUnit, EntityID: 98},
	}
	target := Target{CandidateID: ptr(1), PartyID: ptr(2), GeoUnitID: ptr(3)}
	if got := Weight(mentions, target); got != 0.4 {
		t.Fatalf("expected fallback weight 0.4, got %v", got)
	}
}

func TestWeightEmptyMentions(t *testing.T) {
	if got := Weight(nil, Target{CandidateID: ptr(1)}); got != 0.4 {
		t.Fatalf("expected fallback weight 0.4 for empty mentions, got %v", got)
	}
}

func TestWeightCandidateMentionForOtherCandidate(t *testing.T) {
	mentions := []models.EntityMention{
		{EntityType: models.EntityCandidate, EntityID: 99},
	}
	target := Target{CandidateID: ptr(10)}
	if got := Weight(mentions, target); got != 0.4 {
		t.Fatalf("expected 0.4 when candidate mention is not the target, got %v", got)
	}
}

func TestWeightsTableIsACopy(t *testing.T) {
	w := Weights()
	w[string(models.EntityCandidate)] = 0
	if Weights()[string(models.EntityCandidate)] != 1.0 {
		t.Fatalf("expected weights table to be immutable")
	}
}

func TestBaseWeight(t *testing.T) {
	if BaseWeight(models.EntityCandidate) != 1.0 {
		t.Fatalf("candidate base weight")
	}
	if BaseWeight(models.EntityGeoUnit) != 0.8 {
		t.Fatalf("geo-unit base weight")
	}
	if BaseWeight(models.EntityParty) != 0.6 {
		t.Fatalf("party base weight")
	}
}
