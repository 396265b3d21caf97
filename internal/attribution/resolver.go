// Package attribution resolves which geo-units a news article is about.
// Resolution is a strict waterfall: direct geo-unit mentions win, then
// candidate home constituencies, then a party-triggered state fallback,
// then the untagged state fallback.
package attribution

import (
	"context"
	"time"

	"geopulse/internal/geo"
	"geopulse/pkg/cache"
	"geopulse/pkg/logging"
	"geopulse/pkg/models"
)

const fallbackCacheKey = "fallback-state-unit"

// Config controls the fallback behavior of the resolver.
type Config struct {
	// FallbackStateName is the name of the state-level unit used when an
	// article carries no resolvable geo signal. Empty disables fallback.
	FallbackStateName string
}

// Resolver implements the attribution waterfall. The fallback state unit
// is resolved lazily on first use and cached; InvalidateFallback forces a
// re-resolution.
type Resolver struct {
	store    *Store
	geoStore *geo.Store
	cfg      Config
	logger   logging.Logger
	fallback *cache.Cache
}

func NewResolver(store *Store, geoStore *geo.Store, cfg Config, logger logging.Logger) *Resolver {
	return &Resolver{
		store:    store,
		geoStore: geoStore,
		cfg:      cfg,
		logger:   logger,
		// A missing fallback unit is retried after a minute rather than
		// pinning the degraded state for the process lifetime.
		fallback: cache.New(cache.Options{TTL: 24 * time.Hour, NegativeTTL: time.Minute, MaxEntries: 1}),
	}
}

// InvalidateFallback drops the cached fallback unit so the next resolve
// looks it up again.
func (r *Resolver) InvalidateFallback() {
	r.fallback.Delete(fallbackCacheKey)
}

// fallbackUnit returns the configured state-level fallback unit, or nil
// when none is configured or the lookup finds nothing.
func (r *Resolver) fallbackUnit(ctx context.Context) *models.GeoUnit {
	if r.cfg.FallbackStateName == "" {
		return nil
	}
	val, ok, err := r.fallback.Get(ctx, fallbackCacheKey, func(ctx context.Context, _ string) (interface{}, bool, error) {
		unit, err := r.geoStore.UnitByNameLevel(ctx, r.cfg.FallbackStateName, models.GeoLevelState)
		if err != nil {
			return nil, false, err
		}
		if unit == nil {
			return nil, false, nil
		}
		return unit, true, nil
	})
	if err != nil {
		r.logger.WithError(err).WithField("state", r.cfg.FallbackStateName).Warn("Failed to resolve fallback state unit")
		return nil
	}
	if !ok {
		r.logger.WithField("state", r.cfg.FallbackStateName).Warn("Fallback state unit not found, fallback paths degrade to empty")
		return nil
	}
	return val.(*models.GeoUnit)
}

// Resolve maps an article to its attributed geo-units. The result is
// deduplicated by geo-unit with insertion order preserved; when two
// mentions resolve to the same unit the later mention's tag wins.
func (r *Resolver) Resolve(ctx context.Context, articleID int64) ([]models.GeoAttribution, error) {
	mentions, err := r.store.MentionsByArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	var geoMentions, candidateMentions, partyMentions []models.EntityMention
	for _, m := range mentions {
		switch m.EntityType {
		case models.EntityGeoUnit:
			geoMentions = append(geoMentions, m)
		case models.EntityCandidate:
			candidateMentions = append(candidateMentions, m)
		case models.EntityParty:
			partyMentions = append(partyMentions, m)
		}
	}

	// Step 1: direct geo-unit mentions are authoritative.
	if len(geoMentions) > 0 {
		return collectDirect(geoMentions), nil
	}

	// Step 2: candidate mentions resolve through home constituencies.
	if len(candidateMentions) > 0 {
		attrs, err := r.resolveViaCandidates(ctx, candidateMentions)
		if err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			return attrs, nil
		}
		// No candidate had a resolvable profile; fall through.
	}

	fallback := r.fallbackUnit(ctx)
	if fallback == nil {
		return nil, nil
	}

	// Step 3: party mentions pin the fallback unit, tagged by the first
	// party mentioned.
	if len(partyMentions) > 0 {
		entityType := models.EntityParty
		partyID := partyMentions[0].EntityID
		return []models.GeoAttribution{{
			GeoUnitID:        fallback.ID,
			SourceEntityType: &entityType,
			SourceEntityID:   &partyID,
		}}, nil
	}

	// Step 4: untagged fallback.
	return []models.GeoAttribution{{GeoUnitID: fallback.ID}}, nil
}

func collectDirect(geoMentions []models.EntityMention) []models.GeoAttribution {
	order := make([]int64, 0, len(geoMentions))
	seen := make(map[int64]bool, len(geoMentions))
	for _, m := range geoMentions {
		if !seen[m.EntityID] {
			seen[m.EntityID] = true
			order = append(order, m.EntityID)
		}
	}
	attrs := make([]models.GeoAttribution, 0, len(order))
	for _, id := range order {
		entityType := models.EntityGeoUnit
		unitID := id
		attrs = append(attrs, models.GeoAttribution{
			GeoUnitID:        id,
			SourceEntityType: &entityType,
			SourceEntityID:   &unitID,
		})
	}
	return attrs
}

func (r *Resolver) resolveViaCandidates(ctx context.Context, candidateMentions []models.EntityMention) ([]models.GeoAttribution, error) {
	candidateIDs := make([]int64, 0, len(candidateMentions))
	seen := make(map[int64]bool, len(candidateMentions))
	for _, m := range candidateMentions {
		if !seen[m.EntityID] {
			seen[m.EntityID] = true
			candidateIDs = append(candidateIDs, m.EntityID)
		}
	}

	profiles, err := r.store.ProfilesByCandidateIDs(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}
	byCandidate := make(map[int64]models.CandidateProfile, len(profiles))
	for _, p := range profiles {
		byCandidate[p.CandidateID] = p
	}

	// Dedup by geo-unit keeping insertion order; a later candidate
	// sharing a unit replaces the tag.
	order := make([]int64, 0, len(candidateIDs))
	tags := make(map[int64]int64, len(candidateIDs))
	for _, candidateID := range candidateIDs {
		profile, ok := byCandidate[candidateID]
		if !ok || profile.PrimaryGeoUnitID == nil {
			continue
		}
		unitID := *profile.PrimaryGeoUnitID
		if _, exists := tags[unitID]; !exists {
			order = append(order, unitID)
		}
		tags[unitID] = candidateID
	}

	attrs := make([]models.GeoAttribution, 0, len(order))
	for _, unitID := range order {
		entityType := models.EntityCandidate
		candidateID := tags[unitID]
		attrs = append(attrs, models.GeoAttribution{
			GeoUnitID:        unitID,
			SourceEntityType: &entityType,
			SourceEntityID:   &candidateID,
		})
	}
	return attrs, nil
}
