package sentiment

import (
	"context"
	"fmt"

	"geopulse/internal/attribution"
	"geopulse/internal/relevance"
	"geopulse/pkg/logging"
	"geopulse/pkg/models"
)

// Pipeline runs the full analyze-and-store flow for one article: call
// the analysis service, resolve geo attributions, and write one signal
// per resolved geo-unit.
type Pipeline struct {
	client   *Client
	resolver *attribution.Resolver
	store    *Store
	logger   logging.Logger
}

func NewPipeline(client *Client, resolver *attribution.Resolver, store *Store, logger logging.Logger) *Pipeline {
	return &Pipeline{client: client, resolver: resolver, store: store, logger: logger}
}

// AnalyzeAndStore analyzes content for an article and stores a signal
// for each attributed geo-unit. An explicit geo-unit skips the resolver,
// as manual ingestion already knows the target. Returns the number of
// signals written.
func (p *Pipeline) AnalyzeAndStore(ctx context.Context, articleID int64, content string, explicitGeoUnitID *int64) (int, error) {
	result, err := p.client.Analyze(ctx, content)
	if err != nil {
		return 0, fmt.Errorf("analyze article %d: %w", articleID, err)
	}

	p.logger.WithFields(logging.Fields{
		"article_id": articleID,
		"label":      result.Label,
		"score":      result.Score,
	}).Debug("Received sentiment verdict")

	var attrs []models.GeoAttribution
	if explicitGeoUnitID != nil {
		attrs = []models.GeoAttribution{{GeoUnitID: *explicitGeoUnitID}}
	} else {
		attrs, err = p.resolver.Resolve(ctx, articleID)
		if err != nil {
			return 0, fmt.Errorf("resolve geo units for article %d: %w", articleID, err)
		}
	}

	if len(attrs) == 0 {
		p.logger.WithField("article_id", articleID).Warn("No geo unit resolved, sentiment will not be stored")
		return 0, nil
	}

	written := 0
	for _, attr := range attrs {
		weight := weightForTag(attr.SourceEntityType)
		modelVersion := result.ModelVersion
		sig := models.SentimentSignal{
			GeoUnitID:        attr.GeoUnitID,
			SourceType:       models.SourceTypeNews,
			SourceRefID:      articleID,
			Label:            result.Label,
			Score:            result.Score,
			Confidence:       result.Confidence,
			ModelVersion:     &modelVersion,
			RelevanceWeight:  &weight,
			SourceEntityType: attr.SourceEntityType,
			SourceEntityID:   attr.SourceEntityID,
		}
		if err := p.store.InsertSignal(ctx, sig); err != nil {
			p.logger.WithError(err).WithFields(logging.Fields{
				"article_id":  articleID,
				"geo_unit_id": attr.GeoUnitID,
			}).Error("Failed to store sentiment signal")
			continue
		}
		written++
	}

	p.logger.WithFields(logging.Fields{
		"article_id": articleID,
		"signals":    written,
	}).Info("Sentiment stored")
	return written, nil
}

// weightForTag maps an attribution tag to its relevance weight. Untagged
// attributions (explicit overrides, bare fallback) get the low default.
func weightForTag(t *models.EntityType) float64 {
	if t == nil {
		return relevance.BaseWeight("")
	}
	return relevance.BaseWeight(*t)
}
