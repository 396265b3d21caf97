// Package geopulse defines the request and response types of the
// geopulse HTTP API.
package geopulse

import "geopulse/pkg/models"

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ExpandRequest asks for a set of geo-units expanded with descendants.
type ExpandRequest struct {
	GeoUnitIDs []int64 `json:"geo_unit_ids" binding:"required"`
}

// ExpandResponse returns the expanded ID set, sorted ascending.
type ExpandResponse struct {
	GeoUnitIDs []int64 `json:"geo_unit_ids"`
}

// DailyStatsResponse returns a geo-unit's recent daily aggregates.
type DailyStatsResponse struct {
	GeoUnitID int64                  `json:"geo_unit_id"`
	Days      int                    `json:"days"`
	Stats     []models.DailyGeoStats `json:"stats"`
}

// ComputeStatsRequest triggers a stats aggregation run. Date defaults to
// today when omitted; GeoUnitID restricts the run to one unit.
type ComputeStatsRequest struct {
	Date      string `json:"date,omitempty"`
	GeoUnitID *int64 `json:"geo_unit_id,omitempty"`
}

// ComputeStatsResponse reports the outcome of a triggered run.
type ComputeStatsResponse struct {
	Date         string `json:"date"`
	UnitsWritten int    `json:"units_written"`
}

// AnalyzeArticleRequest submits article text for sentiment analysis and
// signal creation. GeoUnitID overrides the attribution resolver.
type AnalyzeArticleRequest struct {
	ArticleID int64  `json:"article_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
	GeoUnitID *int64 `json:"geo_unit_id,omitempty"`
}

// AnalyzeArticleResponse reports how many signals were stored.
type AnalyzeArticleResponse struct {
	ArticleID      int64 `json:"article_id"`
	SignalsWritten int   `json:"signals_written"`
}

// PulseTrendResponse is a candidate's pulse time series.
type PulseTrendResponse struct {
	CandidateID int64               `json:"candidate_id"`
	Days        int                 `json:"days"`
	Points      []models.PulsePoint `json:"points"`
}

// RelevanceWeightsResponse exposes the relevance weight table.
type RelevanceWeightsResponse struct {
	Weights map[string]float64 `json:"weights"`
}
