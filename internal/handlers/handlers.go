package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"geopulse/internal/attribution"
	"geopulse/internal/geo"
	"geopulse/internal/metrics"
	"geopulse/internal/pulse"
	"geopulse/internal/relevance"
	"geopulse/internal/scheduler"
	"geopulse/internal/sentiment"
	"geopulse/internal/stats"
	api "geopulse/pkg/api/geopulse"
	"geopulse/pkg/logging"
	"geopulse/pkg/models"
	"geopulse/pkg/redis"
)

var (
	geoService     *geo.Service
	aggregator     *stats.Aggregator
	taskScheduler  *scheduler.Scheduler
	pulseService   *pulse.Service
	pipeline       *sentiment.Pipeline
	resolver       *attribution.Resolver
	responseCache  *redis.JSONCache
	logger         logging.Logger
	serviceMetrics *metrics.Metrics
)

// Deps carries everything the handlers need.
type Deps struct {
	Geo        *geo.Service
	Aggregator *stats.Aggregator
	Scheduler  *scheduler.Scheduler
	Pulse      *pulse.Service
	Pipeline   *sentiment.Pipeline
	Resolver   *attribution.Resolver
	Cache      *redis.JSONCache
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// Init initializes the handlers package.
func Init(d Deps) {
	geoService = d.Geo
	aggregator = d.Aggregator
	taskScheduler = d.Scheduler
	pulseService = d.Pulse
	pipeline = d.Pipeline
	resolver = d.Resolver
	responseCache = d.Cache
	logger = d.Logger
	serviceMetrics = d.Metrics
}

// RegisterRoutes attaches all API routes to the router.
func RegisterRoutes(router *gin.Engine) {
	router.POST("/geo/expand", ExpandGeoUnits)
	router.GET("/geo/units/:id/hierarchy", GetGeoHierarchy)
	router.GET("/geo/units/:id/stats", GetDailyStats)
	router.POST("/analytics/stats/compute", ComputeStats)
	router.GET("/analytics/relevance/weights", GetRelevanceWeights)
	router.GET("/candidates/:id/pulse", GetCandidatePulse)
	router.GET("/candidates/:id/pulse/trend", GetCandidatePulseTrend)
	router.POST("/analyze/article", AnalyzeArticle)
	router.POST("/admin/attribution/fallback/invalidate", InvalidateAttributionFallback)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid id"})
		return 0, false
	}
	return id, true
}

func queryDays(c *gin.Context, fallback int) int {
	raw := c.Query("days")
	if raw == "" {
		return fallback
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return fallback
	}
	return days
}

// ExpandGeoUnits expands a set of geo-units with all their descendants.
func ExpandGeoUnits(c *gin.Context) {
	var req api.ExpandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request", Details: err.Error()})
		return
	}
	if len(req.GeoUnitIDs) == 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "geo_unit_ids must not be empty"})
		return
	}

	if err := geoService.Validate(c.Request.Context(), req.GeoUnitIDs); err != nil {
		var verr *geo.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Unknown geo units", Details: verr.Error()})
			return
		}
		logger.WithError(err).Error("Failed to validate geo units")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to validate geo units"})
		return
	}

	ids, err := geoService.ExpandWithDescendants(c.Request.Context(), req.GeoUnitIDs)
	if err != nil {
		logger.WithError(err).Error("Failed to expand geo units")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to expand geo units"})
		return
	}
	c.JSON(http.StatusOK, api.ExpandResponse{GeoUnitIDs: ids})
}

// GetGeoHierarchy returns a geo-unit with its descendant subtree.
func GetGeoHierarchy(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	node, err := geoService.Hierarchy(c.Request.Context(), id)
	if err != nil {
		var verr *geo.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Geo unit not found"})
			return
		}
		logger.WithError(err).WithField("geo_unit_id", id).Error("Failed to load geo hierarchy")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load geo hierarchy"})
		return
	}
	c.JSON(http.StatusOK, node)
}

// GetDailyStats returns the last N days of aggregates for a geo-unit.
func GetDailyStats(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	days := queryDays(c, 7)

	cacheKey := fmt.Sprintf("stats:%d:%d", id, days)
	var cached api.DailyStatsResponse
	if responseCache.Get(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	rows, err := aggregator.GetDailyStats(c.Request.Context(), id, days)
	if err != nil {
		logger.WithError(err).WithField("geo_unit_id", id).Error("Failed to load daily stats")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load daily stats"})
		return
	}
	if rows == nil {
		rows = []models.DailyGeoStats{}
	}

	resp := api.DailyStatsResponse{GeoUnitID: id, Days: days, Stats: rows}
	responseCache.Set(c.Request.Context(), cacheKey, resp)
	c.JSON(http.StatusOK, resp)
}

// ComputeStats triggers a stats aggregation run for a given date
// (default today). Overlapping runs return 409.
func ComputeStats(c *gin.Context) {
	var req api.ComputeStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request", Details: err.Error()})
		return
	}

	day := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid date, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	// A single-unit backfill bypasses the full-run lock; it touches one
	// row and cannot race a scheduled run destructively.
	if req.GeoUnitID != nil {
		wrote, err := aggregator.ComputeStatsForGeoUnit(c.Request.Context(), *req.GeoUnitID, day)
		if err != nil {
			logger.WithError(err).WithField("geo_unit_id", *req.GeoUnitID).Error("Stats backfill failed")
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Stats backfill failed"})
			return
		}
		written := 0
		if wrote {
			written = 1
		}
		c.JSON(http.StatusOK, api.ComputeStatsResponse{
			Date:         day.Format("2006-01-02"),
			UnitsWritten: written,
		})
		return
	}

	start := time.Now()
	written, err := taskScheduler.TriggerRun(day)
	if serviceMetrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		serviceMetrics.StatsRuns.WithLabelValues("api", status).Inc()
		serviceMetrics.StatsRunDuration.WithLabelValues("api").Observe(time.Since(start).Seconds())
	}
	if errors.Is(err, scheduler.ErrRunInProgress) {
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "A stats run is already in progress"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Stats run failed")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Stats run failed"})
		return
	}

	c.JSON(http.StatusOK, api.ComputeStatsResponse{
		Date:         day.Format("2006-01-02"),
		UnitsWritten: written,
	})
}

// GetRelevanceWeights exposes the relevance weight table.
func GetRelevanceWeights(c *gin.Context) {
	c.JSON(http.StatusOK, api.RelevanceWeightsResponse{Weights: relevance.Weights()})
}

// GetCandidatePulse returns the pulse summary for a candidate.
func GetCandidatePulse(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	days := queryDays(c, pulse.DefaultWindowDays)

	cacheKey := fmt.Sprintf("pulse:%d:%d", id, days)
	var cached models.CandidatePulse
	if responseCache.Get(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	result, err := pulseService.CalculatePulse(c.Request.Context(), id, days)
	if err != nil {
		if errors.Is(err, pulse.ErrCandidateNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Candidate not found"})
			return
		}
		logger.WithError(err).WithField("candidate_id", id).Error("Failed to calculate pulse")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to calculate pulse"})
		return
	}

	responseCache.Set(c.Request.Context(), cacheKey, result)
	c.JSON(http.StatusOK, result)
}

// GetCandidatePulseTrend returns a candidate's per-day pulse series.
func GetCandidatePulseTrend(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	days := queryDays(c, 30)

	points, err := pulseService.PulseTrendSeries(c.Request.Context(), id, days)
	if err != nil {
		if errors.Is(err, pulse.ErrCandidateNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Candidate not found"})
			return
		}
		logger.WithError(err).WithField("candidate_id", id).Error("Failed to compute pulse trend")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to compute pulse trend"})
		return
	}

	c.JSON(http.StatusOK, api.PulseTrendResponse{CandidateID: id, Days: days, Points: points})
}

// AnalyzeArticle runs sentiment analysis for an article and stores the
// resulting signals.
func AnalyzeArticle(c *gin.Context) {
	var req api.AnalyzeArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request", Details: err.Error()})
		return
	}

	start := time.Now()
	written, err := pipeline.AnalyzeAndStore(c.Request.Context(), req.ArticleID, req.Content, req.GeoUnitID)
	if serviceMetrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		serviceMetrics.AnalysisRequests.WithLabelValues(status).Inc()
		serviceMetrics.AnalysisDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		logger.WithError(err).WithField("article_id", req.ArticleID).Error("Sentiment analysis failed")
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Sentiment analysis failed"})
		return
	}

	if serviceMetrics != nil && written > 0 {
		serviceMetrics.SignalsStored.WithLabelValues(models.SourceTypeNews).Add(float64(written))
	}
	c.JSON(http.StatusOK, api.AnalyzeArticleResponse{
		ArticleID:      req.ArticleID,
		SignalsWritten: written,
	})
}

// InvalidateAttributionFallback drops the cached fallback state unit so
// the next resolve re-reads it. Used after admin edits to the geo tree.
func InvalidateAttributionFallback(c *gin.Context) {
	resolver.InvalidateFallback()
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}
