package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"funneltrack/api/metrics"
	"funneltrack/api/models"
	"funneltrack/api/store"
)

type StatsHandlers struct {
	Sessions    *store.SessionStore
	Experiments *store.ExperimentStore
	Funnel      *store.FunnelStore
}

func NewStatsHandlers(sessions *store.SessionStore, experiments *store.ExperimentStore, funnel *store.FunnelStore) *StatsHandlers {
	return &StatsHandlers{
		Sessions:    sessions,
		Experiments: experiments,
		Funnel:      funnel,
	}
}

// parseTimeRange reads optional start/end query params (RFC3339),
// defaulting to the last 7 days. Reports false after writing the 400.
func parseTimeRange(c *gin.Context) (time.Time, time.Time, bool) {
	start := time.Now().UTC().Add(-7 * 24 * time.Hour)
	end := time.Now().UTC()

	if startParam := c.Query("start"); startParam != "" {
		parsed, err := time.Parse(time.RFC3339, startParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
		start = parsed
	}
	if endParam := c.Query("end"); endParam != "" {
		parsed, err := time.Parse(time.RFC3339, endParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
		end = parsed
	}
	return start, end, true
}

// GetFunnel reports per-stage reach, conversion and drop-off between
// consecutive stages, and average inter-stage durations over the default
// funnel order. An optional landing_page_id restricts the population; an
// unknown page simply yields zero counts.
func (h *StatsHandlers) GetFunnel(c *gin.Context) {
	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}
	landingPageID := c.Query("landing_page_id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	reach, err := h.Funnel.StageReachCounts(ctx, start, end, landingPageID)
	if err != nil {
		log.Printf("Error getting stage reach counts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve funnel statistics"})
		return
	}

	avgMillis := make(map[models.Stage]float64)
	for i := 1; i < len(models.DefaultFunnel); i++ {
		from, to := models.DefaultFunnel[i-1], models.DefaultFunnel[i]
		avg, err := h.Funnel.AvgMillisBetween(ctx, from, to, start, end)
		if err != nil {
			log.Printf("Error getting average time %s -> %s: %v", from, to, err)
			continue
		}
		avgMillis[to] = avg
	}

	c.JSON(http.StatusOK, gin.H{
		"startDate": start.Format(time.RFC3339),
		"endDate":   end.Format(time.RFC3339),
		"funnel":    metrics.BuildFunnelReport(models.DefaultFunnel, reach, avgMillis),
	})
}

// GetCohort reports stage reach for the sessions that first landed on one
// calendar date (YYYY-MM-DD, required).
func (h *StatsHandlers) GetCohort(c *gin.Context) {
	dateParam := c.Query("date")
	if dateParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required (YYYY-MM-DD)"})
		return
	}
	cohortDate, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'date' format. Use YYYY-MM-DD"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	reach, err := h.Funnel.CohortStageCounts(ctx, cohortDate)
	if err != nil {
		log.Printf("Error getting cohort for %s: %v", dateParam, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve cohort statistics"})
		return
	}
	c.JSON(http.StatusOK, metrics.BuildCohortReport(dateParam, models.DefaultFunnel, reach))
}

// GetLandingPages returns the deterministic per-page performance ranking.
func (h *StatsHandlers) GetLandingPages(c *gin.Context) {
	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	samples, err := h.Funnel.LandingPageSamples(ctx, start, end, models.StageUpgrade)
	if err != nil {
		log.Printf("Error getting landing page samples: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve landing page statistics"})
		return
	}

	ranked := metrics.RankLandingPages(samples)
	if ranked == nil {
		ranked = []metrics.LandingPageRank{}
	}
	c.JSON(http.StatusOK, ranked)
}

// GetExperimentResults compares the variants of one experiment: counts,
// rates, leading flag, and two-proportion significance.
func (h *StatsHandlers) GetExperimentResults(c *gin.Context) {
	experimentID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	exp, err := h.Experiments.GetExperiment(ctx, experimentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Experiment not found"})
			return
		}
		log.Printf("Error getting experiment %s: %v", experimentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve experiment"})
		return
	}

	result, err := h.experimentResult(ctx, exp)
	if err != nil {
		log.Printf("Error computing results for experiment %s: %v", experimentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute experiment results"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *StatsHandlers) experimentResult(ctx context.Context, exp *models.Experiment) (metrics.ABTestResult, error) {
	sessionCounts, err := h.Experiments.VariantSessionCounts(ctx, exp.ID)
	if err != nil {
		return metrics.ABTestResult{}, err
	}

	convertedIDs, err := h.Funnel.ConvertedSessionIDs(ctx, models.StageUpgrade, exp.StartAt, exp.EndAt)
	if err != nil {
		return metrics.ABTestResult{}, err
	}
	conversionCounts, err := h.Experiments.VariantConversionCounts(ctx, exp.ID, convertedIDs)
	if err != nil {
		return metrics.ABTestResult{}, err
	}

	samples := make(map[string]metrics.VariantSample, len(exp.Variants))
	for _, v := range exp.Variants {
		samples[v.ID] = metrics.VariantSample{
			Sessions:    sessionCounts[v.ID],
			Conversions: conversionCounts[v.ID],
		}
	}
	return metrics.ABTestResults(exp.ID, samples, metrics.DefaultMinSamples), nil
}

// GetDashboard aggregates the overview: total sessions, the funnel, the
// traffic-source breakdown, and every active experiment's current result.
func (h *StatsHandlers) GetDashboard(c *gin.Context) {
	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	totalSessions, err := h.Sessions.SessionCount(ctx, start, end)
	if err != nil {
		log.Printf("Error counting sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard statistics"})
		return
	}

	reach, err := h.Funnel.StageReachCounts(ctx, start, end, "")
	if err != nil {
		log.Printf("Error getting stage reach counts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard statistics"})
		return
	}

	sourceCounts, err := h.Sessions.TrafficSourceCounts(ctx, start, end)
	if err != nil {
		log.Printf("Error getting traffic sources: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard statistics"})
		return
	}

	experiments, err := h.Experiments.ActiveExperiments(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Error getting active experiments: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard statistics"})
		return
	}
	experimentResults := make([]metrics.ABTestResult, 0, len(experiments))
	for _, exp := range experiments {
		result, err := h.experimentResult(ctx, exp)
		if err != nil {
			log.Printf("Error computing results for experiment %s: %v", exp.ID, err)
			continue
		}
		experimentResults = append(experimentResults, result)
	}

	c.JSON(http.StatusOK, gin.H{
		"startDate":      start.Format(time.RFC3339),
		"endDate":        end.Format(time.RFC3339),
		"totalSessions":  totalSessions,
		"funnel":         metrics.BuildFunnelReport(models.DefaultFunnel, reach, nil),
		"trafficSources": metrics.TrafficBreakdown(sourceCounts),
		"experiments":    experimentResults,
	})
}
