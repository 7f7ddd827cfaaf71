package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funneltrack/api/models"
)

func TestConversionRateZeroDenominator(t *testing.T) {
	rate := ConversionRate(0, 0)
	assert.Equal(t, 0.0, rate)
	assert.False(t, math.IsNaN(rate))

	rate = ConversionRate(0, 5)
	assert.Equal(t, 0.0, rate)
}

func TestConversionRate(t *testing.T) {
	assert.InDelta(t, 0.6, ConversionRate(100, 60), 1e-12)
	assert.InDelta(t, 1.0, ConversionRate(40, 40), 1e-12)
}

func TestDropOffScenario(t *testing.T) {
	// 100 landing, 60 signup, 40 first_card, 20 upgrade.
	assert.Equal(t, 40.00, RoundPct(DropOffRate(100, 60)))
	assert.Equal(t, 33.33, RoundPct(DropOffRate(60, 40)))
	assert.Equal(t, 50.00, RoundPct(DropOffRate(40, 20)))
}

func TestDropOffRateEmptyPopulation(t *testing.T) {
	assert.Equal(t, 0.0, DropOffRate(0, 0))
}

func TestBuildFunnelReport(t *testing.T) {
	reach := map[models.Stage]uint64{
		models.StageLanding:   100,
		models.StageSignup:    60,
		models.StageFirstCard: 40,
		models.StageUpgrade:   20,
	}
	avg := map[models.Stage]float64{
		models.StageSignup: 90000, // 90s landing -> signup
	}

	report := BuildFunnelReport(models.DefaultFunnel, reach, avg)
	require.Len(t, report, 4)

	assert.Equal(t, models.StageLanding, report[0].Stage)
	assert.Equal(t, uint64(100), report[0].Sessions)
	assert.Equal(t, 0.0, report[0].DropOffPct, "entry stage has no previous")

	assert.Equal(t, 60.00, report[1].ConversionPct)
	assert.Equal(t, 40.00, report[1].DropOffPct)
	assert.Equal(t, int64(90000), report[1].AvgFromPrevMs)

	assert.Equal(t, 33.33, report[2].DropOffPct)
	assert.Equal(t, 50.00, report[3].DropOffPct)
}

func TestBuildFunnelReportEmpty(t *testing.T) {
	report := BuildFunnelReport(models.DefaultFunnel, map[models.Stage]uint64{}, nil)
	require.Len(t, report, 4)
	for _, row := range report {
		assert.Equal(t, uint64(0), row.Sessions)
		assert.Equal(t, 0.0, row.DropOffPct)
	}
}

func TestRankLandingPages(t *testing.T) {
	ranked := RankLandingPages([]LandingPageSample{
		{PageID: "page-c", Sessions: 200, Conversions: 20}, // 10%
		{PageID: "page-a", Sessions: 100, Conversions: 25}, // 25%
		{PageID: "page-b", Sessions: 100, Conversions: 10}, // 10%, fewer sessions than c
	})
	require.Len(t, ranked, 3)
	assert.Equal(t, "page-a", ranked[0].PageID)
	assert.Equal(t, "page-c", ranked[1].PageID, "rate tie breaks by session count")
	assert.Equal(t, "page-b", ranked[2].PageID)
	assert.Equal(t, 25.00, ranked[0].ConversionPct)
}

func TestRankLandingPagesFullTie(t *testing.T) {
	ranked := RankLandingPages([]LandingPageSample{
		{PageID: "page-b", Sessions: 50, Conversions: 5},
		{PageID: "page-a", Sessions: 50, Conversions: 5},
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "page-a", ranked[0].PageID, "full tie breaks by page id")
}

func TestRankLandingPagesEmpty(t *testing.T) {
	assert.Empty(t, RankLandingPages(nil))
}

func TestTrafficBreakdown(t *testing.T) {
	shares := TrafficBreakdown(map[string]uint64{
		"google":  60,
		"direct":  30,
		"twitter": 10,
	})
	require.Len(t, shares, 3)
	assert.Equal(t, "google", shares[0].Source)
	assert.Equal(t, 60.00, shares[0].Percentage)
	assert.Equal(t, 10.00, shares[2].Percentage)
}

func TestTrafficBreakdownEmpty(t *testing.T) {
	assert.Empty(t, TrafficBreakdown(nil))
}

func TestBuildCohortReport(t *testing.T) {
	report := BuildCohortReport("2026-08-01", models.DefaultFunnel, map[models.Stage]uint64{
		models.StageLanding: 50,
		models.StageSignup:  25,
	})
	assert.Equal(t, "2026-08-01", report.CohortDate)
	require.Len(t, report.Stages, 4)
	assert.Equal(t, 50.00, report.Stages[1].DropOffPct)
}
