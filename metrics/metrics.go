// Pure derivation layer over aggregates the stores return. Nothing here
// mutates state, so every function is safe to run concurrently and
// repeatedly; numeric edge cases degrade to zeros and explicit states,
// never to NaN or panics.
package metrics

import (
	"math"
	"sort"
	"time"

	"funneltrack/api/models"
)

// ConversionRate is reachedTo / reachedFrom within one population.
// A zero denominator reports 0, so callers can always render a result.
func ConversionRate(reachedFrom, reachedTo uint64) float64 {
	if reachedFrom == 0 {
		return 0
	}
	return float64(reachedTo) / float64(reachedFrom)
}

// DropOffRate is the complement of ConversionRate, as a percentage.
// An empty fromStage population drops nobody, so it reports 0.
func DropOffRate(reachedFrom, reachedTo uint64) float64 {
	if reachedFrom == 0 {
		return 0
	}
	return (1 - ConversionRate(reachedFrom, reachedTo)) * 100
}

// RoundPct rounds a percentage to two decimals for display. Internal
// computation keeps full precision; only the reported number is rounded.
func RoundPct(pct float64) float64 {
	return math.Round(pct*100) / 100
}

// StageBreakdown is one row of a funnel report.
type StageBreakdown struct {
	Stage           models.Stage  `json:"stage"`
	Sessions        uint64        `json:"sessions"`
	ConversionPct   float64       `json:"conversionFromPreviousPct"`
	DropOffPct      float64       `json:"dropOffFromPreviousPct"`
	AvgFromPrevious time.Duration `json:"-"`
	AvgFromPrevMs   int64         `json:"avgMsFromPrevious"`
}

// BuildFunnelReport assembles per-stage reach counts into the ordered
// funnel view: conversion and drop-off between consecutive stages plus the
// average time spent between them. avgMillis carries the mean
// first-occurrence delta for each consecutive pair, keyed by the later
// stage; missing entries report zero.
func BuildFunnelReport(order []models.Stage, reach map[models.Stage]uint64, avgMillis map[models.Stage]float64) []StageBreakdown {
	report := make([]StageBreakdown, 0, len(order))
	for i, stage := range order {
		row := StageBreakdown{Stage: stage, Sessions: reach[stage]}
		if i > 0 {
			prev := reach[order[i-1]]
			row.ConversionPct = RoundPct(ConversionRate(prev, reach[stage]) * 100)
			row.DropOffPct = RoundPct(DropOffRate(prev, reach[stage]))
			row.AvgFromPrevious = time.Duration(avgMillis[stage]) * time.Millisecond
			row.AvgFromPrevMs = int64(avgMillis[stage])
		}
		report = append(report, row)
	}
	return report
}

// LandingPageSample is the raw per-page aggregate used for ranking.
type LandingPageSample struct {
	PageID      string `json:"pageId"`
	Sessions    uint64 `json:"sessions"`
	Conversions uint64 `json:"conversions"`
}

// LandingPageRank is one entry of the ranked performance view.
type LandingPageRank struct {
	PageID        string  `json:"pageId"`
	Sessions      uint64  `json:"sessions"`
	Conversions   uint64  `json:"conversions"`
	ConversionPct float64 `json:"conversionRatePct"`
}

// RankLandingPages orders pages by conversion rate descending. Ties break
// by session count descending, then page id ascending, so the ranking is
// fully deterministic.
func RankLandingPages(samples []LandingPageSample) []LandingPageRank {
	ranked := make([]LandingPageRank, 0, len(samples))
	for _, s := range samples {
		ranked = append(ranked, LandingPageRank{
			PageID:        s.PageID,
			Sessions:      s.Sessions,
			Conversions:   s.Conversions,
			ConversionPct: RoundPct(ConversionRate(s.Sessions, s.Conversions) * 100),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		ri, rj := ranked[i], ranked[j]
		rateI := ConversionRate(ri.Sessions, ri.Conversions)
		rateJ := ConversionRate(rj.Sessions, rj.Conversions)
		if rateI != rateJ {
			return rateI > rateJ
		}
		if ri.Sessions != rj.Sessions {
			return ri.Sessions > rj.Sessions
		}
		return ri.PageID < rj.PageID
	})
	return ranked
}

// TrafficSourceShare is one slice of the acquisition breakdown.
type TrafficSourceShare struct {
	Source     string  `json:"source"`
	Sessions   uint64  `json:"sessions"`
	Percentage float64 `json:"percentage"`
}

// TrafficBreakdown turns per-source session counts into percentage shares,
// ordered by share descending with the same deterministic tie-break as the
// page ranking.
func TrafficBreakdown(counts map[string]uint64) []TrafficSourceShare {
	var total uint64
	for _, n := range counts {
		total += n
	}
	shares := make([]TrafficSourceShare, 0, len(counts))
	for source, n := range counts {
		pct := 0.0
		if total > 0 {
			pct = RoundPct(float64(n) / float64(total) * 100)
		}
		shares = append(shares, TrafficSourceShare{Source: source, Sessions: n, Percentage: pct})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Sessions != shares[j].Sessions {
			return shares[i].Sessions > shares[j].Sessions
		}
		return shares[i].Source < shares[j].Source
	})
	return shares
}

// CohortReport reports stage reach for the sessions whose first landing
// event fell on one calendar date. Membership is fixed at the landing date.
type CohortReport struct {
	CohortDate string           `json:"cohortDate"`
	Stages     []StageBreakdown `json:"stages"`
}

// BuildCohortReport shapes a cohort's per-stage reach counts the same way
// the overall funnel report is shaped, minus inter-stage timings.
func BuildCohortReport(cohortDate string, order []models.Stage, reach map[models.Stage]uint64) CohortReport {
	return CohortReport{
		CohortDate: cohortDate,
		Stages:     BuildFunnelReport(order, reach, nil),
	}
}
