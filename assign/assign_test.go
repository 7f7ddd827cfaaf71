package assign

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funneltrack/api/models"
)

func testExperiment(weights map[string]int) *models.Experiment {
	exp := &models.Experiment{
		ID:      "exp-cta-color",
		Name:    "CTA color",
		StartAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for id, w := range weights {
		exp.Variants = append(exp.Variants, models.Variant{
			ID: id, ExperimentID: exp.ID, Weight: w,
		})
	}
	return exp
}

func TestPickIsDeterministic(t *testing.T) {
	exp := testExperiment(map[string]int{"variant-a": 50, "variant-b": 50})
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	first, ok := Pick("session-123", exp, now)
	require.True(t, ok)

	for i := 0; i < 100; i++ {
		again, ok := Pick("session-123", exp, now)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestPickIgnoresVariantOrder(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	exp := testExperiment(nil)
	exp.Variants = []models.Variant{
		{ID: "variant-a", Weight: 70},
		{ID: "variant-b", Weight: 30},
	}
	reversed := testExperiment(nil)
	reversed.Variants = []models.Variant{
		{ID: "variant-b", Weight: 30},
		{ID: "variant-a", Weight: 70},
	}

	for i := 0; i < 500; i++ {
		sid := fmt.Sprintf("session-%d", i)
		a, okA := Pick(sid, exp, now)
		b, okB := Pick(sid, reversed, now)
		require.True(t, okA)
		require.True(t, okB)
		assert.Equal(t, a, b, "session %s", sid)
	}
}

func TestPickInactiveExperiment(t *testing.T) {
	exp := testExperiment(map[string]int{"variant-a": 50, "variant-b": 50})

	_, ok := Pick("session-123", exp, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok, "before the window")

	_, ok = Pick("session-123", exp, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok, "after the window")

	_, ok = Pick("session-123", nil, time.Now())
	assert.False(t, ok, "nil experiment")

	empty := testExperiment(nil)
	_, ok = Pick("session-123", empty, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok, "no variants")

	zero := testExperiment(map[string]int{"variant-a": 0, "variant-b": 0})
	_, ok = Pick("session-123", zero, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok, "zero total weight")
}

func TestPickProportionality(t *testing.T) {
	// 70/30 split over 10k distinct sessions should land within ±5 points.
	exp := testExperiment(map[string]int{"variant-a": 70, "variant-b": 30})
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	const n = 10000
	countA := 0
	for i := 0; i < n; i++ {
		v, ok := Pick(fmt.Sprintf("session-%06d", i), exp, now)
		require.True(t, ok)
		if v == "variant-a" {
			countA++
		}
	}

	fracA := float64(countA) / float64(n)
	assert.GreaterOrEqual(t, fracA, 0.65, "variant-a fraction %f", fracA)
	assert.LessOrEqual(t, fracA, 0.75, "variant-a fraction %f", fracA)
}

func TestBucketRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		b := Bucket(fmt.Sprintf("session-%d", i), "exp-1", 100)
		require.GreaterOrEqual(t, b, 0)
		require.Less(t, b, 100)
	}
}

func TestPickUnevenWeights(t *testing.T) {
	// Weights need not sum to 100; bucketing is mod the actual total.
	exp := testExperiment(map[string]int{"variant-a": 3, "variant-b": 1})
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	const n = 8000
	countA := 0
	for i := 0; i < n; i++ {
		v, ok := Pick(fmt.Sprintf("s%d", i), exp, now)
		require.True(t, ok)
		if v == "variant-a" {
			countA++
		}
	}
	fracA := float64(countA) / float64(n)
	assert.InDelta(t, 0.75, fracA, 0.05)
}
