package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABTestLeadingVariant(t *testing.T) {
	// Variant A: 100 sessions / 10 conversions (10%).
	// Variant B: 100 sessions / 15 conversions (15%) -> leading.
	result := ABTestResults("exp-1", map[string]VariantSample{
		"variant-a": {Sessions: 100, Conversions: 10},
		"variant-b": {Sessions: 100, Conversions: 15},
	}, DefaultMinSamples)

	require.Len(t, result.Variants, 2)
	assert.Equal(t, 10.00, result.Variants[0].ConversionPct)
	assert.Equal(t, 15.00, result.Variants[1].ConversionPct)

	assert.Equal(t, "variant-b", result.Leader)
	assert.False(t, result.Tie)
	assert.True(t, result.Variants[1].Leading)
	assert.False(t, result.Variants[0].Leading)

	// Both arms meet the n>=30 convention, so significance is computed,
	// even though this difference is nowhere near significant.
	require.Equal(t, SignificanceComputed, result.Significance.Status)
	assert.Greater(t, result.Significance.PValue, 0.0)
	assert.Less(t, result.Significance.PValue, 1.0)
	assert.False(t, result.Significance.Significant)
	assert.Less(t, result.Significance.DiffCILow, result.Significance.DiffCIHigh)
}

func TestABTestTieReportsNoLeader(t *testing.T) {
	result := ABTestResults("exp-1", map[string]VariantSample{
		"variant-a": {Sessions: 100, Conversions: 10},
		"variant-b": {Sessions: 200, Conversions: 20},
	}, DefaultMinSamples)

	assert.True(t, result.Tie)
	assert.Empty(t, result.Leader)
	for _, v := range result.Variants {
		assert.False(t, v.Leading)
	}
}

func TestABTestInsufficientSamples(t *testing.T) {
	result := ABTestResults("exp-1", map[string]VariantSample{
		"variant-a": {Sessions: 10, Conversions: 5},
		"variant-b": {Sessions: 100, Conversions: 15},
	}, DefaultMinSamples)

	assert.Equal(t, SignificanceInsufficient, result.Significance.Status)
	assert.Equal(t, 0.0, result.Significance.PValue)
	// Leadership is still reported; only the test is withheld.
	assert.Equal(t, "variant-a", result.Leader)
}

func TestABTestNoSamples(t *testing.T) {
	result := ABTestResults("exp-1", map[string]VariantSample{
		"variant-a": {},
		"variant-b": {},
	}, DefaultMinSamples)

	assert.Empty(t, result.Leader)
	assert.False(t, result.Tie)
	assert.Equal(t, SignificanceInsufficient, result.Significance.Status)
}

func TestABTestZeroSampleVariantExcludedFromLead(t *testing.T) {
	result := ABTestResults("exp-1", map[string]VariantSample{
		"variant-a": {Sessions: 100, Conversions: 5},
		"variant-b": {},
	}, DefaultMinSamples)

	assert.Equal(t, "variant-a", result.Leader)
}

func TestTwoProportionZTestSignificantDifference(t *testing.T) {
	// 10% vs 20% at n=1000 per arm is decisively significant.
	sig := TwoProportionZTest(100, 1000, 200, 1000, DefaultMinSamples)
	require.Equal(t, SignificanceComputed, sig.Status)
	assert.Less(t, sig.PValue, 0.001)
	assert.True(t, sig.Significant)
	// CI on p1-p2 should sit around -0.10 and exclude zero.
	assert.Less(t, sig.DiffCIHigh, 0.0)
	assert.InDelta(t, -0.10, (sig.DiffCILow+sig.DiffCIHigh)/2, 0.01)
}

func TestTwoProportionZTestIdenticalProportions(t *testing.T) {
	sig := TwoProportionZTest(0, 100, 0, 100, DefaultMinSamples)
	require.Equal(t, SignificanceComputed, sig.Status)
	assert.Equal(t, 1.0, sig.PValue)
	assert.False(t, sig.Significant)
}

func TestTwoProportionZTestMinSamples(t *testing.T) {
	sig := TwoProportionZTest(5, 29, 10, 100, DefaultMinSamples)
	assert.Equal(t, SignificanceInsufficient, sig.Status)
}
