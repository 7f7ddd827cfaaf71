package metrics

import (
	"math"
	"sort"
)

// DefaultMinSamples is the per-variant sample floor below which a
// significance result is reported as insufficient data instead of a
// numerically unstable p-value.
const DefaultMinSamples = 30

const (
	SignificanceComputed     = "computed"
	SignificanceInsufficient = "insufficient_data"
)

// Significance is the outcome of a two-proportion z-test on conversion
// rates. When Status is insufficient_data the numeric fields are zero and
// carry no meaning.
type Significance struct {
	Status      string  `json:"status"`
	PValue      float64 `json:"pValue,omitempty"`
	DiffCILow   float64 `json:"rateDiffCiLow,omitempty"`
	DiffCIHigh  float64 `json:"rateDiffCiHigh,omitempty"`
	Significant bool    `json:"significant"`
}

// VariantSample is the raw per-variant aggregate an experiment report is
// computed from.
type VariantSample struct {
	Sessions    uint64
	Conversions uint64
}

// VariantResult is the per-variant row of an A/B report.
type VariantResult struct {
	VariantID       string  `json:"variantId"`
	SessionCount    uint64  `json:"sessionCount"`
	ConversionCount uint64  `json:"conversionCount"`
	ConversionPct   float64 `json:"conversionRatePct"`
	Leading         bool    `json:"leading"`
}

// ABTestResult compares an experiment's variants. Leader is empty when no
// variant has samples or when the top rate is shared (Tie reports which).
// Significance compares the leader (or top variant) against its closest
// challenger by conversion rate.
type ABTestResult struct {
	ExperimentID string          `json:"experimentId"`
	Variants     []VariantResult `json:"variants"`
	Leader       string          `json:"leader,omitempty"`
	Tie          bool            `json:"tie"`
	Significance Significance    `json:"significance"`
}

// ABTestResults derives the experiment comparison from per-variant samples.
// The leading variant is the one with the strictly highest conversion rate
// among variants with nonzero sample size; an exact tie at the top reports
// no single leader.
func ABTestResults(experimentID string, samples map[string]VariantSample, minSamples int) ABTestResult {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	result := ABTestResult{
		ExperimentID: experimentID,
		Significance: Significance{Status: SignificanceInsufficient},
	}

	ids := make([]string, 0, len(samples))
	for id := range samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := samples[id]
		result.Variants = append(result.Variants, VariantResult{
			VariantID:       id,
			SessionCount:    s.Sessions,
			ConversionCount: s.Conversions,
			ConversionPct:   RoundPct(ConversionRate(s.Sessions, s.Conversions) * 100),
		})
	}

	// Rank variants with samples by full-precision rate.
	ranked := make([]string, 0, len(ids))
	for _, id := range ids {
		if samples[id].Sessions > 0 {
			ranked = append(ranked, id)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		ri := ConversionRate(samples[ranked[i]].Sessions, samples[ranked[i]].Conversions)
		rj := ConversionRate(samples[ranked[j]].Sessions, samples[ranked[j]].Conversions)
		return ri > rj
	})
	if len(ranked) == 0 {
		return result
	}

	topRate := ConversionRate(samples[ranked[0]].Sessions, samples[ranked[0]].Conversions)
	if len(ranked) > 1 {
		second := ConversionRate(samples[ranked[1]].Sessions, samples[ranked[1]].Conversions)
		if second == topRate {
			result.Tie = true
		}
	}
	if !result.Tie {
		result.Leader = ranked[0]
		for i := range result.Variants {
			if result.Variants[i].VariantID == result.Leader {
				result.Variants[i].Leading = true
			}
		}
	}

	if len(ranked) > 1 {
		a := samples[ranked[0]]
		b := samples[ranked[1]]
		result.Significance = TwoProportionZTest(a.Conversions, a.Sessions, b.Conversions, b.Sessions, minSamples)
	}
	return result
}

// TwoProportionZTest compares two conversion proportions with the pooled
// z-test and attaches a 95% confidence interval (unpooled standard error)
// on the rate difference p1-p2. Samples below minSamples on either side
// report insufficient data.
func TwoProportionZTest(conv1, n1, conv2, n2 uint64, minSamples int) Significance {
	if n1 < uint64(minSamples) || n2 < uint64(minSamples) {
		return Significance{Status: SignificanceInsufficient}
	}

	p1 := float64(conv1) / float64(n1)
	p2 := float64(conv2) / float64(n2)
	diff := p1 - p2

	pooled := float64(conv1+conv2) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))

	sig := Significance{Status: SignificanceComputed}
	if se == 0 {
		// All conversions or none on both sides; the proportions are
		// identical and there is nothing to test.
		sig.PValue = 1
		sig.DiffCILow = diff
		sig.DiffCIHigh = diff
		return sig
	}

	z := diff / se
	sig.PValue = 2 * (1 - stdNormalCDF(math.Abs(z)))

	seDiff := math.Sqrt(p1*(1-p1)/float64(n1) + p2*(1-p2)/float64(n2))
	const z95 = 1.959963984540054
	sig.DiffCILow = diff - z95*seDiff
	sig.DiffCIHigh = diff + z95*seDiff
	sig.Significant = sig.PValue < 0.05
	return sig
}

func stdNormalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
