package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
)

// Percentiles summarizes the distribution of a metric series.
type Percentiles struct {
	Average float64
	P50     float64
	P90     float64
	P95     float64
	P99     float64
	Peak    float64
	Min     float64
}

// UsagePattern classifies how a metric behaves over time.
type UsagePattern struct {
	Type       string  // "steady", "moderate", "spiky", "highly-variable", "unknown"
	Variation  float64 // coefficient of variation
	Confidence float64
}

// calculatePercentiles computes distribution statistics from samples.
func calculatePercentiles(samples []client.Sample) (*Percentiles, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	sort.Float64s(values)

	return &Percentiles{
		Average: mean(values),
		P50:     percentile(values, 50),
		P90:     percentile(values, 90),
		P95:     percentile(values, 95),
		P99:     percentile(values, 99),
		Peak:    values[len(values)-1],
		Min:     values[0],
	}, nil
}

// percentile computes the Nth percentile over a sorted slice using
// linear interpolation between ranks.
func percentile(sorted []float64, pct float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	rank := (pct / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	frac := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// coefficientOfVariation measures relative variability: >0.5 is a spiky
// series, <0.2 a steady one.
func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)
	if m == 0 {
		return 0
	}

	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	stdDev := math.Sqrt(sumSq / float64(len(values)))

	return stdDev / m
}

// classifyUsagePattern buckets a series as steady, moderate, spiky or
// highly-variable based on its coefficient of variation. Needs at
// least 10 samples to say anything.
func classifyUsagePattern(samples []client.Sample) UsagePattern {
	if len(samples) < 10 {
		return UsagePattern{Type: "unknown"}
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	cv := coefficientOfVariation(values)

	switch {
	case cv < 0.15:
		return UsagePattern{Type: "steady", Variation: cv, Confidence: 0.95}
	case cv < 0.35:
		return UsagePattern{Type: "moderate", Variation: cv, Confidence: 0.85}
	case cv < 0.70:
		return UsagePattern{Type: "spiky", Variation: cv, Confidence: 0.80}
	default:
		return UsagePattern{Type: "highly-variable", Variation: cv, Confidence: 0.75}
	}
}
