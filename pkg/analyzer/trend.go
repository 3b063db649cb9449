package analyzer

import (
	"fmt"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
)

// minTrendSamples is roughly 8 hours of data at 5 minute resolution.
// Below that a regression line says more about noise than usage.
const minTrendSamples = 100

// GrowthTrend describes how a metric is changing over time.
type GrowthTrend struct {
	RatePerMonth float64 // percentage growth per month
	Confidence   float64 // R² of the regression fit
	IsGrowing    bool
}

// calculateGrowthTrend fits a regression line through the samples and
// expresses its slope as percentage growth per month.
func calculateGrowthTrend(samples []client.Sample) (*GrowthTrend, error) {
	if len(samples) < minTrendSamples {
		return &GrowthTrend{}, fmt.Errorf("insufficient data for trend analysis (need %d+ samples, got %d)", minTrendSamples, len(samples))
	}

	start := samples[0].Timestamp
	x := make([]float64, len(samples)) // hours since start
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.Timestamp.Sub(start).Hours()
		y[i] = s.Value
	}

	slope, _, r2 := linearRegression(x, y)

	var ratePerMonth float64
	if avg := mean(y); avg > 0 {
		hoursPerMonth := 24.0 * 30.0
		ratePerMonth = (slope * hoursPerMonth / avg) * 100.0
	}

	return &GrowthTrend{
		RatePerMonth: ratePerMonth,
		Confidence:   r2,
		IsGrowing:    ratePerMonth > 3.0,
	}, nil
}

// linearRegression fits y = slope*x + intercept and returns the R²
// coefficient of determination for the fit.
func linearRegression(x, y []float64) (slope, intercept, r2 float64) {
	if len(x) == 0 {
		return 0, 0, 0
	}

	meanX := mean(x)
	meanY := mean(y)

	var num, den float64
	for i := range x {
		num += (x[i] - meanX) * (y[i] - meanY)
		den += (x[i] - meanX) * (x[i] - meanX)
	}
	if den == 0 {
		return 0, meanY, 0
	}

	slope = num / den
	intercept = meanY - slope*meanX

	var ssRes, ssTotal float64
	for i := range x {
		predicted := slope*x[i] + intercept
		ssRes += (y[i] - predicted) * (y[i] - predicted)
		ssTotal += (y[i] - meanY) * (y[i] - meanY)
	}
	if ssTotal == 0 {
		return slope, intercept, 0
	}

	r2 = 1.0 - ssRes/ssTotal
	if r2 < 0 {
		r2 = 0
	} else if r2 > 1 {
		r2 = 1
	}

	return slope, intercept, r2
}
