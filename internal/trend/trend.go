// Package trend fits market trends over analysis periods.
package trend

import (
	"errors"
	"math"

	"markettrend/server/internal/models"
	"markettrend/server/internal/stats"
)

type Analyzer struct {
	thresholds models.Thresholds
}

func NewAnalyzer(t models.Thresholds) *Analyzer {
	return &Analyzer{thresholds: t}
}

// PeriodTrends holds both metric trends for one period.
type PeriodTrends struct {
	Price        models.TrendResult
	PricePerArea models.TrendResult
}

// Get returns the trend for metric.
func (p PeriodTrends) Get(metric models.TrendMetric) models.TrendResult {
	if metric == models.MetricPricePerArea {
		return p.PricePerArea
	}
	return p.Price
}

func (a *Analyzer) Analyze(period models.AnalysisPeriod, records []models.SaleRecord) PeriodTrends {
	return PeriodTrends{
		Price:        a.Fit(period, models.MetricPrice, records),
		PricePerArea: a.Fit(period, models.MetricPricePerArea, records),
	}
}

// Fit regresses metric on days since the period start, over valid records
// inside the period.
func (a *Analyzer) Fit(period models.AnalysisPeriod, metric models.TrendMetric, records []models.SaleRecord) models.TrendResult {
	var xs, ys []float64
	for _, r := range records {
		if !r.Valid() || !period.Contains(*r.SaleDate) {
			continue
		}
		xs = append(xs, float64(r.SaleDate.DaysSince(period.Start)))
		ys = append(ys, metricValue(r, metric))
	}

	res := models.TrendResult{
		PeriodMonths: period.Months,
		Metric:       metric,
		Points:       len(xs),
	}

	fit, err := stats.LinearRegression(xs, ys)
	if err != nil {
		res.Reason = unavailableReason(err)
		return res
	}

	mean := stats.Mean(ys)
	change := fit.Slope * a.thresholds.DaysPerMonth
	var pct float64
	if mean != 0 {
		pct = change / mean * 100
	}

	res.Available = true
	res.Fit = &models.TrendFit{
		RegressionFit: models.RegressionFit{
			Slope:     fit.Slope,
			Intercept: fit.Intercept,
			RSquared:  fit.RSquared,
			N:         fit.N,
		},
		Mean:          mean,
		MonthlyChange: change,
		MonthlyPct:    pct,
		Direction:     a.Classify(fit.Slope, fit.RSquared),
	}
	return res
}

// Classify labels a fitted slope (value per day). A poor fit is Unstable
// whatever its slope.
func (a *Analyzer) Classify(slope, rSquared float64) models.Direction {
	if rSquared < a.thresholds.MinRSquared {
		return models.DirectionUnstable
	}
	perMonth := slope * a.thresholds.DaysPerMonth
	switch {
	case math.Abs(perMonth) < a.thresholds.StableSlopePerMonth:
		return models.DirectionStable
	case perMonth > 0:
		return models.DirectionIncreasing
	default:
		return models.DirectionDecreasing
	}
}

func metricValue(r models.SaleRecord, metric models.TrendMetric) float64 {
	if metric == models.MetricPricePerArea {
		return r.PPA()
	}
	return r.Price()
}

func unavailableReason(err error) string {
	switch {
	case errors.Is(err, stats.ErrInsufficientPoints):
		return "fewer than 2 valid sales in period"
	case errors.Is(err, stats.ErrNoVariance):
		return "all sales in period share one date"
	default:
		return err.Error()
	}
}
