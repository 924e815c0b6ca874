// Package adjustment brings comparable sales to the subject's date of value
// and living area.
package adjustment

import (
	"errors"
	"fmt"
	"math"

	"markettrend/server/internal/geometry"
	"markettrend/server/internal/models"
	"markettrend/server/internal/stats"
)

// MarginalValue regresses sale price on living area over the valid records.
// The slope is the value of one extra unit of area.
func MarginalValue(records []models.SaleRecord) models.MarginalValue {
	var xs, ys []float64
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		xs = append(xs, r.Area())
		ys = append(ys, r.Price())
	}

	fit, err := stats.LinearRegression(xs, ys)
	if err != nil {
		reason := err.Error()
		switch {
		case errors.Is(err, stats.ErrInsufficientPoints):
			reason = "fewer than 2 valid sales"
		case errors.Is(err, stats.ErrNoVariance):
			reason = "all sales have the same living area"
		}
		return models.MarginalValue{Reason: reason}
	}
	return models.MarginalValue{
		Available: true,
		Fit: &models.RegressionFit{
			Slope:     fit.Slope,
			Intercept: fit.Intercept,
			RSquared:  fit.RSquared,
			N:         fit.N,
		},
	}
}

// TimeAdjustment returns the days between sale and date of value and the
// adjustment for market movement over that span. A positive trend raises the
// price of a sale made before the date of value.
func TimeAdjustment(dov models.Date, sale models.SaleRecord, monthlyPct float64, t models.Thresholds) (int, models.AdjustmentLine) {
	days := dov.DaysSince(*sale.SaleDate)
	if abs(days) <= t.TimeThresholdDays {
		return days, withinThreshold(fmt.Sprintf("within %d-day threshold", t.TimeThresholdDays))
	}

	price := sale.Price()
	amount := price * (monthlyPct / 100 / t.DaysPerMonth) * float64(days)
	return days, models.AdjustmentLine{
		Amount:  amount,
		Percent: amount / price * 100,
		Status:  models.AdjustmentApplied,
		Note:    fmt.Sprintf("%d days at %.2f%% per month", days, monthlyPct),
	}
}

// SizeAdjustment returns the area difference (subject minus sale) and the
// adjustment for it at valuePerArea.
func SizeAdjustment(subjectArea float64, sale models.SaleRecord, valuePerArea float64, t models.Thresholds) (float64, models.AdjustmentLine) {
	diff := subjectArea - sale.Area()
	if withinSizeThreshold(diff, subjectArea, t.SizeThresholdPct) {
		return diff, withinThreshold(fmt.Sprintf("within %g%% threshold", t.SizeThresholdPct))
	}

	amount := valuePerArea * diff
	return diff, models.AdjustmentLine{
		Amount:  amount,
		Percent: amount / sale.Price() * 100,
		Status:  models.AdjustmentApplied,
		Note:    fmt.Sprintf("%.0f area units at %.2f per unit", diff, valuePerArea),
	}
}

// withinSizeThreshold compares |diff|/subject <= pct/100 without dividing, so a
// difference of exactly the threshold is always within it.
func withinSizeThreshold(diff, subjectArea, pct float64) bool {
	return math.Abs(diff)*100 <= pct*subjectArea
}

// Calculator adjusts sales for one run.
type Calculator struct {
	cfg models.AnalysisConfig
}

func NewCalculator(cfg models.AnalysisConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Adjust builds the adjustment result for one valid sale. An unavailable
// trend or marginal value leaves the matching line unavailable rather than
// zero, unless the sale is within the threshold anyway.
func (c *Calculator) Adjust(sale models.SaleRecord, trend models.TrendResult, mv models.MarginalValue) models.AdjustmentResult {
	t := c.cfg.Thresholds
	res := models.AdjustmentResult{
		Row:          sale.Row,
		Address:      sale.Address,
		SaleDate:     *sale.SaleDate,
		SalePrice:    sale.Price(),
		LivingArea:   sale.Area(),
		PeriodMonths: trend.PeriodMonths,
	}

	if trend.Available {
		res.DaysFromValuation, res.Time = TimeAdjustment(c.cfg.DateOfValue, sale, trend.Fit.MonthlyPct, t)
	} else {
		res.DaysFromValuation = c.cfg.DateOfValue.DaysSince(*sale.SaleDate)
		if abs(res.DaysFromValuation) <= t.TimeThresholdDays {
			res.Time = withinThreshold(fmt.Sprintf("within %d-day threshold", t.TimeThresholdDays))
		} else {
			res.Time = unavailable("market trend unavailable: " + trend.Reason)
		}
	}

	if mv.Available {
		res.AreaDifference, res.Size = SizeAdjustment(c.cfg.SubjectLivingArea, sale, mv.PerArea(), t)
	} else {
		res.AreaDifference = c.cfg.SubjectLivingArea - sale.Area()
		if withinSizeThreshold(res.AreaDifference, c.cfg.SubjectLivingArea, t.SizeThresholdPct) {
			res.Size = withinThreshold(fmt.Sprintf("within %g%% threshold", t.SizeThresholdPct))
		} else {
			res.Size = unavailable("marginal value unavailable: " + mv.Reason)
		}
	}

	res.NetAdjustment = res.Time.Amount + res.Size.Amount
	res.AdjustedPrice = res.SalePrice + res.NetAdjustment
	res.NetAdjustmentPct = res.NetAdjustment / res.SalePrice * 100
	res.AdjustedPricePerArea = res.AdjustedPrice / res.LivingArea
	res.DistanceMeters = geometry.SubjectDistance(c.cfg, sale)
	return res
}

func withinThreshold(note string) models.AdjustmentLine {
	return models.AdjustmentLine{Status: models.AdjustmentWithinThreshold, Note: note}
}

func unavailable(note string) models.AdjustmentLine {
	return models.AdjustmentLine{Status: models.AdjustmentUnavailable, Note: note}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
