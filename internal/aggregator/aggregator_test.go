package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markettrend/server/internal/models"
	"markettrend/server/internal/trend"
)

var dov = models.NewDate(2024, time.June, 30)

func rec(daysBefore int, price, area float64, dom *int) models.SaleRecord {
	d := dov.AddDays(-daysBefore)
	ppa := price / area
	return models.SaleRecord{
		SaleDate:     &d,
		SalePrice:    &price,
		LivingArea:   &area,
		PricePerArea: &ppa,
		DaysOnMarket: dom,
		Status:       models.StatusClosed,
	}
}

func intPtr(n int) *int { return &n }

func threeMonths() models.AnalysisPeriod {
	return models.AnalysisPeriod{
		Months:    3,
		Label:     models.PeriodLabel(3),
		Start:     dov.AddDays(-91),
		End:       dov,
		SaleCount: 3,
		Accepted:  true,
	}
}

func availableTrend(metric models.TrendMetric, dir models.Direction, r2 float64) models.TrendResult {
	return models.TrendResult{
		PeriodMonths: 3,
		Metric:       metric,
		Available:    true,
		Points:       3,
		Fit: &models.TrendFit{
			RegressionFit: models.RegressionFit{RSquared: r2},
			MonthlyPct:    1,
			Direction:     dir,
		},
	}
}

func goodTrends() trend.PeriodTrends {
	return trend.PeriodTrends{
		Price:        availableTrend(models.MetricPrice, models.DirectionIncreasing, 0.9),
		PricePerArea: availableTrend(models.MetricPricePerArea, models.DirectionIncreasing, 0.9),
	}
}

func TestDistribution(t *testing.T) {
	assert.Nil(t, Distribution(nil))

	single := Distribution([]float64{5})
	require.NotNil(t, single)
	assert.Equal(t, 1, single.N)
	assert.Nil(t, single.StdDev)

	d := Distribution([]float64{300000, 320000, 310000})
	assert.Equal(t, 310000.0, d.Mean)
	assert.Equal(t, 310000.0, d.Median)
	require.NotNil(t, d.StdDev)
	assert.InDelta(t, 10000, *d.StdDev, 1e-9)
	assert.Equal(t, 300000.0, d.Min)
	assert.Equal(t, 320000.0, d.Max)
}

func TestPeriodStatistics(t *testing.T) {
	records := []models.SaleRecord{
		rec(10, 300000, 1500, intPtr(10)),
		rec(40, 310000, 1500, intPtr(20)),
		rec(80, 320000, 1600, nil),
		rec(150, 900000, 1500, nil),
	}
	excluded := rec(20, 1, 1500, nil)
	excluded.Excluded = true
	active := rec(5, 330000, 1500, nil)
	active.Status = models.StatusActive
	active.Excluded = true
	records = append(records, excluded, active)

	pa := PeriodStatistics(threeMonths(), records, goodTrends(), ActiveListings(records), models.DefaultThresholds())

	assert.Equal(t, 3, pa.SaleCount)
	assert.Equal(t, 1.0, pa.AbsorptionRate)
	assert.Equal(t, 1, pa.ActiveListings)
	require.NotNil(t, pa.MonthsOfInventory)
	assert.Equal(t, 1.0, *pa.MonthsOfInventory)

	assert.Equal(t, 310000.0, pa.Price.Mean)
	assert.Equal(t, 3, pa.PricePerArea.N)
	assert.Equal(t, 2, pa.DaysOnMarket.N)
	assert.Equal(t, 15.0, pa.DaysOnMarket.Mean)

	assert.False(t, pa.LowConfidence)
	assert.Empty(t, pa.ConfidenceNotes)
	assert.True(t, pa.PriceTrend.Available)
}

func TestPeriodStatisticsLowConfidence(t *testing.T) {
	p := threeMonths()
	p.LowSample = true
	trends := trend.PeriodTrends{
		Price:        models.TrendResult{PeriodMonths: 3, Metric: models.MetricPrice, Reason: "fewer than 2 valid sales in period"},
		PricePerArea: availableTrend(models.MetricPricePerArea, models.DirectionStable, 1),
	}

	pa := PeriodStatistics(p, []models.SaleRecord{rec(10, 300000, 1500, nil)}, trends, 0, models.DefaultThresholds())

	assert.True(t, pa.LowConfidence)
	assert.Len(t, pa.ConfidenceNotes, 2)
	assert.False(t, pa.PriceTrend.Available)
	require.NotNil(t, pa.MonthsOfInventory)
	assert.Equal(t, 0.0, *pa.MonthsOfInventory)

	trends.Price = availableTrend(models.MetricPrice, models.DirectionUnstable, 0.1)
	p.LowSample = false
	pa = PeriodStatistics(p, []models.SaleRecord{rec(10, 300000, 1500, nil)}, trends, 0, models.DefaultThresholds())
	assert.True(t, pa.LowConfidence)
	assert.Contains(t, pa.ConfidenceNotes[0], "R²")
}

func TestPeriodStatisticsWithoutSales(t *testing.T) {
	pa := PeriodStatistics(threeMonths(), nil, goodTrends(), 4, models.DefaultThresholds())

	assert.Equal(t, 0, pa.SaleCount)
	assert.Nil(t, pa.MonthsOfInventory)
	assert.Nil(t, pa.Price)
}

func adjustment(price, area, timeAmt, sizeAmt float64, timeStatus, sizeStatus models.AdjustmentStatus) models.AdjustmentResult {
	adjusted := price + timeAmt + sizeAmt
	return models.AdjustmentResult{
		SalePrice:            price,
		LivingArea:           area,
		Time:                 models.AdjustmentLine{Amount: timeAmt, Status: timeStatus},
		Size:                 models.AdjustmentLine{Amount: sizeAmt, Status: sizeStatus},
		NetAdjustment:        timeAmt + sizeAmt,
		AdjustedPrice:        adjusted,
		AdjustedPricePerArea: adjusted / area,
	}
}

func TestSummarize(t *testing.T) {
	applied, within := models.AdjustmentApplied, models.AdjustmentWithinThreshold
	adjustments := []models.AdjustmentResult{
		adjustment(300000, 1500, 10000, 0, applied, within),
		adjustment(320000, 1600, 0, 20000, within, applied),
		adjustment(340000, 1700, 5000, 5000, applied, applied),
		adjustment(360000, 1800, 0, 0, within, models.AdjustmentUnavailable),
	}
	primary := availableTrend(models.MetricPrice, models.DirectionIncreasing, 0.9)
	primary.PeriodMonths = 12
	mv := models.MarginalValue{Available: true, Fit: &models.RegressionFit{Slope: 100}}

	s := Summarize(adjustments, models.MetricPrice, primary, mv)

	assert.Equal(t, 12, s.PeriodMonths)
	assert.Equal(t, 4, s.Sales)
	assert.Equal(t, 1, s.TimeOnly)
	assert.Equal(t, 1, s.SizeOnly)
	assert.Equal(t, 1, s.Both)
	assert.Equal(t, 1, s.None)
	require.NotNil(t, s.MonthlyTrendPct)
	assert.Equal(t, 1.0, *s.MonthlyTrendPct)

	assert.Equal(t, 330000.0, s.Unadjusted.MeanPrice)
	assert.Equal(t, 330000.0, s.Unadjusted.MedianPrice)
	assert.Equal(t, 200.0, s.Unadjusted.MeanPricePerArea)
	assert.Equal(t, 340000.0, s.Adjusted.MeanPrice)
}

func TestAssemble(t *testing.T) {
	lat, lon := 52.0, 4.9
	located := rec(10, 300000, 1500, nil)
	located.Latitude, located.Longitude = &lat, &lon

	coverageMsgs := []models.Message{{Severity: models.SeverityInfo, Component: "coverage", Code: "period_rejected"}}
	report := models.CoverageReport{
		DateOfValue:         dov,
		PrimaryPeriodMonths: 6,
		Messages:            coverageMsgs,
	}
	three := PeriodStatistics(threeMonths(), nil, goodTrends(), 0, models.DefaultThresholds())
	six := three
	six.Period.Months = 6
	six.PriceTrend = models.TrendResult{PeriodMonths: 6, Metric: models.MetricPrice, Reason: "fewer than 2 valid sales in period"}

	summary := &models.AdjustmentSummary{MarginalValue: models.MarginalValue{Reason: "fewer than 2 valid sales"}}
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	rs := Assemble(Input{
		RunID:       "run-1",
		GeneratedAt: now,
		Records:     []models.SaleRecord{located},
		Coverage:    report,
		Periods:     []models.PeriodAnalysis{three, six},
		Summary:     summary,
		Messages:    []models.Message{{Severity: models.SeverityInfo, Component: "validator", Code: "records_cleaned"}},
	})

	assert.Equal(t, "run-1", rs.RunID)
	assert.Equal(t, now, rs.GeneratedAt)
	assert.False(t, rs.Periods[0].Primary)
	assert.True(t, rs.Periods[1].Primary)
	assert.NotNil(t, rs.Adjustments)
	require.NotNil(t, rs.Coverage.MarketArea)
	assert.Equal(t, 1, rs.Coverage.MarketArea.Points)

	codes := make([]string, len(rs.Coverage.Messages))
	for i, m := range rs.Coverage.Messages {
		codes[i] = m.Code
	}
	assert.Equal(t, []string{
		"records_cleaned",
		"period_rejected",
		"trend_unavailable",
		"time_adjustment_unavailable",
		"size_adjustment_unavailable",
	}, codes)

	// selector output is left as it was
	assert.Len(t, report.Messages, 1)
	assert.Nil(t, report.MarketArea)
}
