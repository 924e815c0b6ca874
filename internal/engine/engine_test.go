package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markettrend/server/config"
	"markettrend/server/internal/models"
)

var dov = models.NewDate(2024, time.June, 30)

func newTestEngine() *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return New(config.DefaultAliases(), 4, logger)
}

func baseConfig() models.AnalysisConfig {
	return models.AnalysisConfig{
		DateOfValue:       dov,
		SubjectLivingArea: 1800,
		PeriodMonths:      []int{3, 6, 12, 24},
		TrendMetric:       models.MetricPrice,
		Thresholds:        models.DefaultThresholds(),
	}
}

// risingMarketTable has 40 closed sales over twelve months with prices rising
// linearly from 300,000 to 360,000.
func risingMarketTable() models.RawTable {
	table := models.RawTable{Headers: []string{"Address", "Sale Date", "Sale Price", "Living Area", "Status", "Property Type", "Year Built", "Beds", "Baths"}}
	start := dov.AddDays(-365)
	for i := 0; i < 40; i++ {
		date := start.AddDays(i * 364 / 39)
		price := 300000 + 60000*float64(i)/39
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("%d Elm St", i+1),
			date.String(),
			fmt.Sprintf("%.2f", price),
			"1800",
			"Sold",
		})
	}
	return table
}

func findPeriod(rs *models.ResultSet, months int) (models.PeriodAnalysis, bool) {
	for _, p := range rs.Periods {
		if p.Period.Months == months {
			return p, true
		}
	}
	return models.PeriodAnalysis{}, false
}

func hasMessage(rs *models.ResultSet, code string) bool {
	for _, m := range rs.Coverage.Messages {
		if m.Code == code {
			return true
		}
	}
	return false
}

func TestRunRisingMarket(t *testing.T) {
	e := newTestEngine()

	rs, err := e.Run(context.Background(), risingMarketTable(), baseConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, rs.RunID)
	assert.Len(t, rs.Records, 40)
	assert.Equal(t, 12, rs.Coverage.PrimaryPeriodMonths)
	require.Len(t, rs.Coverage.ValidPeriods, 3)
	require.Len(t, rs.Coverage.RejectedPeriods, 1)
	assert.Equal(t, 24, rs.Coverage.RejectedPeriods[0].Months)

	year, ok := findPeriod(rs, 12)
	require.True(t, ok)
	assert.True(t, year.Primary)
	assert.Equal(t, 40, year.SaleCount)
	require.True(t, year.PriceTrend.Available)
	assert.Greater(t, year.PriceTrend.Fit.RSquared, 0.9)
	assert.Equal(t, models.DirectionIncreasing, year.PriceTrend.Fit.Direction)
	assert.GreaterOrEqual(t, year.PriceTrend.Fit.MonthlyPct, 1.4)
	assert.LessOrEqual(t, year.PriceTrend.Fit.MonthlyPct, 1.8)

	require.Len(t, rs.Adjustments, 40)
	for _, a := range rs.Adjustments {
		assert.InDelta(t, a.SalePrice+a.Time.Amount+a.Size.Amount, a.AdjustedPrice, 1e-9)
		if a.DaysFromValuation <= 30 {
			assert.Equal(t, 0.0, a.Time.Amount, a.Address)
		} else {
			assert.Greater(t, a.Time.Amount, 0.0, a.Address)
		}
		// same size as the subject
		assert.Equal(t, models.AdjustmentWithinThreshold, a.Size.Status)
	}

	require.NotNil(t, rs.AdjustmentSummary)
	assert.Equal(t, 12, rs.AdjustmentSummary.PeriodMonths)
	assert.False(t, rs.AdjustmentSummary.MarginalValue.Available)
	assert.Greater(t, rs.AdjustmentSummary.Adjusted.MeanPrice, rs.AdjustmentSummary.Unadjusted.MeanPrice)
	assert.Equal(t, 4, rs.AdjustmentSummary.None)
	assert.Equal(t, 36, rs.AdjustmentSummary.TimeOnly)
}

func TestRunSizeAdjustments(t *testing.T) {
	e := newTestEngine()
	table := models.RawTable{Headers: []string{"address", "sale_date", "sale_price", "living_area", "property_type", "year_built", "beds", "baths"}}
	for i, area := range []int{1500, 1700, 1800, 1900, 2100, 2300} {
		price := 100000 + 150*area
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("%d Oak Ave", i+1),
			dov.AddDays(-10 - 15*i).String(),
			fmt.Sprint(price),
			fmt.Sprint(area),
		})
	}
	cfg := baseConfig()
	cfg.SubjectLivingArea = 2000
	cfg.PeriodMonths = []int{3}

	rs, err := e.Run(context.Background(), table, cfg)
	require.NoError(t, err)

	mv := rs.AdjustmentSummary.MarginalValue
	require.True(t, mv.Available)
	assert.InDelta(t, 150, mv.PerArea(), 1e-6)

	byArea := make(map[float64]models.AdjustmentResult)
	for _, a := range rs.Adjustments {
		byArea[a.LivingArea] = a
	}
	assert.Equal(t, models.AdjustmentWithinThreshold, byArea[1900].Size.Status)
	assert.Equal(t, 0.0, byArea[1900].Size.Amount)
	assert.InDelta(t, 30000, byArea[1800].Size.Amount, 1e-6)
	assert.InDelta(t, -45000, byArea[2300].Size.Amount, 1e-6)
}

// shrinkingHomesTable has prices rising slowly while living areas fall, so
// price per area rises faster than price.
func shrinkingHomesTable() models.RawTable {
	table := models.RawTable{Headers: []string{"Address", "Sale Date", "Sale Price", "Living Area", "Property Type", "Year Built", "Beds", "Baths"}}
	start := dov.AddDays(-360)
	for i := 0; i < 36; i++ {
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("%d Birch Ln", i+1),
			start.AddDays(i * 10).String(),
			fmt.Sprintf("%d", 300000+1000*i),
			fmt.Sprintf("%d", 1800-8*i),
			"Townhouse", "2001", "3", "2",
		})
	}
	return table
}

func TestRunTimeAdjustmentsFollowTrendMetric(t *testing.T) {
	e := newTestEngine()

	for _, metric := range []models.TrendMetric{models.MetricPrice, models.MetricPricePerArea} {
		t.Run(string(metric), func(t *testing.T) {
			cfg := baseConfig()
			cfg.TrendMetric = metric

			rs, err := e.Run(context.Background(), shrinkingHomesTable(), cfg)
			require.NoError(t, err)

			year, ok := findPeriod(rs, 12)
			require.True(t, ok)
			require.True(t, year.Primary)
			require.True(t, year.PriceTrend.Available)
			require.True(t, year.PricePerAreaTrend.Available)
			pricePct := year.PriceTrend.Fit.MonthlyPct
			ppaPct := year.PricePerAreaTrend.Fit.MonthlyPct
			require.Greater(t, ppaPct-pricePct, 1.0)

			want := pricePct
			if metric == models.MetricPricePerArea {
				want = ppaPct
			}

			summary := rs.AdjustmentSummary
			require.NotNil(t, summary)
			assert.Equal(t, metric, summary.TrendMetric)
			require.NotNil(t, summary.MonthlyTrendPct)
			assert.InDelta(t, want, *summary.MonthlyTrendPct, 1e-12)

			require.Len(t, rs.Adjustments, 36)
			applied := 0
			for _, a := range rs.Adjustments {
				if a.DaysFromValuation <= 30 {
					continue
				}
				applied++
				expected := a.SalePrice * want / 100 / 30.44 * float64(a.DaysFromValuation)
				assert.InDelta(t, expected, a.Time.Amount, 1e-6, a.Address)
			}
			assert.Equal(t, 33, applied)
		})
	}
}

func TestRunMissingLivingArea(t *testing.T) {
	e := newTestEngine()
	table := models.RawTable{
		Headers: []string{"Address", "Sale Date", "Sale Price", "Property Type", "Year Built", "Beds", "Baths"},
		Rows:    [][]string{{"1 Elm St", "2024-05-01", "300000"}},
	}

	rs, err := e.Run(context.Background(), table, baseConfig())

	assert.Nil(t, rs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMissingRequiredFields))
}

func TestRunInvalidConfig(t *testing.T) {
	e := newTestEngine()
	cfg := baseConfig()
	cfg.SubjectLivingArea = 0
	cfg.DateOfValue = models.Date{}
	cfg.TrendMetric = "volume"

	rs, err := e.Run(context.Background(), risingMarketTable(), cfg)

	assert.Nil(t, rs)
	require.ErrorIs(t, err, ErrInvalidConfig)

	var cerrs models.ConfigErrors
	require.ErrorAs(t, err, &cerrs)
	fields := make([]string, len(cerrs))
	for i, ce := range cerrs {
		fields[i] = ce.Field
	}
	assert.ElementsMatch(t, []string{"date_of_value", "subject_living_area", "trend_metric"}, fields)
}

func TestPrepareDefaults(t *testing.T) {
	e := newTestEngine()

	cfg, err := e.Prepare(models.AnalysisConfig{DateOfValue: dov, SubjectLivingArea: 1500})
	require.NoError(t, err)
	assert.Equal(t, models.MetricPrice, cfg.TrendMetric)
	assert.Equal(t, []int{3, 6, 12, 24}, cfg.PeriodMonths)
	assert.Equal(t, models.DefaultThresholds(), cfg.Thresholds)

	cfg, err = e.Prepare(models.AnalysisConfig{DateOfValue: dov, SubjectLivingArea: 1500, PeriodMonths: []int{12, 3, 12}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 12}, cfg.PeriodMonths)

	lat := 52.0
	_, err = e.Prepare(models.AnalysisConfig{DateOfValue: dov, SubjectLivingArea: 1500, SubjectLatitude: &lat})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad := models.DefaultThresholds()
	bad.MaxLivingArea = 100
	_, err = e.Prepare(models.AnalysisConfig{DateOfValue: dov, SubjectLivingArea: 1500, Thresholds: bad})
	var cerrs models.ConfigErrors
	require.ErrorAs(t, err, &cerrs)
	assert.Equal(t, "thresholds.max_living_area", cerrs[0].Field)
}

func TestRunExcludesFutureSales(t *testing.T) {
	e := newTestEngine()
	table := risingMarketTable()
	table.Rows = append(table.Rows, []string{"99 Future Rd", dov.AddDays(10).String(), "9000000", "1800", "Sold"})

	rs, err := e.Run(context.Background(), table, baseConfig())
	require.NoError(t, err)

	future := rs.Records[40]
	assert.True(t, future.Excluded)
	assert.True(t, future.HasFlag(models.FlagFutureDate))

	for _, p := range rs.Periods {
		assert.Equal(t, p.SaleCount, p.PriceTrend.Points, p.Period.Label)
	}
	year, _ := findPeriod(rs, 12)
	assert.Equal(t, 40, year.PriceTrend.Points)
	assert.Len(t, rs.Adjustments, 40)
}

func TestRunWithoutUsablePeriods(t *testing.T) {
	e := newTestEngine()
	table := models.RawTable{
		Headers: []string{"address", "sale date", "sale price", "living area", "property type", "year built", "beds", "baths"},
		Rows:    [][]string{{"1 Elm St", "not a date", "300000", "1800"}},
	}

	rs, err := e.Run(context.Background(), table, baseConfig())
	require.NoError(t, err)

	assert.Empty(t, rs.Coverage.ValidPeriods)
	assert.Empty(t, rs.Periods)
	assert.Empty(t, rs.Adjustments)
	assert.Nil(t, rs.AdjustmentSummary)
	assert.True(t, hasMessage(rs, "no_valid_periods"))
	assert.Len(t, rs.Records, 1)
}

func TestRunIsRepeatable(t *testing.T) {
	e := newTestEngine()
	fixed := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	first, err := e.Run(context.Background(), risingMarketTable(), baseConfig())
	require.NoError(t, err)
	second, err := e.Run(context.Background(), risingMarketTable(), baseConfig())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	second.RunID = first.RunID
	assert.Equal(t, first, second)
}

func TestRunCancelled(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, risingMarketTable(), baseConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
