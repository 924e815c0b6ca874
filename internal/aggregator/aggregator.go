// Package aggregator summarises periods and adjustments and assembles the
// final result set.
package aggregator

import (
	"fmt"
	"time"

	"markettrend/server/internal/geometry"
	"markettrend/server/internal/models"
	"markettrend/server/internal/stats"
	"markettrend/server/internal/trend"
)

const component = "aggregator"

// Distribution summarises xs, or returns nil for an empty sample.
func Distribution(xs []float64) *models.Distribution {
	if len(xs) == 0 {
		return nil
	}
	lo, hi := stats.MinMax(xs)
	d := &models.Distribution{
		N:      len(xs),
		Mean:   stats.Mean(xs),
		Median: stats.Median(xs),
		Min:    lo,
		Max:    hi,
	}
	if sd, ok := stats.StdDev(xs); ok {
		d.StdDev = &sd
	}
	return d
}

// ActiveListings counts records whose status is active.
func ActiveListings(records []models.SaleRecord) int {
	n := 0
	for _, r := range records {
		if r.Status == models.StatusActive {
			n++
		}
	}
	return n
}

// PeriodStatistics computes the market statistics of one accepted period and
// attaches its trends.
func PeriodStatistics(period models.AnalysisPeriod, records []models.SaleRecord, trends trend.PeriodTrends, activeListings int, t models.Thresholds) models.PeriodAnalysis {
	var prices, ppas, doms []float64
	for _, r := range records {
		if !r.Valid() || !period.Contains(*r.SaleDate) {
			continue
		}
		prices = append(prices, r.Price())
		ppas = append(ppas, r.PPA())
		if r.DaysOnMarket != nil {
			doms = append(doms, float64(*r.DaysOnMarket))
		}
	}

	pa := models.PeriodAnalysis{
		Period:            period,
		SaleCount:         len(prices),
		ActiveListings:    activeListings,
		Price:             Distribution(prices),
		PricePerArea:      Distribution(ppas),
		DaysOnMarket:      Distribution(doms),
		PriceTrend:        trends.Price,
		PricePerAreaTrend: trends.PricePerArea,
	}
	pa.AbsorptionRate = float64(pa.SaleCount) / float64(period.Months)
	if pa.AbsorptionRate > 0 {
		moi := float64(activeListings) / pa.AbsorptionRate
		pa.MonthsOfInventory = &moi
	}

	if period.LowSample {
		pa.ConfidenceNotes = append(pa.ConfidenceNotes,
			fmt.Sprintf("fewer than %d sales", t.LowSampleCount))
	}
	switch {
	case !trends.Price.Available:
		pa.ConfidenceNotes = append(pa.ConfidenceNotes, "price trend unavailable")
	case trends.Price.Fit.Direction == models.DirectionUnstable:
		pa.ConfidenceNotes = append(pa.ConfidenceNotes,
			fmt.Sprintf("price trend R² %.2f below %.2f", trends.Price.Fit.RSquared, t.MinRSquared))
	}
	pa.LowConfidence = len(pa.ConfidenceNotes) > 0
	return pa
}

// Summarize compares unadjusted and adjusted prices over the adjustment set.
func Summarize(adjustments []models.AdjustmentResult, metric models.TrendMetric, primary models.TrendResult, mv models.MarginalValue) *models.AdjustmentSummary {
	s := &models.AdjustmentSummary{
		PeriodMonths:  primary.PeriodMonths,
		Sales:         len(adjustments),
		TrendMetric:   metric,
		MarginalValue: mv,
	}
	if primary.Available {
		pct := primary.Fit.MonthlyPct
		s.MonthlyTrendPct = &pct
	}

	var prices, ppas, adjPrices, adjPPAs []float64
	for _, a := range adjustments {
		prices = append(prices, a.SalePrice)
		ppas = append(ppas, a.SalePrice/a.LivingArea)
		adjPrices = append(adjPrices, a.AdjustedPrice)
		adjPPAs = append(adjPPAs, a.AdjustedPricePerArea)

		timed := a.Time.Status == models.AdjustmentApplied
		sized := a.Size.Status == models.AdjustmentApplied
		switch {
		case timed && sized:
			s.Both++
		case timed:
			s.TimeOnly++
		case sized:
			s.SizeOnly++
		default:
			s.None++
		}
	}
	s.Unadjusted = priceSummary(prices, ppas)
	s.Adjusted = priceSummary(adjPrices, adjPPAs)
	return s
}

func priceSummary(prices, ppas []float64) models.PriceSummary {
	return models.PriceSummary{
		MeanPrice:          stats.Mean(prices),
		MedianPrice:        stats.Median(prices),
		MeanPricePerArea:   stats.Mean(ppas),
		MedianPricePerArea: stats.Median(ppas),
	}
}

// Input carries everything computed for one run.
type Input struct {
	RunID       string
	GeneratedAt time.Time
	Config      models.AnalysisConfig
	Records     []models.SaleRecord
	Coverage    models.CoverageReport
	Periods     []models.PeriodAnalysis
	Adjustments []models.AdjustmentResult
	Summary     *models.AdjustmentSummary
	// Messages from cleaning, reported ahead of coverage messages.
	Messages []models.Message
}

// Assemble builds the result set. The coverage report from the selector is
// copied, never modified.
func Assemble(in Input) *models.ResultSet {
	report := in.Coverage
	report.MarketArea = geometry.MarketArea(in.Records)

	messages := make([]models.Message, 0, len(in.Messages)+len(in.Coverage.Messages)+len(in.Periods))
	messages = append(messages, in.Messages...)
	messages = append(messages, in.Coverage.Messages...)

	periods := make([]models.PeriodAnalysis, len(in.Periods))
	for i, p := range in.Periods {
		p.Primary = p.Period.Months == report.PrimaryPeriodMonths
		periods[i] = p
		messages = append(messages, periodMessages(p)...)
	}
	messages = append(messages, summaryMessages(in.Summary)...)
	report.Messages = messages

	adjustments := in.Adjustments
	if adjustments == nil {
		adjustments = []models.AdjustmentResult{}
	}

	return &models.ResultSet{
		RunID:             in.RunID,
		GeneratedAt:       in.GeneratedAt,
		Config:            in.Config,
		Coverage:          report,
		Periods:           periods,
		Adjustments:       adjustments,
		AdjustmentSummary: in.Summary,
		Records:           in.Records,
	}
}

func periodMessages(p models.PeriodAnalysis) []models.Message {
	var out []models.Message
	for _, tr := range []models.TrendResult{p.PriceTrend, p.PricePerAreaTrend} {
		if tr.Available {
			continue
		}
		out = append(out, models.Message{
			Severity:  models.SeverityWarning,
			Component: "trend",
			Code:      "trend_unavailable",
			Text:      fmt.Sprintf("%s %s trend unavailable: %s", p.Period.Label, tr.Metric, tr.Reason),
		})
	}
	if p.LowConfidence {
		out = append(out, models.Message{
			Severity:  models.SeverityInfo,
			Component: component,
			Code:      "low_confidence",
			Text:      fmt.Sprintf("%s is low confidence: %v", p.Period.Label, p.ConfidenceNotes),
		})
	}
	return out
}

func summaryMessages(s *models.AdjustmentSummary) []models.Message {
	if s == nil {
		return nil
	}
	var out []models.Message
	if s.MonthlyTrendPct == nil {
		out = append(out, models.Message{
			Severity:  models.SeverityWarning,
			Component: "adjustment",
			Code:      "time_adjustment_unavailable",
			Text:      "primary period trend unavailable; time adjustments outside the threshold are not computed",
		})
	}
	switch {
	case !s.MarginalValue.Available:
		out = append(out, models.Message{
			Severity:  models.SeverityWarning,
			Component: "adjustment",
			Code:      "size_adjustment_unavailable",
			Text:      "marginal value unavailable (" + s.MarginalValue.Reason + "); size adjustments outside the threshold are not computed",
		})
	case s.MarginalValue.PerArea() <= 0:
		out = append(out, models.Message{
			Severity:  models.SeverityWarning,
			Component: "adjustment",
			Code:      "non_positive_marginal_value",
			Text:      fmt.Sprintf("marginal value per area is %.2f; review size adjustments", s.MarginalValue.PerArea()),
		})
	}
	return out
}
