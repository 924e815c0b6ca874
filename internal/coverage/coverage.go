// Package coverage decides which look-back periods the data can support.
package coverage

import (
	"fmt"
	"sort"

	"markettrend/server/internal/models"
)

const component = "coverage"

// PeriodStart returns the first day of a window of months ending at dov.
func PeriodStart(dov models.Date, months int, daysPerMonth float64) models.Date {
	return dov.AddDays(-int(float64(months) * daysPerMonth))
}

// NormalizePeriods returns the distinct positive period lengths in ascending order.
func NormalizePeriods(months []int) []int {
	seen := make(map[int]bool, len(months))
	out := make([]int, 0, len(months))
	for _, m := range months {
		if m <= 0 || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

// Select builds the coverage report for a set of cleaned records.
func Select(records []models.SaleRecord, cfg models.AnalysisConfig) models.CoverageReport {
	t := cfg.Thresholds
	report := models.CoverageReport{
		DateOfValue:     cfg.DateOfValue,
		TotalRecords:    len(records),
		ValidPeriods:    []models.AnalysisPeriod{},
		RejectedPeriods: []models.AnalysisPeriod{},
	}

	var valid []models.SaleRecord
	for _, r := range records {
		if r.PriceOutlier {
			report.PriceOutliers++
		}
		if r.SFOutlier {
			report.SFOutliers++
		}
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	report.ValidRecords = len(valid)
	report.ExcludedRecords = len(records) - len(valid)

	if len(valid) > 0 {
		earliest, latest := *valid[0].SaleDate, *valid[0].SaleDate
		for _, r := range valid[1:] {
			if r.SaleDate.Before(earliest) {
				earliest = *r.SaleDate
			}
			if r.SaleDate.After(latest) {
				latest = *r.SaleDate
			}
		}
		report.EarliestSale = &earliest
		report.LatestSale = &latest
		report.CoverageDays = cfg.DateOfValue.DaysSince(earliest)
		report.CoverageMonths = float64(report.CoverageDays) / t.DaysPerMonth
	}

	lastCount := -1
	for _, months := range NormalizePeriods(cfg.PeriodMonths) {
		p := models.AnalysisPeriod{
			Months: months,
			Label:  models.PeriodLabel(months),
			Start:  PeriodStart(cfg.DateOfValue, months, t.DaysPerMonth),
			End:    cfg.DateOfValue,
		}
		for _, r := range valid {
			if p.Contains(*r.SaleDate) {
				p.SaleCount++
			}
		}

		switch {
		case len(valid) == 0:
			p.RejectionReason = "no valid sales"
		case float64(months) > report.CoverageMonths+t.CoverageBufferMonths:
			p.RejectionReason = fmt.Sprintf("exceeds data coverage of %.1f months", report.CoverageMonths)
		case p.SaleCount == lastCount:
			p.RejectionReason = "adds no sales beyond the previous period"
		}

		if p.RejectionReason != "" {
			report.RejectedPeriods = append(report.RejectedPeriods, p)
			report.Messages = append(report.Messages, models.Message{
				Severity:  models.SeverityInfo,
				Component: component,
				Code:      "period_rejected",
				Text:      fmt.Sprintf("%s rejected: %s", p.Label, p.RejectionReason),
			})
			continue
		}

		p.Accepted = true
		p.LowSample = p.SaleCount < t.LowSampleCount
		if p.LowSample {
			report.Messages = append(report.Messages, models.Message{
				Severity:  models.SeverityWarning,
				Component: component,
				Code:      "low_sample",
				Text:      fmt.Sprintf("%s has only %d sales; results are low confidence", p.Label, p.SaleCount),
				Count:     p.SaleCount,
			})
		}
		lastCount = p.SaleCount
		report.ValidPeriods = append(report.ValidPeriods, p)
	}

	if len(report.ValidPeriods) == 0 {
		report.Messages = append(report.Messages, models.Message{
			Severity:  models.SeverityHigh,
			Component: component,
			Code:      "no_valid_periods",
			Text:      "no analysis period is supported by the data; trends and adjustments are unavailable",
		})
		return report
	}

	report.PrimaryPeriodMonths = report.ValidPeriods[len(report.ValidPeriods)-1].Months
	if want := cfg.AdjustmentPeriodMonths; want > 0 {
		found := false
		for _, p := range report.ValidPeriods {
			if p.Months == want {
				found = true
				break
			}
		}
		if found {
			report.PrimaryPeriodMonths = want
		} else {
			report.Messages = append(report.Messages, models.Message{
				Severity:  models.SeverityWarning,
				Component: component,
				Code:      "adjustment_period_unavailable",
				Text: fmt.Sprintf("requested adjustment period of %d months is not an accepted period; using %d months",
					want, report.PrimaryPeriodMonths),
			})
		}
	}
	return report
}
