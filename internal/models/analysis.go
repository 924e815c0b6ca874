package models

import (
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityHigh    Severity = "high"
)

// Message is a reviewer-facing note. Rows lists affected input rows when the
// message aggregates many records.
type Message struct {
	Severity  Severity `json:"severity"`
	Component string   `json:"component"`
	Code      string   `json:"code"`
	Text      string   `json:"text"`
	Count     int      `json:"count,omitempty"`
	Rows      []int    `json:"rows,omitempty"`
}

// AnalysisPeriod is a look-back window ending at the date of value.
type AnalysisPeriod struct {
	Months          int    `json:"months"`
	Label           string `json:"label"`
	Start           Date   `json:"start"`
	End             Date   `json:"end"`
	SaleCount       int    `json:"sale_count"`
	Accepted        bool   `json:"accepted"`
	LowSample       bool   `json:"low_sample"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

func PeriodLabel(months int) string {
	return fmt.Sprintf("0-%d months", months)
}

// Contains reports whether d falls in [Start, End].
func (p AnalysisPeriod) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

type MarketArea struct {
	MinLatitude     float64 `json:"min_latitude"`
	MinLongitude    float64 `json:"min_longitude"`
	MaxLatitude     float64 `json:"max_latitude"`
	MaxLongitude    float64 `json:"max_longitude"`
	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
	Points          int     `json:"points"`

	// Outline is the convex hull of the sale locations as a GeoJSON polygon.
	Outline *geojson.Feature `json:"outline,omitempty"`
}

type CoverageReport struct {
	DateOfValue         Date             `json:"date_of_value"`
	EarliestSale        *Date            `json:"earliest_sale"`
	LatestSale          *Date            `json:"latest_sale"`
	CoverageDays        int              `json:"coverage_days"`
	CoverageMonths      float64          `json:"coverage_months"`
	TotalRecords        int              `json:"total_records"`
	ValidRecords        int              `json:"valid_records"`
	ExcludedRecords     int              `json:"excluded_records"`
	PriceOutliers       int              `json:"price_outliers"`
	SFOutliers          int              `json:"sf_outliers"`
	ValidPeriods        []AnalysisPeriod `json:"valid_periods"`
	RejectedPeriods     []AnalysisPeriod `json:"rejected_periods"`
	PrimaryPeriodMonths int              `json:"primary_period_months,omitempty"`
	MarketArea          *MarketArea      `json:"market_area,omitempty"`
	Messages            []Message        `json:"messages"`
}

// PrimaryPeriod returns the accepted period used for adjustments.
func (c CoverageReport) PrimaryPeriod() (AnalysisPeriod, bool) {
	for _, p := range c.ValidPeriods {
		if p.Months == c.PrimaryPeriodMonths {
			return p, true
		}
	}
	return AnalysisPeriod{}, false
}

type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
	DirectionUnstable   Direction = "unstable"
)

// RegressionFit is an ordinary least squares line.
type RegressionFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

type TrendFit struct {
	RegressionFit
	Mean          float64   `json:"mean"`
	MonthlyChange float64   `json:"monthly_change"`
	MonthlyPct    float64   `json:"monthly_pct"`
	Direction     Direction `json:"direction"`
}

// TrendResult is the fitted trend of one metric over one period. Fit is nil
// when the trend could not be computed and Reason says why.
type TrendResult struct {
	PeriodMonths int         `json:"period_months"`
	Metric       TrendMetric `json:"metric"`
	Points       int         `json:"points"`
	Available    bool        `json:"available"`
	Reason       string      `json:"reason,omitempty"`
	Fit          *TrendFit   `json:"fit,omitempty"`
}

// MarginalValue is the value of one unit of living area, from regressing price on area.
type MarginalValue struct {
	Available bool           `json:"available"`
	Reason    string         `json:"reason,omitempty"`
	Fit       *RegressionFit `json:"fit,omitempty"`
}

func (m MarginalValue) PerArea() float64 {
	if m.Fit == nil {
		return 0
	}
	return m.Fit.Slope
}

type AdjustmentStatus string

const (
	AdjustmentApplied         AdjustmentStatus = "applied"
	AdjustmentWithinThreshold AdjustmentStatus = "within_threshold"
	AdjustmentUnavailable     AdjustmentStatus = "unavailable"
)

type AdjustmentLine struct {
	Amount  float64          `json:"amount"`
	Percent float64          `json:"percent"`
	Status  AdjustmentStatus `json:"status"`
	Note    string           `json:"note,omitempty"`
}

type AdjustmentResult struct {
	Row                  int            `json:"row"`
	Address              string         `json:"address"`
	SaleDate             Date           `json:"sale_date"`
	SalePrice            float64        `json:"sale_price"`
	LivingArea           float64        `json:"living_area"`
	PeriodMonths         int            `json:"period_months"`
	DaysFromValuation    int            `json:"days_from_valuation"`
	AreaDifference       float64        `json:"area_difference"`
	Time                 AdjustmentLine `json:"time_adjustment"`
	Size                 AdjustmentLine `json:"size_adjustment"`
	NetAdjustment        float64        `json:"net_adjustment"`
	NetAdjustmentPct     float64        `json:"net_adjustment_pct"`
	AdjustedPrice        float64        `json:"adjusted_price"`
	AdjustedPricePerArea float64        `json:"adjusted_price_per_area"`
	DistanceMeters       *float64       `json:"distance_meters,omitempty"`
}

// Distribution summarises a sample. StdDev is nil below two observations.
type Distribution struct {
	N      int      `json:"n"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	StdDev *float64 `json:"std_dev"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
}

type PeriodAnalysis struct {
	Period            AnalysisPeriod `json:"period"`
	Primary           bool           `json:"primary"`
	SaleCount         int            `json:"sale_count"`
	AbsorptionRate    float64        `json:"absorption_rate"`
	ActiveListings    int            `json:"active_listings"`
	MonthsOfInventory *float64       `json:"months_of_inventory"`
	Price             *Distribution  `json:"price"`
	PricePerArea      *Distribution  `json:"price_per_area"`
	DaysOnMarket      *Distribution  `json:"days_on_market"`
	PriceTrend        TrendResult    `json:"price_trend"`
	PricePerAreaTrend TrendResult    `json:"price_per_area_trend"`
	LowConfidence     bool           `json:"low_confidence"`
	ConfidenceNotes   []string       `json:"confidence_notes,omitempty"`
}

type PriceSummary struct {
	MeanPrice          float64 `json:"mean_price"`
	MedianPrice        float64 `json:"median_price"`
	MeanPricePerArea   float64 `json:"mean_price_per_area"`
	MedianPricePerArea float64 `json:"median_price_per_area"`
}

type AdjustmentSummary struct {
	PeriodMonths    int           `json:"period_months"`
	Sales           int           `json:"sales"`
	TrendMetric     TrendMetric   `json:"trend_metric"`
	MonthlyTrendPct *float64      `json:"monthly_trend_pct"`
	MarginalValue   MarginalValue `json:"marginal_value"`
	Unadjusted      PriceSummary  `json:"unadjusted"`
	Adjusted        PriceSummary  `json:"adjusted"`
	TimeOnly        int           `json:"time_only"`
	SizeOnly        int           `json:"size_only"`
	Both            int           `json:"both"`
	None            int           `json:"none"`
}

// ResultSet is the complete, read-only output of one run.
type ResultSet struct {
	RunID             string             `json:"run_id"`
	GeneratedAt       time.Time          `json:"generated_at"`
	Config            AnalysisConfig     `json:"config"`
	Coverage          CoverageReport     `json:"coverage"`
	Periods           []PeriodAnalysis   `json:"periods"`
	Adjustments       []AdjustmentResult `json:"adjustments"`
	AdjustmentSummary *AdjustmentSummary `json:"adjustment_summary"`
	Records           []SaleRecord       `json:"records"`
}
