package models

import (
	"errors"
	"fmt"
	"strings"
)

type TrendMetric string

const (
	MetricPrice        TrendMetric = "price"
	MetricPricePerArea TrendMetric = "price_per_area"
)

// Thresholds holds the tunable constants of a run.
type Thresholds struct {
	TimeThresholdDays    int     `json:"time_threshold_days" yaml:"time_threshold_days" validate:"gte=0"`
	SizeThresholdPct     float64 `json:"size_threshold_pct" yaml:"size_threshold_pct" validate:"gte=0,lt=100"`
	IQRMultiplier        float64 `json:"iqr_multiplier" yaml:"iqr_multiplier" validate:"gt=0"`
	MinLivingArea        float64 `json:"min_living_area" yaml:"min_living_area" validate:"gte=0"`
	MaxLivingArea        float64 `json:"max_living_area" yaml:"max_living_area" validate:"gtfield=MinLivingArea"`
	MinRSquared          float64 `json:"min_r_squared" yaml:"min_r_squared" validate:"gte=0,lte=1"`
	StableSlopePerMonth  float64 `json:"stable_slope_per_month" yaml:"stable_slope_per_month" validate:"gte=0"`
	LowSampleCount       int     `json:"low_sample_count" yaml:"low_sample_count" validate:"gte=0"`
	CoverageBufferMonths float64 `json:"coverage_buffer_months" yaml:"coverage_buffer_months" validate:"gte=0"`
	DaysPerMonth         float64 `json:"days_per_month" yaml:"days_per_month" validate:"gt=0"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		TimeThresholdDays:    30,
		SizeThresholdPct:     5,
		IQRMultiplier:        1.5,
		MinLivingArea:        300,
		MaxLivingArea:        10000,
		MinRSquared:          0.30,
		StableSlopePerMonth:  0.5,
		LowSampleCount:       3,
		CoverageBufferMonths: 1,
		DaysPerMonth:         30.44,
	}
}

// DefaultPeriodMonths are the candidate look-back windows used when none are given.
var DefaultPeriodMonths = []int{3, 6, 12, 24}

// AnalysisConfig is fixed for the duration of a run.
type AnalysisConfig struct {
	DateOfValue            Date        `json:"date_of_value"`
	SubjectLivingArea      float64     `json:"subject_living_area" validate:"gt=0"`
	SubjectLatitude        *float64    `json:"subject_latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	SubjectLongitude       *float64    `json:"subject_longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	PeriodMonths           []int       `json:"period_months" validate:"required,min=1,dive,gt=0"`
	AdjustmentPeriodMonths int         `json:"adjustment_period_months,omitempty" validate:"gte=0"`
	TrendMetric            TrendMetric `json:"trend_metric" validate:"omitempty,oneof=price price_per_area"`
	ExcludeOutliers        bool        `json:"exclude_outliers"`
	Thresholds             Thresholds  `json:"thresholds"`
}

func (c AnalysisConfig) HasSubjectLocation() bool {
	return c.SubjectLatitude != nil && c.SubjectLongitude != nil
}

// ErrMissingRequiredFields is matched by errors.Is for tables lacking required columns.
var ErrMissingRequiredFields = errors.New("missing required fields")

// ConfigError describes one invalid configuration field.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigErrors collects every invalid field of a configuration.
type ConfigErrors []ConfigError

func (e ConfigErrors) Error() string {
	parts := make([]string, len(e))
	for i, ce := range e {
		parts[i] = ce.Error()
	}
	return "invalid analysis config: " + strings.Join(parts, "; ")
}
