package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"markettrend/server/internal/engine"
	"markettrend/server/internal/models"
)

// ConfigRequest is the analysis configuration as sent by clients. Omitted
// fields fall back to the server defaults; thresholds may be given partially.
type ConfigRequest struct {
	DateOfValue            string          `json:"date_of_value" binding:"required"`
	SubjectLivingArea      float64         `json:"subject_living_area" binding:"required"`
	SubjectLatitude        *float64        `json:"subject_latitude"`
	SubjectLongitude       *float64        `json:"subject_longitude"`
	PeriodMonths           []int           `json:"period_months"`
	AdjustmentPeriodMonths int             `json:"adjustment_period_months"`
	TrendMetric            string          `json:"trend_metric"`
	ExcludeOutliers        bool            `json:"exclude_outliers"`
	Thresholds             json.RawMessage `json:"thresholds"`
}

type AnalysisRequest struct {
	Config  ConfigRequest `json:"config" binding:"required"`
	Headers []string      `json:"headers" binding:"required,min=1"`
	Rows    [][]string    `json:"rows"`
}

type StoredAnalysisRequest struct {
	Config ConfigRequest `json:"config" binding:"required"`
	City   string        `json:"city"`
	From   string        `json:"from"`
	To     string        `json:"to"`
}

// ToConfig merges the request onto defaults.
func (r ConfigRequest) ToConfig(defaults models.AnalysisConfig) (models.AnalysisConfig, error) {
	cfg := defaults
	cfg.PeriodMonths = append([]int(nil), defaults.PeriodMonths...)

	dov, err := models.ParseDate(r.DateOfValue)
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", engine.ErrInvalidConfig, models.ConfigErrors{
			{Field: "date_of_value", Message: "must be a YYYY-MM-DD date"},
		})
	}
	cfg.DateOfValue = dov
	cfg.SubjectLivingArea = r.SubjectLivingArea
	cfg.SubjectLatitude = r.SubjectLatitude
	cfg.SubjectLongitude = r.SubjectLongitude
	cfg.AdjustmentPeriodMonths = r.AdjustmentPeriodMonths
	cfg.ExcludeOutliers = r.ExcludeOutliers
	if len(r.PeriodMonths) > 0 {
		cfg.PeriodMonths = r.PeriodMonths
	}
	if r.TrendMetric != "" {
		cfg.TrendMetric = models.TrendMetric(r.TrendMetric)
	}

	if raw := bytes.TrimSpace(r.Thresholds); len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &cfg.Thresholds); err != nil {
			return cfg, fmt.Errorf("%w: %w", engine.ErrInvalidConfig, models.ConfigErrors{
				{Field: "thresholds", Message: err.Error()},
			})
		}
	}
	return cfg, nil
}

func parseBound(s string, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", engine.ErrInvalidConfig, models.ConfigErrors{
			{Field: field, Message: "must be a YYYY-MM-DD date"},
		})
	}
	return d.Time, nil
}
