// Package engine runs a complete market trend and adjustment analysis.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"markettrend/server/internal/adjustment"
	"markettrend/server/internal/aggregator"
	"markettrend/server/internal/cleaner"
	"markettrend/server/internal/coverage"
	"markettrend/server/internal/models"
	"markettrend/server/internal/processor"
	"markettrend/server/internal/trend"
)

var ErrInvalidConfig = errors.New("invalid analysis config")

type Engine struct {
	cleaner  *cleaner.Cleaner
	pool     *processor.Pool
	validate *validator.Validate
	logger   *logrus.Logger
	now      func() time.Time
}

func New(resolver cleaner.HeaderResolver, workers int, logger *logrus.Logger) *Engine {
	return &Engine{
		cleaner:  cleaner.New(resolver),
		pool:     processor.NewPool(workers, logger),
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// Run analyzes one table. It fails only for an invalid config, a table that
// lacks required columns, or a cancelled context; every other problem is
// reported in the result's messages.
func (e *Engine) Run(ctx context.Context, table models.RawTable, cfg models.AnalysisConfig) (*models.ResultSet, error) {
	cfg, err := e.Prepare(cfg)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := e.logger.WithFields(logrus.Fields{
		"run_id":        runID,
		"date_of_value": cfg.DateOfValue.String(),
		"rows":          len(table.Rows),
	})
	log.Info("Starting analysis")

	cleaned, err := e.cleaner.Clean(table, cfg)
	if err != nil {
		log.WithError(err).Warn("Table rejected")
		return nil, err
	}
	records := cleaned.Records

	report := coverage.Select(records, cfg)
	log.WithFields(logrus.Fields{
		"valid_records":  report.ValidRecords,
		"valid_periods":  len(report.ValidPeriods),
		"primary_period": report.PrimaryPeriodMonths,
	}).Info("Periods selected")

	analyzer := trend.NewAnalyzer(cfg.Thresholds)
	actives := aggregator.ActiveListings(records)
	periods, err := processor.Map(ctx, e.pool, "periods", report.ValidPeriods,
		func(ctx context.Context, p models.AnalysisPeriod) (models.PeriodAnalysis, error) {
			trends := analyzer.Analyze(p, records)
			return aggregator.PeriodStatistics(p, records, trends, actives, cfg.Thresholds), nil
		})
	if err != nil {
		return nil, err
	}

	var adjustments []models.AdjustmentResult
	var summary *models.AdjustmentSummary
	if primary, ok := report.PrimaryPeriod(); ok {
		adjustments, summary, err = e.adjust(ctx, cfg, records, primary, periods)
		if err != nil {
			return nil, err
		}
	}

	result := aggregator.Assemble(aggregator.Input{
		RunID:       runID,
		GeneratedAt: e.now().UTC(),
		Config:      cfg,
		Records:     records,
		Coverage:    report,
		Periods:     periods,
		Adjustments: adjustments,
		Summary:     summary,
		Messages:    cleaned.Messages,
	})

	log.WithFields(logrus.Fields{
		"adjustments": len(result.Adjustments),
		"messages":    len(result.Coverage.Messages),
	}).Info("Analysis complete")
	return result, nil
}

func (e *Engine) adjust(ctx context.Context, cfg models.AnalysisConfig, records []models.SaleRecord, primary models.AnalysisPeriod, periods []models.PeriodAnalysis) ([]models.AdjustmentResult, *models.AdjustmentSummary, error) {
	var population []models.SaleRecord
	for _, r := range records {
		if r.Valid() && primary.Contains(*r.SaleDate) {
			population = append(population, r)
		}
	}

	var primaryTrend models.TrendResult
	for _, p := range periods {
		if p.Period.Months == primary.Months {
			primaryTrend = p.PriceTrend
			if cfg.TrendMetric == models.MetricPricePerArea {
				primaryTrend = p.PricePerAreaTrend
			}
		}
	}

	mv := adjustment.MarginalValue(population)
	calc := adjustment.NewCalculator(cfg)

	adjustments, err := processor.Map(ctx, e.pool, "adjustments", population,
		func(ctx context.Context, r models.SaleRecord) (models.AdjustmentResult, error) {
			return calc.Adjust(r, primaryTrend, mv), nil
		})
	if err != nil {
		return nil, nil, err
	}
	return adjustments, aggregator.Summarize(adjustments, cfg.TrendMetric, primaryTrend, mv), nil
}

// Prepare fills defaults into cfg and validates it. The returned config is the
// one a run uses.
func (e *Engine) Prepare(cfg models.AnalysisConfig) (models.AnalysisConfig, error) {
	if cfg.TrendMetric == "" {
		cfg.TrendMetric = models.MetricPrice
	}
	if len(cfg.PeriodMonths) == 0 {
		cfg.PeriodMonths = append([]int(nil), models.DefaultPeriodMonths...)
	}
	if cfg.Thresholds == (models.Thresholds{}) {
		cfg.Thresholds = models.DefaultThresholds()
	}

	var errs models.ConfigErrors
	if cfg.DateOfValue.IsZero() {
		errs = append(errs, models.ConfigError{Field: "date_of_value", Message: "is required"})
	}
	if err := e.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			errs = append(errs, models.ConfigError{Field: fieldPath(fe), Message: describe(fe)})
		}
	}
	if (cfg.SubjectLatitude == nil) != (cfg.SubjectLongitude == nil) {
		errs = append(errs, models.ConfigError{Field: "subject_latitude", Message: "latitude and longitude must be given together"})
	}
	if len(errs) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}

	cfg.PeriodMonths = coverage.NormalizePeriods(cfg.PeriodMonths)
	return cfg, nil
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtfield":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
