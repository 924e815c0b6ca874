package config

import (
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"markettrend/server/internal/models"
)

type Config struct {
	Server struct {
		Port string `env:"PORT" envDefault:"5250"`

		// Origins allowed by CORS. Empty allows any origin.
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	}

	Database struct {
		// Path to the sqlite sale store. Empty disables stored-sale analysis.
		Path string `env:"DB_PATH"`
	}

	Analysis struct {
		// Number of concurrent workers for per-period and per-sale steps
		Workers int `env:"ANALYSIS_WORKERS" envDefault:"4"`

		PeriodMonths []int `env:"ANALYSIS_PERIODS" envSeparator:"," envDefault:"3,6,12,24"`

		TimeThresholdDays    int     `env:"TIME_THRESHOLD_DAYS" envDefault:"30"`
		SizeThresholdPct     float64 `env:"SIZE_THRESHOLD_PCT" envDefault:"5"`
		IQRMultiplier        float64 `env:"IQR_MULTIPLIER" envDefault:"1.5"`
		MinLivingArea        float64 `env:"MIN_LIVING_AREA" envDefault:"300"`
		MaxLivingArea        float64 `env:"MAX_LIVING_AREA" envDefault:"10000"`
		MinRSquared          float64 `env:"MIN_R_SQUARED" envDefault:"0.30"`
		StableSlopePerMonth  float64 `env:"STABLE_SLOPE_PER_MONTH" envDefault:"0.5"`
		LowSampleCount       int     `env:"LOW_SAMPLE_COUNT" envDefault:"3"`
		CoverageBufferMonths float64 `env:"COVERAGE_BUFFER_MONTHS" envDefault:"1"`
		DaysPerMonth         float64 `env:"DAYS_PER_MONTH" envDefault:"30.44"`

		// Optional YAML file of extra header aliases
		ColumnAliasesFile string `env:"COLUMN_ALIASES_FILE"`
	}

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads a .env file when one exists, then the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Thresholds returns the configured analysis constants.
func (c *Config) Thresholds() models.Thresholds {
	a := c.Analysis
	return models.Thresholds{
		TimeThresholdDays:    a.TimeThresholdDays,
		SizeThresholdPct:     a.SizeThresholdPct,
		IQRMultiplier:        a.IQRMultiplier,
		MinLivingArea:        a.MinLivingArea,
		MaxLivingArea:        a.MaxLivingArea,
		MinRSquared:          a.MinRSquared,
		StableSlopePerMonth:  a.StableSlopePerMonth,
		LowSampleCount:       a.LowSampleCount,
		CoverageBufferMonths: a.CoverageBufferMonths,
		DaysPerMonth:         a.DaysPerMonth,
	}
}

// AnalysisDefaults returns a config template carrying the configured periods
// and thresholds. Callers fill in the subject and date of value.
func (c *Config) AnalysisDefaults() models.AnalysisConfig {
	periods := make([]int, len(c.Analysis.PeriodMonths))
	copy(periods, c.Analysis.PeriodMonths)
	if len(periods) == 0 {
		periods = append(periods, models.DefaultPeriodMonths...)
	}
	return models.AnalysisConfig{
		PeriodMonths: periods,
		TrendMetric:  models.MetricPrice,
		Thresholds:   c.Thresholds(),
	}
}
