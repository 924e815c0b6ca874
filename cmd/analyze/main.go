// Command analyze runs a market trend and adjustment analysis on a sales file
// and prints the result set as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"markettrend/server/config"
	"markettrend/server/internal/database"
	"markettrend/server/internal/engine"
	"markettrend/server/internal/models"
	"markettrend/server/internal/tabular"
)

type options struct {
	dataPath        string
	dateOfValue     string
	subjectArea     float64
	subjectLat      string
	subjectLon      string
	periods         string
	adjustPeriod    int
	metric          string
	excludeOutliers bool
	outPath         string
	storePath       string
	city            string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.StringVar(&o.dataPath, "data", "", "CSV or XLSX file of sales")
	fs.StringVar(&o.dateOfValue, "dov", "", "date of value (YYYY-MM-DD)")
	fs.Float64Var(&o.subjectArea, "subject-area", 0, "subject living area")
	fs.StringVar(&o.subjectLat, "subject-lat", "", "subject latitude")
	fs.StringVar(&o.subjectLon, "subject-lon", "", "subject longitude")
	fs.StringVar(&o.periods, "periods", "", "comma separated period lengths in months")
	fs.IntVar(&o.adjustPeriod, "period", 0, "period used for adjustments (months)")
	fs.StringVar(&o.metric, "metric", "", "trend metric for time adjustments: price or price_per_area")
	fs.BoolVar(&o.excludeOutliers, "exclude-outliers", false, "exclude flagged outliers from analysis")
	fs.StringVar(&o.outPath, "out", "", "write the result to this file instead of stdout")
	fs.StringVar(&o.storePath, "store", "", "also save the cleaned sales to this sqlite store")
	fs.StringVar(&o.city, "city", "", "city recorded with saved sales")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.dataPath == "" || o.dateOfValue == "" || o.subjectArea <= 0 {
		return o, fmt.Errorf("-data, -dov and -subject-area are required")
	}
	return o, nil
}

func buildConfig(o options, defaults models.AnalysisConfig) (models.AnalysisConfig, error) {
	cfg := defaults
	dov, err := models.ParseDate(o.dateOfValue)
	if err != nil {
		return cfg, err
	}
	cfg.DateOfValue = dov
	cfg.SubjectLivingArea = o.subjectArea
	cfg.AdjustmentPeriodMonths = o.adjustPeriod
	cfg.ExcludeOutliers = o.excludeOutliers
	if o.metric != "" {
		cfg.TrendMetric = models.TrendMetric(o.metric)
	}

	if o.periods != "" {
		cfg.PeriodMonths = nil
		for _, p := range strings.Split(o.periods, ",") {
			m, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return cfg, fmt.Errorf("invalid period %q", p)
			}
			cfg.PeriodMonths = append(cfg.PeriodMonths, m)
		}
	}

	if o.subjectLat != "" || o.subjectLon != "" {
		lat, err := strconv.ParseFloat(o.subjectLat, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid -subject-lat: %w", err)
		}
		lon, err := strconv.ParseFloat(o.subjectLon, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid -subject-lon: %w", err)
		}
		cfg.SubjectLatitude, cfg.SubjectLongitude = &lat, &lon
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *logrus.Logger) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	aliases, err := config.LoadAliases(appCfg.Analysis.ColumnAliasesFile)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(o, appCfg.AnalysisDefaults())
	if err != nil {
		return err
	}

	table, err := tabular.ReadFile(o.dataPath)
	if err != nil {
		return err
	}

	eng := engine.New(aliases, appCfg.Analysis.Workers, logger)
	result, err := eng.Run(ctx, table, cfg)
	if err != nil {
		return err
	}

	if o.storePath != "" {
		db, err := database.NewDatabase(o.storePath, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}
		if _, err := db.SaveRecords(ctx, o.city, result.Records); err != nil {
			return err
		}
	}

	out := stdout
	if o.outPath != "" {
		f, err := os.Create(o.outPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", o.outPath, err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		logger.WithError(err).Fatal("Analysis failed")
	}
}
