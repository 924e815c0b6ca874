package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markettrend/server/internal/models"
)

func writeSales(t *testing.T) string {
	t.Helper()
	var b bytes.Buffer
	b.WriteString("Address,Close Date,Sold Price,GLA,Type,Year Built,Beds,Baths,Lat,Lng\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "%d Elm St,%s,%d,%d,Townhouse,%d,3,2,52.%d,4.9\n", i+1, start.AddDate(0, 0, i*15).Format("01/02/2006"), 300000+i*2500, 1700+(i%3)*150, 1980+i, i)
	}
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0644))
	return path
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	args := []string{
		"-data", writeSales(t),
		"-dov", "2024-06-30",
		"-subject-area", "1800",
		"-periods", "3, 6",
		"-subject-lat", "52.3",
		"-subject-lon", "4.9",
	}

	require.NoError(t, run(context.Background(), args, &out, quietLogger()))

	var rs models.ResultSet
	require.NoError(t, json.Unmarshal(out.Bytes(), &rs))
	assert.Equal(t, []int{3, 6}, rs.Config.PeriodMonths)
	assert.Len(t, rs.Records, 10)
	require.NotEmpty(t, rs.Adjustments)
	assert.NotNil(t, rs.Adjustments[0].DistanceMeters)
	require.NotNil(t, rs.Coverage.MarketArea)
}

func TestRunWritesStore(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "result.json")
	args := []string{
		"-data", writeSales(t),
		"-dov", "2024-06-30",
		"-subject-area", "1800",
		"-out", outPath,
		"-store", filepath.Join(dir, "sales.db"),
		"-city", "Springfield",
	}

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), args, &stdout, quietLogger()))
	assert.Zero(t, stdout.Len())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var rs models.ResultSet
	require.NoError(t, json.Unmarshal(data, &rs))
	assert.NotEmpty(t, rs.RunID)
}

func TestRunRequiresFlags(t *testing.T) {
	err := run(context.Background(), []string{"-dov", "2024-06-30"}, &bytes.Buffer{}, quietLogger())
	assert.Error(t, err)
}

func TestBuildConfig(t *testing.T) {
	defaults := models.AnalysisConfig{PeriodMonths: []int{3, 6, 12, 24}, TrendMetric: models.MetricPrice, Thresholds: models.DefaultThresholds()}

	cfg, err := buildConfig(options{dateOfValue: "2024-06-30", subjectArea: 2000, metric: "price_per_area", adjustPeriod: 12, excludeOutliers: true}, defaults)
	require.NoError(t, err)
	assert.Equal(t, models.MetricPricePerArea, cfg.TrendMetric)
	assert.Equal(t, 12, cfg.AdjustmentPeriodMonths)
	assert.True(t, cfg.ExcludeOutliers)
	assert.Equal(t, []int{3, 6, 12, 24}, cfg.PeriodMonths)
	assert.Nil(t, cfg.SubjectLatitude)

	_, err = buildConfig(options{dateOfValue: "2024-06-30", periods: "3,x"}, defaults)
	assert.Error(t, err)

	_, err = buildConfig(options{dateOfValue: "2024-06-30", subjectLat: "52"}, defaults)
	assert.Error(t, err)

	_, err = buildConfig(options{dateOfValue: "June"}, defaults)
	assert.Error(t, err)
}
