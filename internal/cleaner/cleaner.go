// Package cleaner turns an untyped sales table into typed, flagged sale records.
package cleaner

import (
	"fmt"
	"sort"
	"strings"

	"markettrend/server/internal/models"
	"markettrend/server/internal/stats"
)

const component = "validator"

// minOutlierSample is the smallest price sample the IQR fences are computed on.
const minOutlierSample = 4

// HeaderResolver maps a raw column header to a canonical field name.
type HeaderResolver interface {
	Resolve(header string) (string, bool)
}

type Result struct {
	Records  []models.SaleRecord
	Messages []models.Message
	// HasGeoColumns is set when the table carried a latitude or longitude column.
	HasGeoColumns bool
}

type Cleaner struct {
	resolver HeaderResolver
}

func New(resolver HeaderResolver) *Cleaner {
	return &Cleaner{resolver: resolver}
}

// Clean validates and normalises a table. The only error it returns is a
// *StructuralError; row-level problems become record flags and messages.
func (c *Cleaner) Clean(table models.RawTable, cfg models.AnalysisConfig) (*Result, error) {
	cols, messages := c.mapColumns(table.Headers)

	var missing []string
	for _, f := range models.RequiredFields {
		if _, ok := cols[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &StructuralError{Missing: missing}
	}

	_, hasLat := cols[models.FieldLatitude]
	_, hasLon := cols[models.FieldLongitude]
	geo := hasLat || hasLon

	issues := newIssueLog()
	records := make([]models.SaleRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		if blankRow(row) {
			issues.add(models.FlagBlankRow, i+1)
			continue
		}
		records = append(records, parseRow(i+1, row, cols, cfg, geo, issues))
	}

	flagPriceOutliers(records, cfg.Thresholds.IQRMultiplier, cfg.ExcludeOutliers, issues)
	flagAreaOutliers(records, cfg.Thresholds, cfg.ExcludeOutliers, issues)

	valid := 0
	for i := range records {
		r := &records[i]
		r.Excluded = r.SaleDate == nil || r.SalePrice == nil || r.LivingArea == nil ||
			r.HasFlag(models.FlagFutureDate) || r.Status != models.StatusClosed ||
			(cfg.ExcludeOutliers && (r.PriceOutlier || r.SFOutlier))
		if !r.Excluded {
			valid++
		}
	}

	messages = append(messages, issues.messages()...)
	messages = append(messages, models.Message{
		Severity:  models.SeverityInfo,
		Component: component,
		Code:      "records_cleaned",
		Text:      fmt.Sprintf("%d of %d records are usable for analysis", valid, len(records)),
		Count:     valid,
	})

	return &Result{Records: records, Messages: messages, HasGeoColumns: geo}, nil
}

// mapColumns resolves headers to column indexes. The first column mapped to a
// field wins.
func (c *Cleaner) mapColumns(headers []string) (map[string]int, []models.Message) {
	cols := make(map[string]int)
	var messages []models.Message
	var unmapped []string

	for i, h := range headers {
		field, ok := c.resolver.Resolve(h)
		if !ok {
			if strings.TrimSpace(h) != "" {
				unmapped = append(unmapped, h)
			}
			continue
		}
		if first, dup := cols[field]; dup {
			messages = append(messages, models.Message{
				Severity:  models.SeverityInfo,
				Component: component,
				Code:      "duplicate_column",
				Text:      fmt.Sprintf("column %q also maps to %s; using %q", h, field, headers[first]),
			})
			continue
		}
		cols[field] = i
	}

	if len(unmapped) > 0 {
		messages = append(messages, models.Message{
			Severity:  models.SeverityInfo,
			Component: component,
			Code:      "unmapped_columns",
			Text:      "columns not used: " + strings.Join(unmapped, ", "),
			Count:     len(unmapped),
		})
	}
	return cols, messages
}

func parseRow(rowNum int, row []string, cols map[string]int, cfg models.AnalysisConfig, geo bool, issues *issueLog) models.SaleRecord {
	get := func(field string) string {
		idx, ok := cols[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	rec := models.SaleRecord{
		Row:          rowNum,
		Address:      get(models.FieldAddress),
		PropertyType: get(models.FieldPropertyType),
		YearBuilt:    parseCount(get(models.FieldYearBuilt)),
		Beds:         parseCount(get(models.FieldBeds)),
		Baths:        parseFloatPtr(get(models.FieldBaths)),
		DaysOnMarket: parseCount(get(models.FieldDaysOnMarket)),
		LotSize:      parseFloatPtr(get(models.FieldLotSize)),
		GarageSpaces: parseCount(get(models.FieldGarageSpaces)),
		Latitude:     parseCoordinate(get(models.FieldLatitude), 90),
		Longitude:    parseCoordinate(get(models.FieldLongitude), 180),
		Status:       normaliseStatus(get(models.FieldStatus)),
	}
	if subjectRow(row) {
		rec.Status = models.StatusSubject
	}

	if d, ok := parseDate(get(models.FieldSaleDate)); ok {
		rec.SaleDate = &d
		if d.After(cfg.DateOfValue) {
			rec.Flags = append(rec.Flags, models.FlagFutureDate)
			issues.add(models.FlagFutureDate, rowNum)
		}
	} else {
		rec.Flags = append(rec.Flags, models.FlagDateUnparseable)
		issues.add(models.FlagDateUnparseable, rowNum)
	}

	if p, ok := parsePositive(get(models.FieldSalePrice)); ok {
		rec.SalePrice = &p
	} else {
		rec.Flags = append(rec.Flags, models.FlagPriceUnparseable)
		issues.add(models.FlagPriceUnparseable, rowNum)
	}

	if a, ok := parsePositive(get(models.FieldLivingArea)); ok {
		rec.LivingArea = &a
	} else {
		rec.Flags = append(rec.Flags, models.FlagAreaUnparseable)
		issues.add(models.FlagAreaUnparseable, rowNum)
	}

	if rec.SalePrice != nil && rec.LivingArea != nil {
		ppa := *rec.SalePrice / *rec.LivingArea
		rec.PricePerArea = &ppa
	}

	switch rec.Status {
	case models.StatusClosed:
	case models.StatusSubject:
		rec.Flags = append(rec.Flags, models.FlagSubject)
		issues.add(models.FlagSubject, rowNum)
	default:
		rec.Flags = append(rec.Flags, models.FlagNotClosed)
		issues.add(models.FlagNotClosed, rowNum)
	}

	if geo && !rec.HasLocation() {
		rec.Flags = append(rec.Flags, models.FlagMissingGeo)
		issues.add(models.FlagMissingGeo, rowNum)
	}
	return rec
}

// flagPriceOutliers marks closed sales whose price falls outside the IQR fences.
func flagPriceOutliers(records []models.SaleRecord, k float64, exclude bool, issues *issueLog) {
	var prices []float64
	for _, r := range records {
		if r.SalePrice != nil && r.Status == models.StatusClosed {
			prices = append(prices, *r.SalePrice)
		}
	}
	if len(prices) < minOutlierSample {
		issues.note(models.FlagPriceOutlier, models.SeverityInfo,
			fmt.Sprintf("price outlier check skipped: %d closed prices, need %d", len(prices), minOutlierSample))
		return
	}

	lo, hi := stats.IQRBounds(prices, k)
	for i := range records {
		r := &records[i]
		if r.SalePrice == nil || r.Status != models.StatusClosed {
			continue
		}
		if *r.SalePrice < lo || *r.SalePrice > hi {
			r.PriceOutlier = true
			r.Flags = append(r.Flags, models.FlagPriceOutlier)
			issues.add(models.FlagPriceOutlier, r.Row)
		}
	}
	issues.note(models.FlagPriceOutlier, models.SeverityWarning,
		fmt.Sprintf("sale price outside %.0f to %.0f%s", lo, hi, outlierSuffix(exclude)))
}

func flagAreaOutliers(records []models.SaleRecord, t models.Thresholds, exclude bool, issues *issueLog) {
	for i := range records {
		r := &records[i]
		if r.LivingArea == nil {
			continue
		}
		if *r.LivingArea < t.MinLivingArea || *r.LivingArea > t.MaxLivingArea {
			r.SFOutlier = true
			r.Flags = append(r.Flags, models.FlagSFOutlier)
			issues.add(models.FlagSFOutlier, r.Row)
		}
	}
	issues.note(models.FlagSFOutlier, models.SeverityWarning,
		fmt.Sprintf("living area outside %.0f to %.0f%s", t.MinLivingArea, t.MaxLivingArea, outlierSuffix(exclude)))
}

func outlierSuffix(exclude bool) string {
	if exclude {
		return "; excluded"
	}
	return "; retained"
}

// subjectRow reports whether any cell marks the row as the subject property,
// as MLS exports do in the status or listing id column.
func subjectRow(row []string) bool {
	for _, v := range row {
		if strings.EqualFold(strings.TrimSpace(v), "subject") {
			return true
		}
	}
	return false
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// issueLog aggregates affected rows per flag so that a thousand bad rows
// produce one message, not a thousand.
type issueLog struct {
	rows  map[models.RecordFlag][]int
	notes map[models.RecordFlag]models.Message
}

func newIssueLog() *issueLog {
	return &issueLog{
		rows:  make(map[models.RecordFlag][]int),
		notes: make(map[models.RecordFlag]models.Message),
	}
}

func (l *issueLog) add(flag models.RecordFlag, row int) {
	l.rows[flag] = append(l.rows[flag], row)
}

func (l *issueLog) note(flag models.RecordFlag, sev models.Severity, text string) {
	l.notes[flag] = models.Message{Severity: sev, Text: text}
}

var flagMessages = map[models.RecordFlag]models.Message{
	models.FlagDateUnparseable:  {Severity: models.SeverityWarning, Text: "sale date could not be parsed; record excluded"},
	models.FlagFutureDate:       {Severity: models.SeverityWarning, Text: "sale date is after the date of value; record excluded"},
	models.FlagPriceUnparseable: {Severity: models.SeverityWarning, Text: "sale price missing, unparseable or not positive; record excluded"},
	models.FlagAreaUnparseable:  {Severity: models.SeverityWarning, Text: "living area missing, unparseable or not positive; record excluded"},
	models.FlagNotClosed:        {Severity: models.SeverityInfo, Text: "status is not closed; excluded from trend and adjustments"},
	models.FlagMissingGeo:       {Severity: models.SeverityWarning, Text: "latitude or longitude missing"},
	models.FlagSubject:          {Severity: models.SeverityInfo, Text: "row is the subject property; excluded from comparables"},
	models.FlagBlankRow:         {Severity: models.SeverityInfo, Text: "blank row skipped"},
}

func (l *issueLog) messages() []models.Message {
	flags := make([]string, 0, len(l.rows)+len(l.notes))
	seen := make(map[models.RecordFlag]bool)
	for f := range l.rows {
		flags = append(flags, string(f))
		seen[f] = true
	}
	for f := range l.notes {
		if !seen[f] {
			flags = append(flags, string(f))
		}
	}
	sort.Strings(flags)

	var out []models.Message
	for _, name := range flags {
		flag := models.RecordFlag(name)
		rows := l.rows[flag]
		msg, noted := l.notes[flag]
		if !noted {
			msg = flagMessages[flag]
		}
		// a note on a flag with no hits only matters when it is informational
		if len(rows) == 0 && msg.Severity != models.SeverityInfo {
			continue
		}
		msg.Component = component
		msg.Code = name
		msg.Count = len(rows)
		msg.Rows = rows
		out = append(out, msg)
	}
	return out
}
