package cleaner

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"markettrend/server/internal/models"
)

var (
	currencyPrefix = regexp.MustCompile(`(?i)^(-?)\s*(usd|eur|gbp|[$€£¥])\s*`)
	currencySuffix = regexp.MustCompile(`(?i)\s*(usd|eur|gbp|[€£])$`)
	unitSuffix     = regexp.MustCompile(`(?i)\s*(sq\.?\s*ft\.?|sqft|sf|ft2|ft²|sq\.?\s*m|m2|m²)$`)
	plainNumber    = regexp.MustCompile(`^-?(\d{1,3}(,\d{3})+|\d+)?(\.\d+)?$`)
	dotGrouped     = regexp.MustCompile(`^\d{1,3}\.\d{3}$`)
	excelSerial    = regexp.MustCompile(`^\d{5}(\.\d+)?$`)
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"1/2/06",
	"01-02-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseNumber accepts a plain decimal with optional currency marker, comma
// thousands separators and area unit suffix. Anything else (decimal commas,
// exponents, stray text) does not parse rather than being coerced.
func parseNumber(raw string) (float64, bool) {
	s := numericText(raw)
	if !plainNumber.MatchString(s) || !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// numericText drops the currency marker and unit suffix around a number.
func numericText(raw string) string {
	s := strings.TrimSpace(raw)
	s = currencyPrefix.ReplaceAllString(s, "$1")
	s = currencySuffix.ReplaceAllString(s, "")
	return unitSuffix.ReplaceAllString(s, "")
}

// parsePositive accepts only values greater than zero. A price or area like
// "350.000" uses the dot as a thousands separator in much of Europe, so it is
// rejected as ambiguous.
func parsePositive(raw string) (float64, bool) {
	if dotGrouped.MatchString(numericText(raw)) {
		return 0, false
	}
	f, ok := parseNumber(raw)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}

func parseCount(raw string) *int {
	f, ok := parseNumber(raw)
	if !ok || f < 0 {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func parseFloatPtr(raw string) *float64 {
	f, ok := parseNumber(raw)
	if !ok || f < 0 {
		return nil
	}
	return &f
}

func parseCoordinate(raw string, limit float64) *float64 {
	f, ok := parseNumber(raw)
	if !ok || f < -limit || f > limit {
		return nil
	}
	return &f
}

func parseDate(raw string) (models.Date, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return models.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), true
		}
	}
	// spreadsheet exports sometimes carry the raw serial day number
	if excelSerial.MatchString(s) {
		f, ok := parseNumber(s)
		if ok {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return models.DateOf(t), true
			}
		}
	}
	return models.Date{}, false
}

func normaliseStatus(raw string) models.SaleStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "closed", "sold", "s", "c", "cls", "close", "closed sale":
		return models.StatusClosed
	case "active", "a", "act", "new", "coming soon", "for sale":
		return models.StatusActive
	case "pending", "p", "pnd", "under contract", "uc", "contingent", "active under contract":
		return models.StatusPending
	case "subject":
		return models.StatusSubject
	default:
		return models.StatusOther
	}
}
