package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"

	"markettrend/server/internal/models"
)

var headerSeparators = regexp.MustCompile(`[\s_\-/]+`)

// NormalizeHeader lowercases a column header and collapses separators to a
// single space, so "Sale_Price", "sale-price" and " Sale  Price " compare equal.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Trim(h, "\ufeff\"'")
	h = strings.NewReplacer("#", " ", ".", " ", "(", " ", ")", " ").Replace(h)
	return strings.TrimSpace(headerSeparators.ReplaceAllString(h, " "))
}

var defaultAliases = map[string][]string{
	models.FieldSaleDate:     {"sale date", "sold date", "close date", "closing date", "closed date", "date sold", "selling date", "settlement date", "coe"},
	models.FieldSalePrice:    {"sale price", "sold price", "close price", "closing price", "price", "sales price", "selling price"},
	models.FieldAddress:      {"address", "street address", "property address", "full address", "street"},
	models.FieldLivingArea:   {"living area", "gla", "sqft", "sq ft", "square feet", "living sqft", "living sq ft", "above grade finished area", "building area", "floor area", "size"},
	models.FieldPropertyType: {"property type", "type", "prop type", "style"},
	models.FieldYearBuilt:    {"year built", "yr built", "built", "yb"},
	models.FieldBeds:         {"beds", "bedrooms", "br", "bed", "bedrooms total"},
	models.FieldBaths:        {"baths", "bathrooms", "ba", "bath", "bathrooms total"},
	models.FieldDaysOnMarket: {"days on market", "dom", "cdom", "cumulative dom", "market days"},
	models.FieldLotSize:      {"lot size", "lot sqft", "lot sq ft", "lot area", "lot size square feet"},
	models.FieldGarageSpaces: {"garage spaces", "garage", "garage stalls", "parking spaces"},
	models.FieldLatitude:     {"latitude", "lat"},
	models.FieldLongitude:    {"longitude", "lon", "lng", "long"},
	models.FieldStatus:       {"status", "listing status", "mls status", "standard status"},
}

// AliasTable maps normalized column headers onto canonical sale fields. It is
// built once at startup and read concurrently afterwards.
type AliasTable struct {
	aliases map[string]string
}

func DefaultAliases() *AliasTable {
	t := &AliasTable{aliases: make(map[string]string)}
	for field, names := range defaultAliases {
		t.add(field, names)
	}
	return t
}

// LoadAliases returns the default table extended with the aliases in path.
// The file maps canonical field names to lists of header spellings:
//
//	sale_price: ["Contract Price", "Net Price"]
//
// An empty path returns the defaults.
func LoadAliases(path string) (*AliasTable, error) {
	t := DefaultAliases()
	if path == "" {
		return t, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %v", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %v", err)
	}

	var extra map[string][]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse alias file: %v", err)
	}
	for field, names := range extra {
		if !isCanonical(field) {
			return nil, fmt.Errorf("alias file: unknown field %q", field)
		}
		t.add(field, names)
	}
	return t, nil
}

// Resolve returns the canonical field for a raw header.
func (t *AliasTable) Resolve(header string) (string, bool) {
	n := NormalizeHeader(header)
	if f, ok := t.aliases[n]; ok {
		return f, true
	}
	// canonical names themselves always resolve
	if isCanonical(strings.ReplaceAll(n, " ", "_")) {
		return strings.ReplaceAll(n, " ", "_"), true
	}
	return "", false
}

func (t *AliasTable) add(field string, names []string) {
	for _, name := range names {
		t.aliases[NormalizeHeader(name)] = field
	}
}

func isCanonical(field string) bool {
	for _, f := range models.CanonicalFields {
		if f == field {
			return true
		}
	}
	return false
}
