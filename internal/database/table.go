package database

import (
	"strconv"
	"time"

	"markettrend/server/internal/models"
)

// SaleFromRecord converts a cleaned record for storage.
func SaleFromRecord(city string, r models.SaleRecord) Sale {
	s := Sale{
		City:         city,
		Address:      r.Address,
		PropertyType: r.PropertyType,
		Status:       string(r.Status),
		SalePrice:    r.SalePrice,
		LivingArea:   r.LivingArea,
		YearBuilt:    r.YearBuilt,
		Beds:         r.Beds,
		Baths:        r.Baths,
		DaysOnMarket: r.DaysOnMarket,
		LotSize:      r.LotSize,
		GarageSpaces: r.GarageSpaces,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
	}
	if r.SaleDate != nil {
		t := r.SaleDate.Time
		s.SaleDate = &t
	}
	return s
}

// ToRawTable renders stored sales as a table with canonical headers, so they
// run through the same cleaning as uploaded files.
func ToRawTable(sales []Sale) models.RawTable {
	headers := make([]string, len(models.CanonicalFields))
	copy(headers, models.CanonicalFields)

	table := models.RawTable{Headers: headers, Rows: make([][]string, 0, len(sales))}
	for _, s := range sales {
		values := map[string]string{
			models.FieldAddress:      s.Address,
			models.FieldSaleDate:     formatDate(s.SaleDate),
			models.FieldSalePrice:    formatFloat(s.SalePrice),
			models.FieldLivingArea:   formatFloat(s.LivingArea),
			models.FieldPropertyType: s.PropertyType,
			models.FieldYearBuilt:    formatInt(s.YearBuilt),
			models.FieldBeds:         formatInt(s.Beds),
			models.FieldBaths:        formatFloat(s.Baths),
			models.FieldDaysOnMarket: formatInt(s.DaysOnMarket),
			models.FieldLotSize:      formatFloat(s.LotSize),
			models.FieldGarageSpaces: formatInt(s.GarageSpaces),
			models.FieldLatitude:     formatFloat(s.Latitude),
			models.FieldLongitude:    formatFloat(s.Longitude),
			models.FieldStatus:       s.Status,
		}
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = values[h]
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(models.DateLayout)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
