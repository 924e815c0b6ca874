package models

// Canonical field names that input headers are resolved to.
const (
	FieldSaleDate     = "sale_date"
	FieldSalePrice    = "sale_price"
	FieldAddress      = "address"
	FieldLivingArea   = "living_area"
	FieldPropertyType = "property_type"
	FieldYearBuilt    = "year_built"
	FieldBeds         = "beds"
	FieldBaths        = "baths"
	FieldDaysOnMarket = "days_on_market"
	FieldLotSize      = "lot_size"
	FieldGarageSpaces = "garage_spaces"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldStatus       = "status"
)

// RequiredFields must all be present as columns for a table to be usable.
// Only the columns are required; blank optional values in a row are fine.
var RequiredFields = []string{
	FieldSaleDate, FieldSalePrice, FieldAddress, FieldLivingArea,
	FieldPropertyType, FieldYearBuilt, FieldBeds, FieldBaths,
}

// CanonicalFields lists every field in the order used when tables are rendered.
var CanonicalFields = []string{
	FieldAddress, FieldSaleDate, FieldSalePrice, FieldLivingArea, FieldPropertyType,
	FieldYearBuilt, FieldBeds, FieldBaths, FieldDaysOnMarket, FieldLotSize,
	FieldGarageSpaces, FieldLatitude, FieldLongitude, FieldStatus,
}

// RawTable is an untyped table of sales as it arrives from a file, request or store.
type RawTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type SaleStatus string

const (
	StatusClosed  SaleStatus = "closed"
	StatusActive  SaleStatus = "active"
	StatusPending SaleStatus = "pending"
	StatusOther   SaleStatus = "other"
	// StatusSubject marks the property being valued when it is listed among the sales.
	StatusSubject SaleStatus = "subject"
)

// RecordFlag marks a problem found while cleaning a row.
type RecordFlag string

const (
	FlagDateUnparseable  RecordFlag = "date_unparseable"
	FlagFutureDate       RecordFlag = "future_date"
	FlagPriceUnparseable RecordFlag = "price_unparseable"
	FlagAreaUnparseable  RecordFlag = "area_unparseable"
	FlagPriceOutlier     RecordFlag = "price_outlier"
	FlagSFOutlier        RecordFlag = "sf_outlier"
	FlagNotClosed        RecordFlag = "not_closed"
	FlagMissingGeo       RecordFlag = "missing_geolocation"
	FlagSubject          RecordFlag = "subject_row"

	// FlagBlankRow is only reported; blank rows produce no record.
	FlagBlankRow RecordFlag = "blank_row"
)

// SaleRecord is one cleaned row. Row is the 1-based data row number in the input.
type SaleRecord struct {
	Row          int        `json:"row"`
	Address      string     `json:"address"`
	PropertyType string     `json:"property_type,omitempty"`
	SaleDate     *Date      `json:"sale_date"`
	SalePrice    *float64   `json:"sale_price"`
	LivingArea   *float64   `json:"living_area"`
	PricePerArea *float64   `json:"price_per_area"`
	YearBuilt    *int       `json:"year_built,omitempty"`
	Beds         *int       `json:"beds,omitempty"`
	Baths        *float64   `json:"baths,omitempty"`
	DaysOnMarket *int       `json:"days_on_market,omitempty"`
	LotSize      *float64   `json:"lot_size,omitempty"`
	GarageSpaces *int       `json:"garage_spaces,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Status       SaleStatus `json:"status"`

	PriceOutlier bool         `json:"price_outlier"`
	SFOutlier    bool         `json:"sf_outlier"`
	Excluded     bool         `json:"excluded"`
	Flags        []RecordFlag `json:"flags,omitempty"`
}

// Valid reports whether the record takes part in trend and adjustment math.
func (r SaleRecord) Valid() bool {
	return !r.Excluded && r.SaleDate != nil && r.SalePrice != nil && r.LivingArea != nil
}

func (r SaleRecord) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

func (r SaleRecord) HasFlag(flag RecordFlag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Price returns the sale price, or zero when it could not be parsed.
func (r SaleRecord) Price() float64 {
	if r.SalePrice == nil {
		return 0
	}
	return *r.SalePrice
}

func (r SaleRecord) Area() float64 {
	if r.LivingArea == nil {
		return 0
	}
	return *r.LivingArea
}

func (r SaleRecord) PPA() float64 {
	if r.PricePerArea == nil {
		return 0
	}
	return *r.PricePerArea
}
