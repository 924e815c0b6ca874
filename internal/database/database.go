package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"markettrend/server/internal/models"
)

const insertBatchSize = 200

// Sale is one stored sale or listing.
type Sale struct {
	ID           uint   `gorm:"primaryKey"`
	City         string `gorm:"index"`
	Address      string
	PropertyType string
	Status       string     `gorm:"index"`
	SaleDate     *time.Time `gorm:"index"`
	SalePrice    *float64
	LivingArea   *float64
	YearBuilt    *int
	Beds         *int
	Baths        *float64
	DaysOnMarket *int
	LotSize      *float64
	GarageSpaces *int
	Latitude     *float64
	Longitude    *float64
	CreatedAt    time.Time
}

func (Sale) TableName() string {
	return "sales"
}

// SaleFilter selects stored sales. Zero values do not filter. Sales without a
// date, such as active listings, always pass the date bounds.
type SaleFilter struct {
	City string
	From time.Time
	To   time.Time
}

type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Database{db: db, logger: logger}, nil
}

// Migrate creates or updates the schema.
func (d *Database) Migrate() error {
	if err := d.db.AutoMigrate(&Sale{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// InsertSales stores sales in one transaction.
func (d *Database) InsertSales(ctx context.Context, sales []Sale) error {
	if len(sales) == 0 {
		return nil
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&sales, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert sales: %w", err)
	}
	d.logger.WithField("count", len(sales)).Info("Inserted sales")
	return nil
}

// SaveRecords stores cleaned records under city. Records without a usable
// price, area and date are skipped unless they are listings.
func (d *Database) SaveRecords(ctx context.Context, city string, records []models.SaleRecord) (int, error) {
	sales := make([]Sale, 0, len(records))
	for _, r := range records {
		if r.Status == models.StatusClosed && (r.SaleDate == nil || r.SalePrice == nil || r.LivingArea == nil) {
			continue
		}
		sales = append(sales, SaleFromRecord(city, r))
	}
	if err := d.InsertSales(ctx, sales); err != nil {
		return 0, err
	}
	return len(sales), nil
}

func (d *Database) LoadSales(ctx context.Context, f SaleFilter) ([]Sale, error) {
	q := d.db.WithContext(ctx).Model(&Sale{})
	if f.City != "" {
		q = q.Where("LOWER(city) = LOWER(?)", f.City)
	}
	if !f.From.IsZero() {
		q = q.Where("(sale_date IS NULL OR sale_date >= ?)", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("(sale_date IS NULL OR sale_date <= ?)", f.To.UTC())
	}

	var sales []Sale
	if err := q.Order("sale_date ASC").Order("id ASC").Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	return sales, nil
}

// Cities lists the distinct cities in the store.
func (d *Database) Cities(ctx context.Context) ([]string, error) {
	var cities []string
	err := d.db.WithContext(ctx).Model(&Sale{}).
		Where("city <> ''").
		Distinct().
		Order("city").
		Pluck("city", &cities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	return cities, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
