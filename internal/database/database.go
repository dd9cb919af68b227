package database

import (
	"fmt"

	"optiondesk/internal/config"
	"optiondesk/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates the schema and populates the instrument table from
// the configured pair list. Existing rows are preserved: balances and
// trade history must survive restarts.
func AutoMigrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Trade{},
		&models.Transaction{},
		&models.Instrument{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	for _, ins := range cfg.Instruments {
		row := models.Instrument{
			Symbol:    ins.Symbol,
			Name:      ins.Name,
			BasePrice: ins.BasePrice,
			Enabled:   true,
		}
		if err := db.FirstOrCreate(&row, models.Instrument{Symbol: ins.Symbol}).Error; err != nil {
			return fmt.Errorf("failed to populate instrument '%s': %w", ins.Symbol, err)
		}
	}

	return nil
}
