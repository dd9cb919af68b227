package models

import "gorm.io/gorm"

// Instrument is a tradable currency pair. BasePrice anchors the quote
// simulator when no external rate seed is available.
type Instrument struct {
	gorm.Model
	Symbol    string  `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string  `json:"name"`
	BasePrice float64 `gorm:"not null" json:"base_price"`
	Enabled   bool    `gorm:"default:true" json:"enabled"`
}
