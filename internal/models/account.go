package models

import "gorm.io/gorm"

// Account holds a user's spendable balance together with the lifetime
// count of trades they have opened. TradesOpened feeds the outcome
// sequencer: it is incremented exactly once per opened trade and never
// decremented or reset.
type Account struct {
	gorm.Model
	UserID           string  `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance          float64 `gorm:"not null;default:0" json:"balance"`
	TradesOpened     int64   `gorm:"not null;default:0" json:"trades_opened"`
	TotalDeposits    float64 `gorm:"not null;default:0" json:"total_deposits"`
	TotalWithdrawals float64 `gorm:"not null;default:0" json:"total_withdrawals"`
}
