package models

import "time"

// Transaction types and statuses.
const (
	TransactionDeposit    = "deposit"
	TransactionWithdrawal = "withdrawal"

	TransactionCompleted = "completed"
)

// Transaction records a deposit of virtual funds into, or a withdrawal
// out of, a user's account.
type Transaction struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Type      string    `gorm:"not null" json:"type"`
	Amount    float64   `gorm:"not null" json:"amount"`
	Method    string    `json:"method"`
	Status    string    `gorm:"not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
