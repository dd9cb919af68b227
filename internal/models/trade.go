package models

import "time"

// Trade status values. "open" is the only non-terminal state.
const (
	TradeStatusOpen = "open"
	TradeStatusWon  = "won"
	TradeStatusLost = "lost"
)

// Trade directions ("up" is a call/buy prediction, "down" a put/sell).
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Trade is a single timed win/lose prediction with a stake. Prices are
// display-only snapshots; they never influence settlement.
type Trade struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	UserID     string     `gorm:"index;not null" json:"user_id"`
	Pair       string     `gorm:"not null" json:"pair"`
	Direction  string     `gorm:"not null" json:"direction"`
	Amount     float64    `gorm:"not null" json:"amount"`
	OpenPrice  float64    `json:"open_price"`
	ClosePrice float64    `json:"close_price"`
	OpenedAt   time.Time  `json:"opened_at"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	Status     string     `gorm:"index;not null" json:"status"`
	Profit     float64    `json:"profit"`

	// WillWin is fixed by the outcome sequencer when the trade is opened.
	// Settlement reads it back rather than recomputing from the counter,
	// so late or racing closes always agree on the result.
	WillWin bool `json:"-"`
}
