package api

import (
	"net/http"
	"time"

	"optiondesk/internal/models"

	"github.com/gin-gonic/gin"
)

type adminUserRow struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Balance       float64   `json:"balance"`
	TotalDeposits float64   `json:"total_deposits"`
	TradesOpened  int64     `json:"trades_opened"`
	TotalTrades   int64     `json:"total_trades"`
	WinRate       float64   `json:"win_rate"`
	TotalProfit   float64   `json:"total_profit"`
	CreatedAt     time.Time `json:"created_at"`
}

// handleAdminUsers lists every user with balance and settled-trade
// aggregates.
func (s *Server) handleAdminUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.Order("created_at asc").Find(&users).Error; err != nil {
		s.internalError(c, err)
		return
	}

	out := make([]adminUserRow, 0, len(users))
	for _, u := range users {
		row := adminUserRow{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			CreatedAt: u.CreatedAt,
		}

		acct, err := s.ledger.Account(u.ID)
		if err == nil {
			row.Balance = acct.Balance
			row.TotalDeposits = acct.TotalDeposits
			row.TradesOpened = acct.TradesOpened
		}

		stats, err := s.engine.Stats(u.ID)
		if err == nil {
			row.TotalTrades = stats.TotalTrades
			row.WinRate = stats.WinRate
			row.TotalProfit = stats.TotalProfit
		}

		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}
