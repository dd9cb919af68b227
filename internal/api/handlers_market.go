package api

import (
	"errors"
	"net/http"
	"strconv"

	"optiondesk/internal/models"
	"optiondesk/internal/quotes"

	"github.com/gin-gonic/gin"
)

type instrumentResponse struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	BasePrice float64 `json:"base_price"`
}

func (s *Server) handleInstruments(c *gin.Context) {
	var instruments []models.Instrument
	if err := s.db.Where("enabled = ?", true).Order("symbol asc").Find(&instruments).Error; err != nil {
		s.internalError(c, err)
		return
	}

	out := make([]instrumentResponse, 0, len(instruments))
	for _, ins := range instruments {
		price, err := s.board.LatestPrice(ins.Symbol)
		if err != nil {
			price = ins.BasePrice
		}
		out = append(out, instrumentResponse{
			Symbol:    ins.Symbol,
			Name:      ins.Name,
			Price:     price,
			BasePrice: ins.BasePrice,
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleCandles serves candle history. The symbol arrives as a query
// parameter because pair symbols contain a slash.
func (s *Server) handleCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	n := 50
	if raw := c.Query("count"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	candles, err := s.board.Candles(symbol, n)
	if err != nil {
		if errors.Is(err, quotes.ErrUnknownSymbol) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instrument not found"})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, candles)
}
