package api

import (
	"errors"
	"net/http"

	"optiondesk/internal/auth"
	"optiondesk/internal/engine"
	"optiondesk/internal/ledger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type openTradeRequest struct {
	Pair      string  `json:"pair" binding:"required"`
	Direction string  `json:"direction" binding:"required"`
	Amount    float64 `json:"amount" binding:"required"`
	Price     float64 `json:"price"`
}

func (s *Server) handleOpenTrade(c *gin.Context) {
	var req openTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	price := req.Price
	if price == 0 {
		if p, err := s.board.LatestPrice(req.Pair); err == nil {
			price = p
		}
	}

	trade, err := s.engine.OpenTrade(auth.UserID(c), req.Pair, req.Direction, req.Amount, price)
	if err != nil {
		s.tradeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

type closeTradeRequest struct {
	Price float64 `json:"price"`
}

func (s *Server) handleCloseTrade(c *gin.Context) {
	var req closeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	profit, err := s.engine.CloseTrade(auth.UserID(c), c.Param("id"), req.Price)
	if err != nil {
		s.tradeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profit": profit})
}

func (s *Server) handleOpenTrades(c *gin.Context) {
	trades, err := s.engine.OpenTrades(auth.UserID(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) handleTradeHistory(c *gin.Context) {
	trades, err := s.engine.TradeHistory(auth.UserID(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) handleTradeStats(c *gin.Context) {
	stats, err := s.engine.Stats(auth.UserID(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// tradeError maps engine errors onto HTTP statuses without leaking
// internals for unexpected failures.
func (s *Server) tradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidDirection):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
	case errors.Is(err, engine.ErrInstrumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "instrument not found"})
	case errors.Is(err, engine.ErrTradeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trade not found"})
	default:
		s.internalError(c, err)
	}
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
