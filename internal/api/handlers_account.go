package api

import (
	"errors"
	"net/http"

	"optiondesk/internal/auth"
	"optiondesk/internal/ledger"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleAccount(c *gin.Context) {
	acct, err := s.ledger.Account(auth.UserID(c))
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

type fundingRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Method string  `json:"method"`
}

func (s *Server) handleDeposit(c *gin.Context) {
	var req fundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	txn, err := s.ledger.Deposit(auth.UserID(c), req.Amount, req.Method)
	if err != nil {
		s.fundingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (s *Server) handleWithdrawal(c *gin.Context) {
	var req fundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	txn, err := s.ledger.Withdraw(auth.UserID(c), req.Amount, req.Method)
	if err != nil {
		s.fundingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (s *Server) handleTransactions(c *gin.Context) {
	txns, err := s.ledger.Transactions(auth.UserID(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (s *Server) fundingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
	case errors.Is(err, ledger.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
	default:
		s.internalError(c, err)
	}
}
