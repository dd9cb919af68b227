package ledger

import (
	"errors"
	"fmt"

	"optiondesk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound means no account row exists for the user.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientFunds means the balance cannot cover the requested
	// debit. It is always distinct from storage failures.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount means a zero or negative amount was requested.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Ledger manages user balances and the deposit/withdrawal history.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a new Ledger.
func New(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger.Named("ledger")}
}

// Account returns the account row for a user.
func (l *Ledger) Account(userID string) (*models.Account, error) {
	var acct models.Account
	if err := l.db.Where("user_id = ?", userID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &acct, nil
}

// Balance returns the user's spendable balance.
func (l *Ledger) Balance(userID string) (float64, error) {
	acct, err := l.Account(userID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Debit removes amount from the user's balance inside tx. The balance
// guard in the UPDATE makes an uncovered debit observable as zero rows
// affected, so ErrInsufficientFunds never masks a storage failure.
func (l *Ledger) Debit(tx *gorm.DB, userID string, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	res := tx.Model(&models.Account{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to debit account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.Account{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check account: %w", err)
		}
		if count == 0 {
			return ErrAccountNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

// Credit adds amount to the user's balance inside tx.
func (l *Ledger) Credit(tx *gorm.DB, userID string, amount float64) error {
	res := tx.Model(&models.Account{}).
		Where("user_id = ?", userID).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to credit account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Deposit credits the account and records a completed deposit transaction.
func (l *Ledger) Deposit(userID string, amount float64, method string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	txn := &models.Transaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   models.TransactionDeposit,
		Amount: amount,
		Method: method,
		Status: models.TransactionCompleted,
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := l.Credit(tx, userID, amount); err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).
			Where("user_id = ?", userID).
			UpdateColumn("total_deposits", gorm.Expr("total_deposits + ?", amount)).Error; err != nil {
			return fmt.Errorf("failed to update deposit total: %w", err)
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Deposit completed",
		zap.String("user_id", userID),
		zap.Float64("amount", amount),
		zap.String("method", method))
	return txn, nil
}

// Withdraw debits the account and records a completed withdrawal
// transaction. Fails with ErrInsufficientFunds when the balance cannot
// cover the amount.
func (l *Ledger) Withdraw(userID string, amount float64, method string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	txn := &models.Transaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   models.TransactionWithdrawal,
		Amount: amount,
		Method: method,
		Status: models.TransactionCompleted,
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := l.Debit(tx, userID, amount); err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).
			Where("user_id = ?", userID).
			UpdateColumn("total_withdrawals", gorm.Expr("total_withdrawals + ?", amount)).Error; err != nil {
			return fmt.Errorf("failed to update withdrawal total: %w", err)
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Withdrawal completed",
		zap.String("user_id", userID),
		zap.Float64("amount", amount),
		zap.String("method", method))
	return txn, nil
}

// Transactions returns the user's deposit/withdrawal history, most
// recent first.
func (l *Ledger) Transactions(userID string) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := l.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return txns, nil
}
