package ledger

import (
	"testing"

	"optiondesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTest(t *testing.T) (*Ledger, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Account{}, &models.Transaction{}))
	require.NoError(t, db.Create(&models.Account{UserID: "u1", Balance: 500}).Error)

	return New(db, zap.NewNop()), db
}

func TestBalance(t *testing.T) {
	ldg, _ := setupTest(t)

	balance, err := ldg.Balance("u1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, balance)

	_, err = ldg.Balance("nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDebit(t *testing.T) {
	ldg, db := setupTest(t)

	require.NoError(t, ldg.Debit(db, "u1", 200))
	balance, err := ldg.Balance("u1")
	require.NoError(t, err)
	assert.Equal(t, 300.0, balance)
}

func TestDebit_InsufficientFundsIsDistinct(t *testing.T) {
	ldg, db := setupTest(t)

	err := ldg.Debit(db, "u1", 501)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = ldg.Debit(db, "nobody", 10)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	err = ldg.Debit(db, "u1", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Failed debits leave the balance alone.
	balance, err := ldg.Balance("u1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, balance)
}

func TestCredit(t *testing.T) {
	ldg, db := setupTest(t)

	require.NoError(t, ldg.Credit(db, "u1", 150))
	balance, err := ldg.Balance("u1")
	require.NoError(t, err)
	assert.Equal(t, 650.0, balance)

	assert.ErrorIs(t, ldg.Credit(db, "nobody", 10), ErrAccountNotFound)
}

func TestDeposit(t *testing.T) {
	ldg, _ := setupTest(t)

	txn, err := ldg.Deposit("u1", 250, "card")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionDeposit, txn.Type)
	assert.Equal(t, models.TransactionCompleted, txn.Status)
	assert.NotEmpty(t, txn.ID)

	acct, err := ldg.Account("u1")
	require.NoError(t, err)
	assert.Equal(t, 750.0, acct.Balance)
	assert.Equal(t, 250.0, acct.TotalDeposits)
}

func TestWithdraw(t *testing.T) {
	ldg, _ := setupTest(t)

	txn, err := ldg.Withdraw("u1", 100, "bank")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionWithdrawal, txn.Type)

	acct, err := ldg.Account("u1")
	require.NoError(t, err)
	assert.Equal(t, 400.0, acct.Balance)
	assert.Equal(t, 100.0, acct.TotalWithdrawals)
}

func TestWithdraw_Overdraft(t *testing.T) {
	ldg, _ := setupTest(t)

	_, err := ldg.Withdraw("u1", 501, "bank")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Rejected withdrawals record nothing.
	acct, err := ldg.Account("u1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, acct.Balance)
	assert.Equal(t, 0.0, acct.TotalWithdrawals)

	txns, err := ldg.Transactions("u1")
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestTransactions_History(t *testing.T) {
	ldg, _ := setupTest(t)

	_, err := ldg.Deposit("u1", 100, "card")
	require.NoError(t, err)
	_, err = ldg.Withdraw("u1", 50, "bank")
	require.NoError(t, err)

	txns, err := ldg.Transactions("u1")
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}
