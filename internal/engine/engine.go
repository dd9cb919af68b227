package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"optiondesk/internal/config"
	"optiondesk/internal/ledger"
	"optiondesk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuoteSource supplies the latest known price for an instrument. The
// auto-close scheduler uses it to stamp exit prices; settlement outcomes
// never depend on the value.
type QuoteSource interface {
	LatestPrice(symbol string) (float64, error)
}

// Engine settles trades: it opens them against the ledger, fixes their
// outcome up front via the sequencer, and resolves them to won or lost
// either on manual close or when the expiry timer fires.
type Engine struct {
	logger    *zap.Logger
	cfg       *config.Config
	db        *gorm.DB
	ledger    *ledger.Ledger
	scheduler *Scheduler

	// payout draws the fraction of the stake paid on a winning trade.
	// Injected so tests can pin it; the default draws uniformly from the
	// configured [min, max) band.
	payout func() float64

	// userLocks serializes the read-then-write sequences of open and
	// close per user. Cross-user operations never contend.
	userLocks sync.Map
}

// NewEngine creates a new settlement engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, db *gorm.DB, ldg *ledger.Ledger, quotes QuoteSource) *Engine {
	e := &Engine{
		logger: logger.Named("engine"),
		cfg:    cfg,
		db:     db,
		ledger: ldg,
	}
	min, max := cfg.Trading.PayoutMin, cfg.Trading.PayoutMax
	e.payout = func() float64 {
		return min + rand.Float64()*(max-min)
	}
	e.scheduler = newScheduler(e, quotes, logger)
	return e
}

// SetPayoutFunc overrides the payout fraction draw. Intended for tests.
func (e *Engine) SetPayoutFunc(f func() float64) {
	e.payout = f
}

// Start arms expiry timers for trades that survived a restart and
// settles any that expired while the process was down.
func (e *Engine) Start(ctx context.Context) error {
	return e.scheduler.start(ctx)
}

// Stop cancels all outstanding expiry timers.
func (e *Engine) Stop() {
	e.scheduler.stop()
}

func (e *Engine) lockFor(userID string) *sync.Mutex {
	mu, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// OpenTrade stakes amount on a timed up/down prediction. It debits the
// ledger, fixes the predetermined outcome from the user's lifetime
// opened-trade count, persists the trade and schedules its auto-close.
func (e *Engine) OpenTrade(userID, pair, direction string, amount, price float64) (*models.Trade, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if direction != models.DirectionUp && direction != models.DirectionDown {
		return nil, ErrInvalidDirection
	}

	var instrument models.Instrument
	if err := e.db.Where("symbol = ? AND enabled = ?", pair, true).First(&instrument).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstrumentNotFound
		}
		return nil, fmt.Errorf("failed to resolve instrument: %w", err)
	}

	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var trade *models.Trade
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var acct models.Account
		if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrAccountNotFound
			}
			return fmt.Errorf("failed to load account: %w", err)
		}

		if err := e.ledger.Debit(tx, userID, amount); err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return ErrInsufficientBalance
			}
			return err
		}

		// The counter increments once per open, never per close.
		if err := tx.Model(&models.Account{}).
			Where("user_id = ?", userID).
			UpdateColumn("trades_opened", gorm.Expr("trades_opened + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to advance trade counter: %w", err)
		}

		now := time.Now()
		trade = &models.Trade{
			ID:         uuid.NewString(),
			UserID:     userID,
			Pair:       pair,
			Direction:  direction,
			Amount:     amount,
			OpenPrice:  price,
			ClosePrice: price,
			OpenedAt:   now,
			ExpiresAt:  now.Add(e.cfg.Trading.Expiry()),
			Status:     models.TradeStatusOpen,
			WillWin:    WinsAt(acct.TradesOpened),
		}
		return tx.Create(trade).Error
	})
	if err != nil {
		return nil, err
	}

	e.scheduler.schedule(trade)

	e.logger.Info("Trade opened",
		zap.String("trade_id", trade.ID),
		zap.String("user_id", userID),
		zap.String("pair", pair),
		zap.String("direction", direction),
		zap.Float64("amount", amount),
		zap.Time("expires_at", trade.ExpiresAt))
	return trade, nil
}

// CloseTrade settles an open trade at exitPrice. Winners receive
// amount times the drawn payout fraction; losers forfeit the stake. The
// ledger is credited stake plus profit in the same transaction that
// flips the status, so duplicate or racing closes converge on a single
// resolution: the loser of the race observes ErrTradeNotFound.
func (e *Engine) CloseTrade(userID, tradeID string, exitPrice float64) (float64, error) {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var profit float64
	var status string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var trade models.Trade
		if err := tx.Where("id = ? AND user_id = ? AND status = ?",
			tradeID, userID, models.TradeStatusOpen).First(&trade).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTradeNotFound
			}
			return fmt.Errorf("failed to load trade: %w", err)
		}

		if trade.WillWin {
			profit = trade.Amount * e.payout()
			status = models.TradeStatusWon
		} else {
			profit = -trade.Amount
			status = models.TradeStatusLost
		}

		now := time.Now()
		res := tx.Model(&models.Trade{}).
			Where("id = ? AND status = ?", tradeID, models.TradeStatusOpen).
			Updates(map[string]interface{}{
				"status":      status,
				"profit":      profit,
				"close_price": exitPrice,
				"closed_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update trade: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Someone else settled between the read and the write.
			return ErrTradeNotFound
		}

		if err := e.ledger.Credit(tx, userID, trade.Amount+profit); err != nil {
			return fmt.Errorf("%w: trade %s marked %s but ledger credit failed: %v",
				ErrSettlementInconsistent, tradeID, status, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSettlementInconsistent) {
			e.logger.Error("Settlement rolled back after partial write",
				zap.String("trade_id", tradeID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return 0, err
	}

	e.scheduler.cancel(tradeID)

	e.logger.Info("Trade settled",
		zap.String("trade_id", tradeID),
		zap.String("user_id", userID),
		zap.String("status", status),
		zap.Float64("profit", profit))
	return profit, nil
}

// OpenTrades returns the user's unresolved trades, oldest first.
func (e *Engine) OpenTrades(userID string) ([]models.Trade, error) {
	var trades []models.Trade
	if err := e.db.Where("user_id = ? AND status = ?", userID, models.TradeStatusOpen).
		Order("opened_at asc").
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load open trades: %w", err)
	}
	return trades, nil
}

// TradeHistory returns the user's settled trades, most recent first.
func (e *Engine) TradeHistory(userID string) ([]models.Trade, error) {
	var trades []models.Trade
	if err := e.db.Where("user_id = ? AND status <> ?", userID, models.TradeStatusOpen).
		Order("closed_at desc").
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trade history: %w", err)
	}
	return trades, nil
}

// Stats summarizes a user's settled trades.
type Stats struct {
	TotalTrades   int64   `json:"total_trades"`
	WinningTrades int64   `json:"winning_trades"`
	LosingTrades  int64   `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalProfit   float64 `json:"total_profit"`
}

// Stats computes win/loss totals over the user's settled trades.
func (e *Engine) Stats(userID string) (*Stats, error) {
	trades, err := e.TradeHistory(userID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, t := range trades {
		stats.TotalTrades++
		if t.Status == models.TradeStatusWon {
			stats.WinningTrades++
		} else {
			stats.LosingTrades++
		}
		stats.TotalProfit += t.Profit
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}
	return stats, nil
}
