package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"optiondesk/internal/models"

	"go.uber.org/zap"
)

// Scheduler fires the automatic close of each open trade at its expiry.
// A timer losing the race against a manual close observes
// ErrTradeNotFound and does nothing further.
type Scheduler struct {
	engine *Engine
	quotes QuoteSource
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newScheduler(e *Engine, quotes QuoteSource, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		engine: e,
		quotes: quotes,
		logger: logger.Named("scheduler"),
		timers: make(map[string]*time.Timer),
	}
}

// start sweeps the trade store for open trades: those already past
// expiry settle immediately, the rest get their timers re-armed. This
// covers trades whose timers were lost to a process restart.
func (s *Scheduler) start(ctx context.Context) error {
	var open []models.Trade
	if err := s.engine.db.Where("status = ?", models.TradeStatusOpen).Find(&open).Error; err != nil {
		return err
	}

	now := time.Now()
	rearmed, settled := 0, 0
	for i := range open {
		t := open[i]
		if t.ExpiresAt.After(now) {
			s.schedule(&t)
			rearmed++
		} else {
			go s.fire(t.UserID, t.ID, t.Pair, t.OpenPrice)
			settled++
		}
	}
	if rearmed > 0 || settled > 0 {
		s.logger.Info("Recovered open trades",
			zap.Int("rearmed", rearmed),
			zap.Int("expired", settled))
	}

	go func() {
		<-ctx.Done()
		s.stop()
	}()
	return nil
}

// schedule arms the expiry timer for a freshly opened trade.
func (s *Scheduler) schedule(t *models.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	userID, tradeID, pair, openPrice := t.UserID, t.ID, t.Pair, t.OpenPrice
	delay := time.Until(t.ExpiresAt)
	if delay < 0 {
		delay = 0
	}
	s.timers[tradeID] = time.AfterFunc(delay, func() {
		s.fire(userID, tradeID, pair, openPrice)
	})
}

// cancel drops the timer for a trade that was settled manually. Firing
// anyway would be harmless; this just frees the timer early.
func (s *Scheduler) cancel(tradeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[tradeID]; ok {
		timer.Stop()
		delete(s.timers, tradeID)
	}
}

// stop cancels every outstanding timer.
func (s *Scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) fire(userID, tradeID, pair string, openPrice float64) {
	price, err := s.quotes.LatestPrice(pair)
	if err != nil {
		s.logger.Warn("No quote for expiring trade, falling back to open price",
			zap.String("pair", pair),
			zap.Error(err))
		price = openPrice
	}

	// Cosmetic jitter on the exit price; the outcome was fixed at open.
	price *= 1 + (rand.Float64()-0.5)*0.01

	if _, err := s.engine.CloseTrade(userID, tradeID, price); err != nil {
		if errors.Is(err, ErrTradeNotFound) {
			s.logger.Debug("Trade already settled before expiry",
				zap.String("trade_id", tradeID))
		} else {
			s.logger.Error("Auto-close failed",
				zap.String("trade_id", tradeID),
				zap.Error(err))
		}
	}

	s.mu.Lock()
	delete(s.timers, tradeID)
	s.mu.Unlock()
}
