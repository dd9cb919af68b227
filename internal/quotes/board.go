package quotes

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"optiondesk/internal/config"

	"go.uber.org/zap"
)

// ErrUnknownSymbol means the board tracks no such instrument.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Candle is one bar of simulated OHLC price history.
type Candle struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Board simulates a live quote feed: each enabled instrument follows an
// independent random walk around its base price, with a bounded candle
// history kept per symbol. Prices here are display material only; trade
// settlement never reads them for outcomes.
type Board struct {
	logger      *zap.Logger
	tick        time.Duration
	volatility  float64
	candleDepth int

	mu      sync.RWMutex
	prices  map[string]float64
	candles map[string][]Candle
}

// NewBoard creates a quote board tracking the given instruments at their
// configured base prices.
func NewBoard(cfg *config.Quotes, instruments []config.Instrument, logger *zap.Logger) *Board {
	b := &Board{
		logger:      logger.Named("quotes"),
		tick:        cfg.TickInterval(),
		volatility:  cfg.Volatility,
		candleDepth: cfg.CandleDepth,
		prices:      make(map[string]float64),
		candles:     make(map[string][]Candle),
	}
	for _, ins := range instruments {
		b.prices[ins.Symbol] = ins.BasePrice
	}
	return b
}

// Seed replaces starting prices for symbols present in rates, typically
// fetched once from an external FX endpoint. Unknown symbols are ignored.
func (b *Board) Seed(rates map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for symbol, price := range rates {
		if _, ok := b.prices[symbol]; ok && price > 0 {
			b.prices[symbol] = price
		}
	}
}

// Run advances the random walk until the context is cancelled.
func (b *Board) Run(ctx context.Context) {
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	b.logger.Info("Starting quote simulation", zap.Duration("tick", b.tick))
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping quote simulation")
			return
		case <-ticker.C:
			b.step()
		}
	}
}

// step moves every price by a random fraction of the configured
// volatility and appends the resulting candle.
func (b *Board) step() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for symbol, price := range b.prices {
		change := (rand.Float64() - 0.5) * b.volatility * price
		open := price
		close := open + change

		high := max(open, close) + rand.Float64()*b.volatility*price*0.5
		low := min(open, close) - rand.Float64()*b.volatility*price*0.5

		b.prices[symbol] = close
		history := append(b.candles[symbol], Candle{
			Time:  now,
			Open:  open,
			High:  high,
			Low:   low,
			Close: close,
		})
		if len(history) > b.candleDepth {
			history = history[len(history)-b.candleDepth:]
		}
		b.candles[symbol] = history
	}
}

// LatestPrice returns the most recent simulated price for a symbol.
func (b *Board) LatestPrice(symbol string) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	price, ok := b.prices[symbol]
	if !ok {
		return 0, ErrUnknownSymbol
	}
	return price, nil
}

// Candles returns up to n most recent candles for a symbol.
func (b *Board) Candles(symbol string, n int) ([]Candle, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	history, ok := b.candles[symbol]
	if !ok {
		if _, tracked := b.prices[symbol]; !tracked {
			return nil, ErrUnknownSymbol
		}
		return []Candle{}, nil
	}
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]Candle, len(history))
	copy(out, history)
	return out, nil
}
