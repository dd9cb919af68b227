package quotes

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"optiondesk/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RatesClient fetches spot FX rates once at startup to seed the quote
// board with realistic starting prices. The platform runs fine without
// it; simulation falls back to the configured base prices.
type RatesClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewRatesClient creates a client for a USD-based rates endpoint.
func NewRatesClient(cfg *config.Quotes, logger *zap.Logger) *RatesClient {
	client := resty.New().SetBaseURL(cfg.SeedURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RatesClient{
		client:  client,
		logger:  logger.Named("rates"),
		limiter: limiter,
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// doRequest executes a request with rate limiting and retry on transient
// failures.
func (c *RatesClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, err = req.Execute(method, url)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		if resp != nil && resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// Exponential backoff: 1s, 2s, 4s
		retryAfter := time.Duration(math.Pow(2, float64(i))) * time.Second
		c.logger.Warn("Rates request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err))

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// FetchRates resolves starting prices for the given "BASE/QUOTE" symbols
// from one USD-based rates snapshot.
func (c *RatesClient) FetchRates(ctx context.Context, symbols []string) (map[string]float64, error) {
	var rates ratesResponse
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("base", "USD").
		SetResult(&rates)

	if _, err := c.doRequest(ctx, "GET", "/latest", req); err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}

	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		parts := strings.SplitN(symbol, "/", 2)
		if len(parts) != 2 {
			continue
		}
		price, ok := crossRate(rates.Rates, parts[0], parts[1])
		if !ok {
			c.logger.Warn("No rate available for symbol", zap.String("symbol", symbol))
			continue
		}
		out[symbol] = price
	}
	return out, nil
}

// crossRate derives base/quote from a USD-relative rate table.
func crossRate(usdRates map[string]float64, base, quote string) (float64, bool) {
	rateOf := func(ccy string) (float64, bool) {
		if ccy == "USD" {
			return 1, true
		}
		r, ok := usdRates[ccy]
		return r, ok && r > 0
	}

	baseRate, ok := rateOf(base)
	if !ok {
		return 0, false
	}
	quoteRate, ok := rateOf(quote)
	if !ok {
		return 0, false
	}
	return quoteRate / baseRate, true
}
