package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"optiondesk/internal/auth"
	"optiondesk/internal/config"
	"optiondesk/internal/database"
	"optiondesk/internal/engine"
	"optiondesk/internal/ledger"
	"optiondesk/internal/models"
	"optiondesk/internal/quotes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTest(t *testing.T) (*gin.Engine, *engine.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.Server{Port: 0},
		Auth: config.Auth{
			JWTSecret:          "test-secret",
			AccessTokenMinutes: 60,
			BcryptCost:         bcrypt.MinCost,
		},
		Trading: config.Trading{
			ExpirySeconds: 30,
			PayoutMin:     0.70,
			PayoutMax:     0.90,
			SignupBonus:   0,
		},
		Quotes: config.Quotes{
			TickMillis:  1000,
			Volatility:  0.002,
			CandleDepth: 200,
		},
		Instruments: []config.Instrument{
			{Symbol: "EUR/USD", Name: "Euro / US Dollar", BasePrice: 1.0875},
		},
	}

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db, cfg))

	log := zap.NewNop()
	board := quotes.NewBoard(&cfg.Quotes, cfg.Instruments, log)
	ldg := ledger.New(db, log)
	eng := engine.NewEngine(log, cfg, db, ldg, board)
	t.Cleanup(eng.Stop)

	authSvc := auth.NewService(db, log,
		auth.NewPasswordManager(cfg.Auth.BcryptCost),
		auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		cfg.Trading.SignupBonus)

	server := NewServer(cfg, db, eng, ldg, authSvc, board, log)
	return server.Router(), eng, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine) string {
	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":      "trader@example.com",
		"password":   "Str0ngPassw0rd",
		"first_name": "Alex",
		"last_name":  "Morgan",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestFullTradingFlow(t *testing.T) {
	router, eng, _ := setupTest(t)
	eng.SetPayoutFunc(func() float64 { return 0.80 })

	token := registerAndLogin(t, router)

	// Deposit virtual funds.
	w := doJSON(t, router, http.MethodPost, "/api/account/deposits", token, gin.H{
		"amount": 1000.0, "method": "card",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Opening beyond the balance is rejected.
	w = doJSON(t, router, http.MethodPost, "/api/trades", token, gin.H{
		"pair": "EUR/USD", "direction": "up", "amount": 5000.0,
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// Open a real trade; the board supplies the open price.
	w = doJSON(t, router, http.MethodPost, "/api/trades", token, gin.H{
		"pair": "EUR/USD", "direction": "up", "amount": 100.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var trade models.Trade
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trade))
	assert.Equal(t, models.TradeStatusOpen, trade.Status)

	// It shows up as open.
	w = doJSON(t, router, http.MethodGet, "/api/trades/open", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var open []models.Trade
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &open))
	assert.Len(t, open, 1)

	// Close it manually; first trade of a fresh user wins.
	w = doJSON(t, router, http.MethodPost, "/api/trades/"+trade.ID+"/close", token, gin.H{
		"price": 1.10,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var closed struct {
		Profit float64 `json:"profit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &closed))
	assert.InDelta(t, 80.0, closed.Profit, 1e-9)

	// A duplicate close reports the trade as gone.
	w = doJSON(t, router, http.MethodPost, "/api/trades/"+trade.ID+"/close", token, gin.H{
		"price": 1.20,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Balance reflects stake plus payout.
	w = doJSON(t, router, http.MethodGet, "/api/account", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var acct models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acct))
	assert.InDelta(t, 1080.0, acct.Balance, 1e-9)

	// History and stats agree.
	w = doJSON(t, router, http.MethodGet, "/api/trades/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats engine.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalTrades)
	assert.Equal(t, int64(1), stats.WinningTrades)
}

func TestTradeValidationErrors(t *testing.T) {
	router, _, _ := setupTest(t)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/trades", token, gin.H{
		"pair": "XAU/USD", "direction": "up", "amount": 10.0,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/trades", token, gin.H{
		"pair": "EUR/USD", "direction": "sideways", "amount": 10.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	router, _, _ := setupTest(t)

	w := doJSON(t, router, http.MethodGet, "/api/trades/open", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/trades/open", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdrawalOverdraft(t *testing.T) {
	router, _, _ := setupTest(t)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/account/withdrawals", token, gin.H{
		"amount": 50.0, "method": "bank",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestAdminListing(t *testing.T) {
	router, _, db := setupTest(t)
	token := registerAndLogin(t, router)

	// Plain users may not list accounts.
	w := doJSON(t, router, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Promote and log in again so the token carries the admin flag.
	require.NoError(t, db.Model(&models.User{}).
		Where("email = ?", "trader@example.com").
		UpdateColumn("is_admin", true).Error)

	w = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "trader@example.com", "password": "Str0ngPassw0rd",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(t, router, http.MethodGet, "/api/admin/users", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []adminUserRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 1)
}

func TestMarketEndpointsArePublic(t *testing.T) {
	router, _, _ := setupTest(t)

	w := doJSON(t, router, http.MethodGet, "/api/market/instruments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var instruments []instrumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &instruments))
	require.Len(t, instruments, 1)
	assert.Equal(t, "EUR/USD", instruments[0].Symbol)

	w = doJSON(t, router, http.MethodGet, "/api/market/candles?symbol=EUR%2FUSD", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/market/candles", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
