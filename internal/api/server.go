package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"optiondesk/internal/auth"
	"optiondesk/internal/config"
	"optiondesk/internal/engine"
	"optiondesk/internal/ledger"
	"optiondesk/internal/quotes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server exposes the platform over HTTP: auth, market data, trading,
// account funding and the admin listing.
type Server struct {
	http   *http.Server
	logger *zap.Logger

	cfg    *config.Config
	db     *gorm.DB
	engine *engine.Engine
	ledger *ledger.Ledger
	auth   *auth.Service
	board  *quotes.Board
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, db *gorm.DB, eng *engine.Engine, ldg *ledger.Ledger, authSvc *auth.Service, board *quotes.Board, logger *zap.Logger) *Server {
	s := &Server{
		logger: logger.Named("api"),
		cfg:    cfg,
		db:     db,
		engine: eng,
		ledger: ldg,
		auth:   authSvc,
		board:  board,
	}
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: s.Router(),
	}
	return s
}

// Router builds the gin router with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = s.cfg.Server.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
		}

		market := api.Group("/market")
		{
			market.GET("/instruments", s.handleInstruments)
			market.GET("/candles", s.handleCandles)
		}

		authed := api.Group("")
		authed.Use(auth.Middleware(s.auth.Tokens()))
		{
			trades := authed.Group("/trades")
			{
				trades.POST("", s.handleOpenTrade)
				trades.POST("/:id/close", s.handleCloseTrade)
				trades.GET("/open", s.handleOpenTrades)
				trades.GET("/history", s.handleTradeHistory)
				trades.GET("/stats", s.handleTradeStats)
			}

			account := authed.Group("/account")
			{
				account.GET("", s.handleAccount)
				account.POST("/deposits", s.handleDeposit)
				account.POST("/withdrawals", s.handleWithdrawal)
				account.GET("/transactions", s.handleTransactions)
			}

			admin := authed.Group("/admin")
			admin.Use(auth.RequireAdmin())
			{
				admin.GET("/users", s.handleAdminUsers)
			}
		}
	}

	return r
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.http.Addr))
	go func() {
		if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
