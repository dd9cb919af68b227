package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server      Server       `mapstructure:"server"`
	Database    Database     `mapstructure:"database"`
	Logger      Logger       `mapstructure:"logger"`
	Auth        Auth         `mapstructure:"auth"`
	Trading     Trading      `mapstructure:"trading"`
	Quotes      Quotes       `mapstructure:"quotes"`
	Instruments []Instrument `mapstructure:"instruments"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Auth holds the configuration for authentication.
type Auth struct {
	JWTSecret          string `mapstructure:"jwt_secret"`
	AccessTokenMinutes int    `mapstructure:"access_token_minutes"`
	BcryptCost         int    `mapstructure:"bcrypt_cost"`
}

// AccessTokenTTL returns the access token lifetime.
func (a Auth) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenMinutes) * time.Minute
}

// Trading holds the configuration for the settlement engine.
type Trading struct {
	ExpirySeconds int     `mapstructure:"expiry_seconds"`
	PayoutMin     float64 `mapstructure:"payout_min"`
	PayoutMax     float64 `mapstructure:"payout_max"`
	SignupBonus   float64 `mapstructure:"signup_bonus"`
}

// Expiry returns the fixed duration after which an open trade settles.
func (t Trading) Expiry() time.Duration {
	return time.Duration(t.ExpirySeconds) * time.Second
}

// Quotes holds the configuration for the simulated quote board and the
// optional external rate seed.
type Quotes struct {
	TickMillis     int     `mapstructure:"tick_millis"`
	Volatility     float64 `mapstructure:"volatility"`
	CandleDepth    int     `mapstructure:"candle_depth"`
	SeedEnabled    bool    `mapstructure:"seed_enabled"`
	SeedURL        string  `mapstructure:"seed_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// TickInterval returns the interval between simulator ticks.
func (q Quotes) TickInterval() time.Duration {
	return time.Duration(q.TickMillis) * time.Millisecond
}

// Instrument is a currency pair made available for trading.
type Instrument struct {
	Symbol    string  `mapstructure:"symbol"`
	Name      string  `mapstructure:"name"`
	BasePrice float64 `mapstructure:"base_price"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("auth.access_token_minutes", 60)
	viper.SetDefault("auth.bcrypt_cost", 12)
	viper.SetDefault("trading.expiry_seconds", 30)
	viper.SetDefault("trading.payout_min", 0.70)
	viper.SetDefault("trading.payout_max", 0.90)
	viper.SetDefault("trading.signup_bonus", 0)
	viper.SetDefault("quotes.tick_millis", 1000)
	viper.SetDefault("quotes.volatility", 0.002)
	viper.SetDefault("quotes.candle_depth", 200)
	viper.SetDefault("quotes.rate_limit", 2)       // requests per second
	viper.SetDefault("quotes.rate_limit_burst", 1) // burst size

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
