// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Trading  TradingConfig  `mapstructure:"trading"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Market   MarketConfig   `mapstructure:"market"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// TradingConfig holds instrument and execution settings.
type TradingConfig struct {
	Symbol           string  `mapstructure:"symbol"`
	Timeframe        string  `mapstructure:"timeframe"`
	Mode             string  `mapstructure:"mode"` // "paper" or "live" (live is refused)
	Leverage         float64 `mapstructure:"leverage"`
	PaperSlippageBps float64 `mapstructure:"paper_slippage_bps"`
}

// RiskConfig holds risk management configuration. Loss limits are fractions of equity.
type RiskConfig struct {
	AccountEquityUSD float64 `mapstructure:"account_equity_usd"`
	RiskPerTrade     float64 `mapstructure:"risk_per_trade"`
	MaxDailyLoss     float64 `mapstructure:"max_daily_loss"`
	MaxWeeklyLoss    float64 `mapstructure:"max_weekly_loss"`
	MinRR            float64 `mapstructure:"min_rr"`
}

// StrategyConfig holds the signal policy knobs.
type StrategyConfig struct {
	MinConfluenceScore    int     `mapstructure:"min_confluence_score"`
	RRTarget              float64 `mapstructure:"rr_target"`
	MinGrade              string  `mapstructure:"min_grade"`
	PreferredSessionHours []int   `mapstructure:"preferred_session_hours"`
	EffortBonus           bool    `mapstructure:"effort_bonus"`
}

// MarketConfig holds market data source settings.
type MarketConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	CandleLimit       int           `mapstructure:"candle_limit"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// StorageConfig controls where state and journal files live.
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	JournalDir string `mapstructure:"journal_dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signal-trader"
	}
	return filepath.Join(home, ".config", "signal-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env files are optional
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, createTemplateConfig(configDir)
		}
		return nil, fmt.Errorf("reading config.toml: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}
	cfg.Dir = configDir

	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated with defaults only.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.symbol", "BTCUSDT")
	v.SetDefault("trading.timeframe", "15m")
	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.leverage", 1.0)
	v.SetDefault("trading.paper_slippage_bps", 3.0)

	v.SetDefault("risk.account_equity_usd", 10000.0)
	v.SetDefault("risk.risk_per_trade", 0.01)
	v.SetDefault("risk.max_daily_loss", 0.03)
	v.SetDefault("risk.max_weekly_loss", 0.06)
	v.SetDefault("risk.min_rr", 2.8)

	v.SetDefault("strategy.min_confluence_score", 5)
	v.SetDefault("strategy.rr_target", 2.8)
	v.SetDefault("strategy.min_grade", "A")
	v.SetDefault("strategy.preferred_session_hours", []int{})
	v.SetDefault("strategy.effort_bonus", true)

	v.SetDefault("market.base_url", "https://api.binance.com")
	v.SetDefault("market.candle_limit", 250)
	v.SetDefault("market.timeout", "10s")
	v.SetDefault("market.requests_per_second", 5.0)
	v.SetDefault("market.max_retries", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADER_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("TRADER_SYMBOL"); v != "" {
		cfg.Trading.Symbol = strings.ToUpper(v)
	}
	if v := os.Getenv("TRADER_EQUITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.AccountEquityUSD = f
		}
	}
	if v := os.Getenv("TRADER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("TRADER_MARKET_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
}

func (c *Config) resolvePaths() {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = filepath.Join(c.Dir, "state")
	}
	if c.Storage.JournalDir == "" {
		c.Storage.JournalDir = filepath.Join(c.Storage.DataDir, "journal")
	}
}

// DBPath returns the path of the SQLite state database.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "trader.db")
}

// LogPath returns the path of the rotating log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Storage.DataDir, "logs", "trader.log")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("%w: trading.symbol is required", errors.ErrConfigInvalid)
	}
	if c.Trading.Timeframe == "" {
		return fmt.Errorf("%w: trading.timeframe is required", errors.ErrConfigInvalid)
	}
	mode := models.TradingMode(c.Trading.Mode)
	if mode != models.ModePaper && mode != models.ModeLive {
		return fmt.Errorf("%w: invalid trading mode: %s (must be 'paper' or 'live')", errors.ErrConfigInvalid, c.Trading.Mode)
	}
	if c.Trading.Leverage <= 0 {
		return fmt.Errorf("%w: leverage must be positive", errors.ErrConfigInvalid)
	}
	if c.Trading.PaperSlippageBps < 0 {
		return fmt.Errorf("%w: paper_slippage_bps must be non-negative", errors.ErrConfigInvalid)
	}

	if c.Risk.AccountEquityUSD <= 0 {
		return fmt.Errorf("%w: account_equity_usd must be positive", errors.ErrConfigInvalid)
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade >= 1 {
		return fmt.Errorf("%w: risk_per_trade must be between 0 and 1", errors.ErrConfigInvalid)
	}
	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxDailyLoss >= 1 {
		return fmt.Errorf("%w: max_daily_loss must be between 0 and 1", errors.ErrConfigInvalid)
	}
	if c.Risk.MaxWeeklyLoss <= 0 || c.Risk.MaxWeeklyLoss >= 1 {
		return fmt.Errorf("%w: max_weekly_loss must be between 0 and 1", errors.ErrConfigInvalid)
	}
	if c.Risk.MinRR < 0 {
		return fmt.Errorf("%w: min_rr must be non-negative", errors.ErrConfigInvalid)
	}

	if c.Strategy.MinConfluenceScore < 0 {
		return fmt.Errorf("%w: min_confluence_score must be non-negative", errors.ErrConfigInvalid)
	}
	if c.Strategy.RRTarget <= 0 {
		return fmt.Errorf("%w: rr_target must be positive", errors.ErrConfigInvalid)
	}
	switch models.Grade(strings.ToUpper(c.Strategy.MinGrade)) {
	case models.GradeA, models.GradeB, models.GradeC:
	default:
		return fmt.Errorf("%w: min_grade must be A, B or C", errors.ErrConfigInvalid)
	}
	for _, h := range c.Strategy.PreferredSessionHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("%w: preferred_session_hours must be UTC hours 0-23", errors.ErrConfigInvalid)
		}
	}

	if c.Market.CandleLimit < 200 {
		return fmt.Errorf("%w: candle_limit must be at least 200", errors.ErrConfigInvalid)
	}

	return nil
}

// MinGrade returns the configured minimum grade.
func (c *Config) MinGrade() models.Grade {
	return models.Grade(strings.ToUpper(c.Strategy.MinGrade))
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return models.TradingMode(c.Trading.Mode) == models.ModePaper
}

// RequirePaper returns ErrLiveModeBlocked unless the configured mode is paper.
func (c *Config) RequirePaper() error {
	if !c.IsPaperMode() {
		return errors.ErrLiveModeBlocked
	}
	return nil
}
