package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0644))
	return dir
}

func TestLoad_MissingConfigWritesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, errors.ErrConfigNotFound)
	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, statErr, "template should be created")

	// The template itself must load cleanly.
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.True(t, cfg.IsPaperMode())
}

func TestLoad_Values(t *testing.T) {
	dir := writeConfig(t, `
[trading]
symbol = "ETHUSDT"
timeframe = "1h"
mode = "paper"
leverage = 3.0

[risk]
account_equity_usd = 25000.0
risk_per_trade = 0.005
max_daily_loss = 0.02
max_weekly_loss = 0.05
min_rr = 2.5

[strategy]
min_confluence_score = 4
rr_target = 3.0
min_grade = "b"
preferred_session_hours = [13, 14, 15]

[market]
timeout = "5s"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Trading.Symbol)
	assert.Equal(t, 3.0, cfg.Trading.Leverage)
	assert.Equal(t, 3.0, cfg.Trading.PaperSlippageBps, "default slippage")
	assert.Equal(t, 25000.0, cfg.Risk.AccountEquityUSD)
	assert.Equal(t, 4, cfg.Strategy.MinConfluenceScore)
	assert.Equal(t, models.GradeB, cfg.MinGrade())
	assert.Equal(t, []int{13, 14, 15}, cfg.Strategy.PreferredSessionHours)
	assert.Equal(t, 5*time.Second, cfg.Market.Timeout)
	assert.Equal(t, 250, cfg.Market.CandleLimit)
	assert.Equal(t, filepath.Join(dir, "state"), cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dir, "state", "trader.db"), cfg.DBPath())
}

func TestLoad_LiveModeLoadsButIsRefused(t *testing.T) {
	dir := writeConfig(t, `
[trading]
mode = "live"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.IsPaperMode())
	assert.ErrorIs(t, cfg.RequirePaper(), errors.ErrLiveModeBlocked)
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.Equal(t, "15m", cfg.Trading.Timeframe)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown mode", func(c *Config) { c.Trading.Mode = "semi" }},
		{"zero equity", func(c *Config) { c.Risk.AccountEquityUSD = 0 }},
		{"risk fraction too large", func(c *Config) { c.Risk.RiskPerTrade = 1.5 }},
		{"bad grade", func(c *Config) { c.Strategy.MinGrade = "D" }},
		{"bad session hour", func(c *Config) { c.Strategy.PreferredSessionHours = []int{24} }},
		{"short candle window", func(c *Config) { c.Market.CandleLimit = 100 }},
		{"zero leverage", func(c *Config) { c.Trading.Leverage = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), errors.ErrConfigInvalid)
		})
	}
}
