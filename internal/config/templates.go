package config

import (
	"fmt"
	"os"
	"path/filepath"

	"signal-trader/internal/errors"
)

const configTemplate = `# Signal Trader Configuration

[trading]
# Instrument and candle interval
symbol = "BTCUSDT"
timeframe = "15m"
# Trading mode: only "paper" executes; "live" is refused
mode = "paper"
leverage = 1.0
# Modeled slippage applied to paper fills, in basis points
paper_slippage_bps = 3.0

[risk]
account_equity_usd = 10000.0
# Fraction of equity risked on the stop distance
risk_per_trade = 0.01
# Realized loss limits as fractions of equity
max_daily_loss = 0.03
max_weekly_loss = 0.06
# Reward:risk floor for a pending order
min_rr = 2.8

[strategy]
min_confluence_score = 5
rr_target = 2.8
# Minimum letter grade: A, B or C
min_grade = "A"
# UTC hours that earn the session bonus (empty disables it)
preferred_session_hours = []
# Volume/spread effort-vs-result bonus
effort_bonus = true

[market]
base_url = "https://api.binance.com"
candle_limit = 250
timeout = "10s"
requests_per_second = 5.0
max_retries = 3

[storage]
# Defaults to <config dir>/state and <data dir>/journal
data_dir = ""
journal_dir = ""

[logging]
level = "info"
console = true
file = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("%w: created template at %s, review it and run again", errors.ErrConfigNotFound, path)
}
