package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/errors"
)

const testConfig = `
[trading]
symbol = "BTCUSDT"
timeframe = "15m"
mode = "paper"

[risk]
account_equity_usd = 10000.0

[logging]
level = "error"
console = false
file = false
`

func testConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(testConfig), 0644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(zerolog.Nop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version", "--json")
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestConfigPath_UsesFlag(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "config", "path", "--config", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), strings.TrimSpace(out))
}

func TestConfigValidate_WritesTemplateWhenMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "config", "validate", "--config", dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigNotFound))

	out, err := run(t, "config", "validate", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestKillSwitchAndStatus(t *testing.T) {
	dir := testConfigDir(t)

	_, err := run(t, "kill", "on", "--config", dir)
	require.NoError(t, err)

	out, err := run(t, "status", "--json", "--config", dir)
	require.NoError(t, err)
	var st struct {
		Mode       string `json:"mode"`
		Symbol     string `json:"symbol"`
		KillSwitch *struct {
			Enabled bool `json:"enabled"`
		} `json:"kill_switch"`
		Executions int `json:"executions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "paper", st.Mode)
	assert.Equal(t, "BTCUSDT", st.Symbol)
	require.NotNil(t, st.KillSwitch)
	assert.True(t, st.KillSwitch.Enabled)
	assert.Zero(t, st.Executions)

	_, err = run(t, "kill", "off", "--config", dir)
	require.NoError(t, err)
	out, err = run(t, "status", "--config", dir)
	require.NoError(t, err)
	assert.Regexp(t, `Kill switch:\s+OFF`, out)
	assert.Contains(t, out, "No open position")
}

func TestKill_RejectsUnknownState(t *testing.T) {
	dir := testConfigDir(t)
	_, err := run(t, "kill", "maybe", "--config", dir)
	require.Error(t, err)

	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestSequencingErrorsSurface(t *testing.T) {
	dir := testConfigDir(t)

	out, err := run(t, "pending", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "NO_PENDING_ORDER")

	_, err = run(t, "deny", "--config", dir)
	assert.True(t, errors.Is(err, errors.ErrNoPendingOrder))

	_, err = run(t, "approve", "--config", dir)
	assert.True(t, errors.Is(err, errors.ErrNoPendingOrder))

	_, err = run(t, "close", "100", "--config", dir)
	assert.True(t, errors.Is(err, errors.ErrNoOpenPosition))
}

func TestPositionArgumentValidation(t *testing.T) {
	dir := testConfigDir(t)

	_, err := run(t, "arm-exit", "tp2", "--config", dir)
	require.Error(t, err)

	_, err = run(t, "close", "now", "150", "--config", dir)
	require.Error(t, err)

	_, err = run(t, "close", "-5", "--config", dir)
	require.Error(t, err)
}

func TestJournalCommandsOnEmptyLedger(t *testing.T) {
	dir := testConfigDir(t)

	out, err := run(t, "journal", "show", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No closed trades")

	out, err = run(t, "journal", "rebuild", "--json", "--config", dir)
	require.NoError(t, err)
	var res struct {
		Rows    int `json:"rows"`
		Metrics struct {
			TotalTrades int `json:"total_trades"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Zero(t, res.Rows)
	assert.Zero(t, res.Metrics.TotalTrades)

	data, err := os.ReadFile(filepath.Join(dir, "state", "journal", "trades.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "date_time,pair,setup"))
}

func TestParsePercent(t *testing.T) {
	pct, err := parsePercent(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)

	pct, err = parsePercent([]string{"tp", "40%"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 40.0, pct)

	for _, bad := range []string{"0", "101", "abc", "-1"} {
		_, err := parsePercent([]string{bad}, 0)
		assert.Error(t, err, bad)
	}
}
