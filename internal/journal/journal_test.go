package journal

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/models"
)

var fixedNow = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j := New(t.TempDir(), 0.01, zerolog.Nop())
	j.now = func() time.Time { return fixedNow }
	return j
}

func closedTrade(r float64) *models.ClosedTrade {
	return &models.ClosedTrade{
		ClosedAt:     fixedNow,
		Reason:       models.CloseManual,
		Symbol:       "BTCUSDT",
		Side:         models.SideLong,
		Setup:        "V2.1 long: trend + reclaim",
		Confidence:   models.ConfidenceHigh,
		EntryFill:    100,
		Stop:         98,
		TP1:          105.6,
		Percent:      100,
		CloseSizeUSD: 5000,
		ResultR:      r,
		FullyClosed:  true,
	}
}

func TestCompute(t *testing.T) {
	m := Compute([]float64{2.0, -1.0, 1.5, -1.0}, fixedNow)

	assert.Equal(t, 4, m.TotalTrades)
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
	assert.InDelta(t, 0.375, m.ExpectancyR, 1e-9)
	assert.InDelta(t, 1.75, m.AvgWinR, 1e-9)
	assert.InDelta(t, -1.0, m.AvgLossR, 1e-9)
	require.NotNil(t, m.UpdatedAt)
}

func TestCompute_Empty(t *testing.T) {
	m := Compute(nil, fixedNow)
	assert.Equal(t, 0, m.TotalTrades)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ExpectancyR)
}

func TestAppend_WritesHeaderOnceAndRecomputes(t *testing.T) {
	j := newTestJournal(t)

	var m *models.Metrics
	var err error
	for _, r := range []float64{2.0, -1.0, 1.5, -1.0} {
		m, err = j.Append(closedTrade(r))
		require.NoError(t, err)
	}

	assert.Equal(t, 4, m.TotalTrades)
	assert.InDelta(t, 0.375, m.ExpectancyR, 1e-9)

	data, err := os.ReadFile(j.TradesPath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, strings.Join(Columns(), ","), lines[0])

	raw, err := os.ReadFile(j.MetricsPath())
	require.NoError(t, err)
	var onDisk models.Metrics
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, *m, onDisk)
}

func TestRecompute_SkipsUnreadableR(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Append(closedTrade(2))
	require.NoError(t, err)

	f, err := os.OpenFile(j.TradesPath(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("2026-03-11T12:00:00Z,BTCUSDT,manual note,n/a,,,,,,,n/a,,,\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m, err := j.Recompute()
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalTrades)
	assert.InDelta(t, 2.0, m.ExpectancyR, 1e-9)
}

func TestMetrics_MissingFileRecomputes(t *testing.T) {
	j := newTestJournal(t)

	m, err := j.Metrics()
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalTrades)
	assert.FileExists(t, j.MetricsPath())
}

func TestRebuild_ReplacesLedger(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Append(closedTrade(5))
	require.NoError(t, err)

	trades := []models.ClosedTrade{*closedTrade(2), *closedTrade(-1)}
	m, err := j.Rebuild(trades)
	require.NoError(t, err)

	assert.Equal(t, 2, m.TotalTrades)
	assert.InDelta(t, 0.5, m.ExpectancyR, 1e-9)

	rows, err := j.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "LONG", rows[0].Bias)
	assert.Equal(t, "closed via manual", rows[0].Lesson)
}

func TestRebuild_EmptyLedgerKeepsHeader(t *testing.T) {
	j := newTestJournal(t)

	m, err := j.Rebuild(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalTrades)

	data, err := os.ReadFile(j.TradesPath())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "date_time,pair,setup"))
}

func TestRowFromTrade_Partial(t *testing.T) {
	tr := closedTrade(1.2)
	tr.FullyClosed = false
	tr.Percent = 40

	row := RowFromTrade(tr, 0.01)
	assert.Equal(t, "partial 40% via manual", row.Lesson)
	assert.Equal(t, "0.01", row.RiskPct)
	assert.Equal(t, "1.2", mustMarshal(t, row.ResultR))
}

func mustMarshal(t *testing.T, r ResultR) string {
	t.Helper()
	s, err := r.MarshalCSV()
	require.NoError(t, err)
	return s
}
