// Package journal keeps the human-readable trade ledger (trades.csv) and the
// aggregate metrics derived from it (metrics.json).
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

const (
	TradesFile  = "trades.csv"
	MetricsFile = "metrics.json"
)

// ResultR is the result_r column. Cells that do not parse as a number are kept
// as Valid=false so hand-edited rows never break the ledger.
type ResultR struct {
	Value float64
	Valid bool
	raw   string
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (r ResultR) MarshalCSV() (string, error) {
	if !r.Valid {
		return r.raw, nil
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (r *ResultR) UnmarshalCSV(s string) error {
	r.raw = s
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		r.Valid = false
		return nil
	}
	r.Value, r.Valid = v, true
	return nil
}

// Row is one line of trades.csv. Column order is fixed.
type Row struct {
	DateTime   string  `csv:"date_time"`
	Pair       string  `csv:"pair"`
	Setup      string  `csv:"setup"`
	Bias       string  `csv:"bias"`
	Entry      string  `csv:"entry"`
	Stop       string  `csv:"stop"`
	TP1        string  `csv:"tp1"`
	TP2        string  `csv:"tp2"`
	RiskPct    string  `csv:"risk_pct"`
	Size       string  `csv:"size"`
	ResultR    ResultR `csv:"result_r"`
	Confidence string  `csv:"confidence"`
	RuleBreak  string  `csv:"rule_break"`
	Lesson     string  `csv:"lesson"`
}

// Journal appends closed trades and keeps metrics in sync with the ledger.
type Journal struct {
	dir     string
	riskPct float64
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a journal rooted at dir. riskPct is recorded on every row.
func New(dir string, riskPct float64, logger zerolog.Logger) *Journal {
	return &Journal{
		dir:     dir,
		riskPct: riskPct,
		logger:  logger.With().Str("component", "journal").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// TradesPath returns the path of the CSV ledger.
func (j *Journal) TradesPath() string {
	return filepath.Join(j.dir, TradesFile)
}

// MetricsPath returns the path of the metrics document.
func (j *Journal) MetricsPath() string {
	return filepath.Join(j.dir, MetricsFile)
}

// RowFromTrade renders a ledger record as a journal row.
func RowFromTrade(t *models.ClosedTrade, riskPct float64) Row {
	lesson := fmt.Sprintf("closed via %s", t.Reason)
	if !t.FullyClosed {
		lesson = fmt.Sprintf("partial %s%% via %s", formatNumber(t.Percent), t.Reason)
	}
	return Row{
		DateTime:   t.ClosedAt.UTC().Format(time.RFC3339),
		Pair:       t.Symbol,
		Setup:      t.Setup,
		Bias:       string(t.Side),
		Entry:      formatNumber(t.EntryFill),
		Stop:       formatNumber(t.Stop),
		TP1:        formatNumber(t.TP1),
		RiskPct:    formatNumber(riskPct),
		Size:       formatNumber(t.CloseSizeUSD),
		ResultR:    ResultR{Value: t.ResultR, Valid: true},
		Confidence: string(t.Confidence),
		Lesson:     lesson,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Append writes one row for trade and recomputes metrics from the full ledger.
func (j *Journal) Append(t *models.ClosedTrade) (*models.Metrics, error) {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}

	path := j.TradesPath()
	info, err := os.Stat(path)
	needHeader := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	rows := []Row{RowFromTrade(t, j.riskPct)}
	if needHeader {
		err = gocsv.Marshal(rows, f)
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("appending to %s: %w", path, err)
	}

	j.logger.Debug().Str("symbol", t.Symbol).Float64("result_r", t.ResultR).Msg("Journal row appended")
	return j.Recompute()
}

// Rows reads the ledger. A missing or empty file yields no rows.
func (j *Journal) Rows() ([]Row, error) {
	f, err := os.Open(j.TradesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening trades ledger: %w", err)
	}
	defer f.Close()

	var rows []Row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading trades ledger: %w", err)
	}
	return rows, nil
}

// Compute derives metrics from R values. Percentages and R figures are
// rounded for display only.
func Compute(values []float64, now time.Time) models.Metrics {
	m := models.Metrics{TotalTrades: len(values)}
	if !now.IsZero() {
		at := now.UTC()
		m.UpdatedAt = &at
	}
	if len(values) == 0 {
		return m
	}

	var sum, winSum, lossSum float64
	var wins, losses int
	for _, v := range values {
		sum += v
		switch {
		case v > 0:
			wins++
			winSum += v
		case v < 0:
			losses++
			lossSum += v
		}
	}

	m.WinRate = utils.RoundTo(float64(wins)/float64(len(values))*100, 2)
	if wins > 0 {
		m.AvgWinR = utils.RoundTo(winSum/float64(wins), 4)
	}
	if losses > 0 {
		m.AvgLossR = utils.RoundTo(lossSum/float64(losses), 4)
	}
	m.ExpectancyR = utils.RoundTo(sum/float64(len(values)), 4)
	return m
}

// Recompute scans the whole ledger and rewrites metrics.json atomically.
func (j *Journal) Recompute() (*models.Metrics, error) {
	rows, err := j.Rows()
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		if !r.ResultR.Valid {
			skipped++
			continue
		}
		values = append(values, r.ResultR.Value)
	}
	if skipped > 0 {
		j.logger.Warn().Int("rows", skipped).Msg("Skipped journal rows with unreadable result_r")
	}

	m := Compute(values, j.now())
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding metrics: %w", err)
	}
	if err := utils.WriteFileAtomic(j.MetricsPath(), data, 0644); err != nil {
		return nil, fmt.Errorf("writing metrics: %w", err)
	}
	return &m, nil
}

// Metrics reads metrics.json, recomputing it when missing or unreadable.
func (j *Journal) Metrics() (*models.Metrics, error) {
	data, err := os.ReadFile(j.MetricsPath())
	if err == nil {
		var m models.Metrics
		if jerr := json.Unmarshal(data, &m); jerr == nil {
			return &m, nil
		}
		j.logger.Warn().Str("path", j.MetricsPath()).Msg("Unreadable metrics file, recomputing")
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading metrics: %w", err)
	}
	return j.Recompute()
}

// Rebuild regenerates trades.csv from the authoritative closed-trade ledger and
// recomputes metrics.
func (j *Journal) Rebuild(trades []models.ClosedTrade) (*models.Metrics, error) {
	rows := make([]Row, 0, len(trades))
	for i := range trades {
		rows = append(rows, RowFromTrade(&trades[i], j.riskPct))
	}

	data, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return nil, fmt.Errorf("encoding trades ledger: %w", err)
	}
	if len(data) == 0 {
		data = []byte(strings.Join(Columns(), ",") + "\n")
	}
	if err := utils.WriteFileAtomic(j.TradesPath(), data, 0644); err != nil {
		return nil, fmt.Errorf("writing trades ledger: %w", err)
	}

	j.logger.Info().Int("trades", len(rows)).Msg("Journal rebuilt from ledger")
	return j.Recompute()
}

// Columns returns the fixed ledger header.
func Columns() []string {
	return []string{
		"date_time", "pair", "setup", "bias", "entry", "stop", "tp1", "tp2",
		"risk_pct", "size", "result_r", "confidence", "rule_break", "lesson",
	}
}
