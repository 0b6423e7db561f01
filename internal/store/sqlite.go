package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
)

// SQLiteStore implements StateStore using SQLite.
//
// Transactions start with BEGIN IMMEDIATE, so two concurrent runs serialize on
// the database writer lock instead of interleaving their read-modify-writes.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore creates a new SQLite-based state store, creating the parent
// directory if needed.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", errors.ErrDatabaseError, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %v", errors.ErrDatabaseError, err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One JSON document per state concept
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Append-only execution log, one row per paper fill
	CREATE TABLE IF NOT EXISTS executions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		executed_at DATETIME NOT NULL,
		mode TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_signal REAL NOT NULL,
		entry_fill REAL NOT NULL,
		slippage_bps REAL NOT NULL,
		stop REAL NOT NULL,
		tp1 REAL NOT NULL,
		size_usd REAL NOT NULL,
		setup TEXT
	);

	-- Append-only closed-trade ledger, one row per close event
	CREATE TABLE IF NOT EXISTS closed_trades (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		closed_at DATETIME NOT NULL,
		reason TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		setup TEXT,
		confidence TEXT,
		entry_fill REAL NOT NULL,
		exit_price REAL NOT NULL,
		stop REAL NOT NULL,
		tp1 REAL NOT NULL,
		percent REAL NOT NULL,
		size_usd_before REAL NOT NULL,
		close_size_usd REAL NOT NULL,
		size_usd_after REAL NOT NULL,
		result_r REAL NOT NULL,
		pnl_usd REAL NOT NULL,
		fully_closed INTEGER NOT NULL DEFAULT 0
	);

	-- Evaluation audit trail
	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		pending_created INTEGER DEFAULT 0,
		detail TEXT
	);

	-- Candles table for the last fetched OHLCV windows
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_closed_trades_closed_at ON closed_trades(closed_at);
	CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Transactions
// ============================================================================

// View runs fn in a transaction that is always rolled back.
func (s *SQLiteStore) View(ctx context.Context, fn func(tx StateTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", errors.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	return fn(&sqliteTx{ctx: ctx, tx: tx, logger: s.logger})
}

// Update runs fn in a transaction and commits it when fn returns nil.
func (s *SQLiteStore) Update(ctx context.Context, fn func(tx StateTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", errors.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, tx: tx, logger: s.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", errors.ErrDatabaseError, err)
	}
	return nil
}

type sqliteTx struct {
	ctx    context.Context
	tx     *sql.Tx
	logger zerolog.Logger
}

// getRecord decodes the document stored under key into a new T.
func getRecord[T any](t *sqliteTx, key string) (*T, error) {
	var raw string
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStateError(key, "read", err)
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.NewCorruptStateError(key, err)
	}
	return &v, nil
}

func (t *sqliteTx) put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.NewStateError(key, "encode", err)
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UTC())
	if err != nil {
		return errors.NewStateError(key, "write", err)
	}
	return nil
}

func (t *sqliteTx) delete(key string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM state WHERE key = ?`, key); err != nil {
		return errors.NewStateError(key, "delete", err)
	}
	return nil
}

func (t *sqliteTx) PendingOrder() (*models.PendingOrder, error) {
	return getRecord[models.PendingOrder](t, KeyPendingOrder)
}

func (t *sqliteTx) SetPendingOrder(order *models.PendingOrder) error {
	return t.put(KeyPendingOrder, order)
}

func (t *sqliteTx) DeletePendingOrder() error {
	return t.delete(KeyPendingOrder)
}

func (t *sqliteTx) OpenPosition() (*models.OpenPosition, error) {
	return getRecord[models.OpenPosition](t, KeyOpenPosition)
}

func (t *sqliteTx) SetOpenPosition(pos *models.OpenPosition) error {
	return t.put(KeyOpenPosition, pos)
}

func (t *sqliteTx) DeleteOpenPosition() error {
	return t.delete(KeyOpenPosition)
}

func (t *sqliteTx) ArmedExit() (*models.ArmedExit, error) {
	return getRecord[models.ArmedExit](t, KeyArmedExit)
}

func (t *sqliteTx) SetArmedExit(exit *models.ArmedExit) error {
	return t.put(KeyArmedExit, exit)
}

func (t *sqliteTx) DeleteArmedExit() error {
	return t.delete(KeyArmedExit)
}

func (t *sqliteTx) KillSwitch() (*models.KillSwitch, error) {
	return getRecord[models.KillSwitch](t, KeyKillSwitch)
}

func (t *sqliteTx) SetKillSwitch(ks *models.KillSwitch) error {
	return t.put(KeyKillSwitch, ks)
}

func (t *sqliteTx) DeleteKillSwitch() error {
	return t.delete(KeyKillSwitch)
}

func (t *sqliteTx) Performance() (models.Performance, error) {
	perf, err := getRecord[models.Performance](t, KeyPerformance)
	if errors.Is(err, errors.ErrCorruptState) {
		t.logger.Warn().Err(err).Msg("Performance record unreadable, using zero values")
		return models.Performance{}, nil
	}
	if err != nil || perf == nil {
		return models.Performance{}, err
	}
	return *perf, nil
}

func (t *sqliteTx) SetPerformance(perf models.Performance) error {
	return t.put(KeyPerformance, perf)
}

// ============================================================================
// Execution Log
// ============================================================================

func (t *sqliteTx) AppendExecution(rec *models.ExecutionRecord) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO executions (id, executed_at, mode, symbol, side, entry_signal, entry_fill, slippage_bps, stop, tp1, size_usd, setup)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ExecutedAt.UTC(), rec.Mode, rec.Symbol, rec.Side, rec.EntrySignal, rec.EntryFill, rec.SlippageBps, rec.Stop, rec.TP1, rec.SizeUSD, rec.Setup)
	if err != nil {
		return fmt.Errorf("%w: failed to append execution: %v", errors.ErrDatabaseError, err)
	}
	return nil
}

func (t *sqliteTx) CountExecutions() (int, error) {
	var n int
	if err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM executions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count executions: %v", errors.ErrDatabaseError, err)
	}
	return n, nil
}

// GetExecutions returns the most recent executions, oldest first.
func (s *SQLiteStore) GetExecutions(ctx context.Context, limit int) ([]models.ExecutionRecord, error) {
	const cols = `seq, id, executed_at, mode, symbol, side, entry_signal, entry_fill, slippage_bps, stop, tp1, size_usd, setup`
	query := "SELECT " + cols + " FROM executions ORDER BY seq ASC"
	args := []interface{}{}
	if limit > 0 {
		query = "SELECT * FROM (SELECT " + cols + " FROM executions ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var out []models.ExecutionRecord
	for rows.Next() {
		var r models.ExecutionRecord
		var seq int64
		var setup sql.NullString
		if err := rows.Scan(&seq, &r.ID, &r.ExecutedAt, &r.Mode, &r.Symbol, &r.Side, &r.EntrySignal, &r.EntryFill, &r.SlippageBps, &r.Stop, &r.TP1, &r.SizeUSD, &setup); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		r.Setup = setup.String
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return out, nil
}

// ============================================================================
// Closed-Trade Ledger
// ============================================================================

const closedTradeColumns = `seq, id, closed_at, reason, symbol, side, setup, confidence, entry_fill, exit_price, stop, tp1, percent, size_usd_before, close_size_usd, size_usd_after, result_r, pnl_usd, fully_closed`

func (t *sqliteTx) AppendClosedTrade(trade *models.ClosedTrade) error {
	fully := 0
	if trade.FullyClosed {
		fully = 1
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO closed_trades (id, closed_at, reason, symbol, side, setup, confidence, entry_fill, exit_price, stop, tp1, percent, size_usd_before, close_size_usd, size_usd_after, result_r, pnl_usd, fully_closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.ClosedAt.UTC(), trade.Reason, trade.Symbol, trade.Side, trade.Setup, trade.Confidence,
		trade.EntryFill, trade.ExitPrice, trade.Stop, trade.TP1, trade.Percent,
		trade.SizeUSDBefore, trade.CloseSizeUSD, trade.SizeUSDAfter, trade.ResultR, trade.PnLUSD, fully)
	if err != nil {
		return fmt.Errorf("%w: failed to append closed trade: %v", errors.ErrDatabaseError, err)
	}
	return nil
}

func (t *sqliteTx) ClosedTradesSince(since time.Time) ([]models.ClosedTrade, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+closedTradeColumns+` FROM closed_trades WHERE closed_at >= ? ORDER BY seq ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", err)
	}
	return scanClosedTrades(rows)
}

// GetClosedTrades retrieves closed trades in ledger order.
// With a limit, the most recent trades are returned, still oldest first.
func (s *SQLiteStore) GetClosedTrades(ctx context.Context, filter TradeFilter) ([]models.ClosedTrade, error) {
	query := "SELECT " + closedTradeColumns + " FROM closed_trades WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		query += " AND closed_at >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND closed_at <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	if filter.Reason != "" {
		query += " AND reason = ?"
		args = append(args, filter.Reason)
	}

	if filter.Limit > 0 {
		query = "SELECT * FROM (" + query + " ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC"
		args = append(args, filter.Limit)
	} else {
		query += " ORDER BY seq ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", err)
	}
	return scanClosedTrades(rows)
}

func scanClosedTrades(rows *sql.Rows) ([]models.ClosedTrade, error) {
	defer rows.Close()

	var trades []models.ClosedTrade
	for rows.Next() {
		var t models.ClosedTrade
		var seq int64
		var setup, confidence sql.NullString
		var fully int
		if err := rows.Scan(&seq, &t.ID, &t.ClosedAt, &t.Reason, &t.Symbol, &t.Side, &setup, &confidence,
			&t.EntryFill, &t.ExitPrice, &t.Stop, &t.TP1, &t.Percent,
			&t.SizeUSDBefore, &t.CloseSizeUSD, &t.SizeUSDAfter, &t.ResultR, &t.PnLUSD, &fully); err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}
		t.Setup = setup.String
		t.Confidence = models.Confidence(confidence.String)
		t.FullyClosed = fully == 1
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed trades: %w", err)
	}
	return trades, nil
}

// ============================================================================
// Evaluations Methods
// ============================================================================

// SaveEvaluation records one evaluate run and sets its ID.
func (s *SQLiteStore) SaveEvaluation(ctx context.Context, eval *models.Evaluation) error {
	created := 0
	if eval.PendingMade {
		created = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations (timestamp, symbol, timeframe, status, reason, pending_created, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, eval.Timestamp.UTC(), eval.Symbol, eval.Timeframe, eval.Status, eval.Reason, created, eval.Detail)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		eval.ID = id
	}
	return nil
}

// GetEvaluations retrieves evaluation records, newest first.
func (s *SQLiteStore) GetEvaluations(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, error) {
	query := "SELECT id, timestamp, symbol, timeframe, status, reason, pending_created, detail FROM evaluations WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}

	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []models.Evaluation
	for rows.Next() {
		var e models.Evaluation
		var reason, detail sql.NullString
		var created int
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Symbol, &e.Timeframe, &e.Status, &reason, &created, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		e.Reason = reason.String
		e.Detail = detail.String
		e.PendingMade = created == 1
		evals = append(evals, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}
	return evals, nil
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves the most recent limit candles, oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume FROM (
			SELECT timestamp, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND timeframe = ?
			ORDER BY timestamp DESC
			LIMIT ?
		) ORDER BY timestamp ASC
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}
