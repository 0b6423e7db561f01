// Package trading implements the order lifecycle: pending proposal, paper
// execution, open position, armed exits and closes.
package trading

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"signal-trader/internal/analysis"
	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/errors"
	"signal-trader/internal/logging"
	"signal-trader/internal/models"
	"signal-trader/internal/risk"
	"signal-trader/internal/store"
	"signal-trader/pkg/utils"
)

// Soft refusal reasons.
const (
	ReasonKillSwitch   = "Kill switch active"
	ReasonPositionOpen = "Position already open"
	ReasonZeroSize     = "Position size is zero"
)

// TradeJournal receives every close event after it is committed.
type TradeJournal interface {
	Append(trade *models.ClosedTrade) (*models.Metrics, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Store    store.StateStore
	Market   broker.MarketData
	Signals  analysis.Evaluator
	Executor broker.Executor
	Journal  TradeJournal
	Logger   zerolog.Logger
}

// Engine composes the lifecycle transitions. Every read-modify-write runs in a
// single store transaction.
type Engine struct {
	cfg      *config.Config
	store    store.StateStore
	market   broker.MarketData
	signals  analysis.Evaluator
	executor broker.Executor
	journal  TradeJournal
	logger   zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewEngine creates a lifecycle engine.
func NewEngine(cfg *config.Config, deps Deps) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    deps.Store,
		market:   deps.Market,
		signals:  deps.Signals,
		executor: deps.Executor,
		journal:  deps.Journal,
		logger:   logging.WithSymbol(deps.Logger, cfg.Trading.Symbol),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// EvaluateResult is the outcome of one evaluate run.
type EvaluateResult struct {
	Status      models.SignalStatus  `json:"status"`
	Reason      string               `json:"reason,omitempty"`
	Verdict     *analysis.Verdict    `json:"verdict,omitempty"`
	Order       *models.PendingOrder `json:"pending_order,omitempty"`
	Replaced    bool                 `json:"replaced"`
	Performance models.Performance   `json:"performance"`
}

// Explanation is an evaluation without side effects.
type Explanation struct {
	Verdict     *analysis.Verdict    `json:"verdict"`
	Blockers    []string             `json:"blockers"`
	Order       *models.PendingOrder `json:"proposed_order,omitempty"`
	Performance models.Performance   `json:"performance"`
	Cached      bool                 `json:"cached"`
}

// ApproveResult is the outcome of approving the pending order.
type ApproveResult struct {
	Execution *models.ExecutionRecord `json:"execution"`
	Position  *models.OpenPosition    `json:"position"`
}

// CloseResult is the outcome of one close event.
type CloseResult struct {
	Trade    models.ClosedTrade   `json:"trade"`
	Position *models.OpenPosition `json:"position,omitempty"`
	Metrics  *models.Metrics      `json:"metrics,omitempty"`
	// JournalErr is set when the trade was committed but the journal could not
	// be updated. `journal rebuild` repairs it.
	JournalErr error `json:"-"`
}

// FullyClosed reports whether the position is gone.
func (r *CloseResult) FullyClosed() bool {
	return r.Position == nil
}

// ExitResult is the outcome of arming or monitoring an exit.
type ExitResult struct {
	Exit      *models.ArmedExit `json:"exit,omitempty"`
	Side      models.Side       `json:"side,omitempty"`
	Price     float64           `json:"current"`
	Triggered bool              `json:"triggered"`
	Close     *CloseResult      `json:"close,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// StatusReport summarizes the persisted state.
type StatusReport struct {
	Mode        models.TradingMode   `json:"mode"`
	Symbol      string               `json:"symbol"`
	Timeframe   string               `json:"timeframe"`
	KillSwitch  *models.KillSwitch   `json:"kill_switch,omitempty"`
	Pending     *models.PendingOrder `json:"pending_order,omitempty"`
	Position    *models.OpenPosition `json:"open_position,omitempty"`
	ArmedExit   *models.ArmedExit    `json:"armed_exit,omitempty"`
	Executions  int                  `json:"executions"`
	Performance models.Performance   `json:"performance"`
}

// gate is the state consulted before a new order may be proposed.
type gate struct {
	kill     *models.KillSwitch
	position *models.OpenPosition
	perf     models.Performance
	breach   *errors.RiskError
}

func (g *gate) blockers() []string {
	var out []string
	if g.kill != nil {
		out = append(out, ReasonKillSwitch)
	}
	if g.position != nil {
		out = append(out, ReasonPositionOpen)
	}
	if g.breach != nil {
		out = append(out, g.breach.Message)
	}
	return out
}

func (e *Engine) limits() risk.Limits {
	return risk.Limits{
		Equity:        e.cfg.Risk.AccountEquityUSD,
		RiskPerTrade:  e.cfg.Risk.RiskPerTrade,
		MaxDailyLoss:  e.cfg.Risk.MaxDailyLoss,
		MaxWeeklyLoss: e.cfg.Risk.MaxWeeklyLoss,
	}
}

// performanceTx derives day and week P&L from the ledger.
func (e *Engine) performanceTx(tx store.StateTx) (models.Performance, error) {
	now := e.now()
	trades, err := tx.ClosedTradesSince(utils.StartOfWeekUTC(now))
	if err != nil {
		return models.Performance{}, err
	}
	return risk.RollingPerformance(trades, e.cfg.Risk.AccountEquityUSD, now), nil
}

func (e *Engine) gateTx(tx store.StateTx) (*gate, error) {
	g := &gate{}
	var err error
	if g.kill, err = tx.KillSwitch(); err != nil {
		return nil, err
	}
	if g.position, err = tx.OpenPosition(); err != nil {
		return nil, err
	}
	if g.perf, err = e.performanceTx(tx); err != nil {
		return nil, err
	}
	if breach := risk.CheckGuards(g.perf.DayPnLPct, g.perf.WeekPnLPct, e.limits()); breach != nil {
		g.breach = breach
	}
	return g, nil
}

func (e *Engine) readGate(ctx context.Context) (*gate, error) {
	var g *gate
	err := e.store.View(ctx, func(tx store.StateTx) error {
		var err error
		g, err = e.gateTx(tx)
		return err
	})
	return g, err
}

func (e *Engine) fetchCandles(ctx context.Context) ([]models.Candle, error) {
	candles, err := e.market.GetCandles(ctx, e.cfg.Trading.Symbol, e.cfg.Trading.Timeframe, e.cfg.Market.CandleLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s %s candles", e.cfg.Trading.Symbol, e.cfg.Trading.Timeframe)
	}
	if err := e.store.SaveCandles(ctx, e.cfg.Trading.Symbol, e.cfg.Trading.Timeframe, candles); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to cache candles")
	}
	return candles, nil
}

func (e *Engine) orderParams() OrderParams {
	return OrderParams{
		Symbol:       e.cfg.Trading.Symbol,
		Mode:         models.TradingMode(e.cfg.Trading.Mode),
		Equity:       e.cfg.Risk.AccountEquityUSD,
		RiskPerTrade: e.cfg.Risk.RiskPerTrade,
		Leverage:     e.cfg.Trading.Leverage,
	}
}

// Evaluate runs the signal engine and, on a setup, replaces the pending order.
// Kill switch, an open position and loss guards refuse softly with NO_TRADE.
func (e *Engine) Evaluate(ctx context.Context) (*EvaluateResult, error) {
	if err := e.cfg.RequirePaper(); err != nil {
		return nil, err
	}
	logger := e.opLogger(ctx, "evaluate")

	g, err := e.readGate(ctx)
	if err != nil {
		return nil, err
	}
	res := &EvaluateResult{Status: models.StatusNoTrade, Performance: g.perf}
	if b := g.blockers(); len(b) > 0 {
		res.Reason = b[0]
		e.recordEvaluation(ctx, res)
		logging.LogVerdict(logger, string(res.Status), "", res.Reason, 0)
		return res, nil
	}

	candles, err := e.fetchCandles(ctx)
	if err != nil {
		return nil, err
	}
	v, err := e.signals.Evaluate(candles)
	if err != nil {
		return nil, err
	}
	res.Verdict = v
	res.Status = v.Status
	res.Reason = v.Reason

	if v.IsSetup() {
		if err := e.proposeOrder(ctx, res); err != nil {
			return nil, err
		}
	}

	e.recordEvaluation(ctx, res)
	logging.LogVerdict(logger, string(res.Status), string(v.Snapshot.Regime), res.Reason, v.Score)
	if res.Order != nil {
		logging.LogOrder(logger, res.Order.Symbol, string(res.Order.Side), "pending", res.Order.Entry, res.Order.SizeUSD)
	}
	return res, nil
}

// proposeOrder sizes the setup and writes it as the pending order, re-checking
// the gate inside the write transaction.
func (e *Engine) proposeOrder(ctx context.Context, res *EvaluateResult) error {
	order, err := BuildPendingOrder(res.Verdict.Signal, e.orderParams(), e.now())
	if err != nil {
		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			res.Status = models.StatusNoTrade
			res.Reason = ReasonZeroSize
			return nil
		}
		return err
	}

	return e.store.Update(ctx, func(tx store.StateTx) error {
		g, err := e.gateTx(tx)
		if err != nil {
			return err
		}
		res.Performance = g.perf
		if b := g.blockers(); len(b) > 0 {
			res.Status = models.StatusNoTrade
			res.Reason = b[0]
			return nil
		}

		existing, err := tx.PendingOrder()
		if err != nil {
			return err
		}
		if err := tx.SetPendingOrder(order); err != nil {
			return err
		}
		res.Order = order
		res.Replaced = existing != nil
		return tx.SetPerformance(g.perf)
	})
}

func (e *Engine) recordEvaluation(ctx context.Context, res *EvaluateResult) {
	detail, err := json.Marshal(res)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to encode evaluation")
		return
	}
	eval := &models.Evaluation{
		Timestamp:   e.now(),
		Symbol:      e.cfg.Trading.Symbol,
		Timeframe:   e.cfg.Trading.Timeframe,
		Status:      res.Status,
		Reason:      res.Reason,
		PendingMade: res.Order != nil,
		Detail:      string(detail),
	}
	if err := e.store.SaveEvaluation(ctx, eval); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to record evaluation")
	}
}

// Explain evaluates without touching state. With cached set it reads the last
// stored candle window instead of the network.
func (e *Engine) Explain(ctx context.Context, cached bool) (*Explanation, error) {
	g, err := e.readGate(ctx)
	if err != nil {
		return nil, err
	}

	var candles []models.Candle
	if cached {
		candles, err = e.store.GetCandles(ctx, e.cfg.Trading.Symbol, e.cfg.Trading.Timeframe, e.cfg.Market.CandleLimit)
	} else {
		candles, err = e.fetchCandles(ctx)
	}
	if err != nil {
		return nil, err
	}

	v, err := e.signals.Evaluate(candles)
	if err != nil {
		return nil, err
	}

	ex := &Explanation{
		Verdict:     v,
		Blockers:    g.blockers(),
		Performance: g.perf,
		Cached:      cached,
	}
	if v.IsSetup() {
		if order, err := BuildPendingOrder(v.Signal, e.orderParams(), e.now()); err == nil {
			ex.Order = order
		}
	}
	return ex, nil
}

// Pending returns the pending order, or nil.
func (e *Engine) Pending(ctx context.Context) (*models.PendingOrder, error) {
	var order *models.PendingOrder
	err := e.store.View(ctx, func(tx store.StateTx) error {
		var err error
		order, err = tx.PendingOrder()
		return err
	})
	return order, err
}

// Approve executes the pending order on paper and opens the position.
// The pending order is consumed even when the executor rejects it.
func (e *Engine) Approve(ctx context.Context) (*ApproveResult, error) {
	if err := e.cfg.RequirePaper(); err != nil {
		return nil, err
	}

	var res *ApproveResult
	var execErr error
	err := e.store.Update(ctx, func(tx store.StateTx) error {
		order, err := tx.PendingOrder()
		if err != nil {
			return err
		}
		if order == nil {
			return errors.ErrNoPendingOrder
		}
		open, err := tx.OpenPosition()
		if err != nil {
			return err
		}
		if open != nil {
			// The order is consumed either way; keep the delete committed.
			execErr = errors.ErrPositionOpen
			return tx.DeletePendingOrder()
		}

		rec, pos, err := e.executor.Execute(order)
		if err != nil {
			execErr = errors.Wrap(err, "executing pending order")
			return tx.DeletePendingOrder()
		}

		if err := tx.AppendExecution(rec); err != nil {
			return err
		}
		if err := tx.SetOpenPosition(pos); err != nil {
			return err
		}
		if err := tx.DeleteArmedExit(); err != nil {
			return err
		}
		if err := tx.DeletePendingOrder(); err != nil {
			return err
		}
		res = &ApproveResult{Execution: rec, Position: pos}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if execErr != nil {
		return nil, execErr
	}

	logging.LogFill(e.opLogger(ctx, "approve"), res.Position.Symbol, string(res.Position.Side),
		res.Execution.EntrySignal, res.Execution.EntryFill, res.Position.SizeUSD)
	return res, nil
}

// Deny discards the pending order.
func (e *Engine) Deny(ctx context.Context) (*models.PendingOrder, error) {
	var denied *models.PendingOrder
	err := e.store.Update(ctx, func(tx store.StateTx) error {
		order, err := tx.PendingOrder()
		if err != nil {
			return err
		}
		if order == nil {
			return errors.ErrNoPendingOrder
		}
		denied = order
		return tx.DeletePendingOrder()
	})
	if err != nil {
		return nil, err
	}
	logging.LogOrder(e.opLogger(ctx, "deny"), denied.Symbol, string(denied.Side), "denied", denied.Entry, denied.SizeUSD)
	return denied, nil
}

func (e *Engine) openPosition(ctx context.Context) (*models.OpenPosition, *models.ArmedExit, error) {
	var pos *models.OpenPosition
	var exit *models.ArmedExit
	err := e.store.View(ctx, func(tx store.StateTx) error {
		var err error
		if pos, err = tx.OpenPosition(); err != nil {
			return err
		}
		exit, err = tx.ArmedExit()
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if pos == nil {
		return nil, nil, errors.ErrNoOpenPosition
	}
	return pos, exit, nil
}

func (e *Engine) currentPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := e.market.GetPrice(ctx, symbol)
	if err != nil {
		return 0, errors.Wrapf(err, "fetching %s price", symbol)
	}
	return q.Price, nil
}

func validPercent(pct float64) error {
	if pct <= 0 || pct > 100 {
		return errors.NewValidationError("percent", pct, "must be in (0, 100]")
	}
	return nil
}

// closeTx applies one close inside tx: ledger append, position update or
// removal, and a fresh performance snapshot.
func (e *Engine) closeTx(tx store.StateTx, pos *models.OpenPosition, req CloseRequest) (*CloseResult, error) {
	out, err := ResolveClose(pos, req)
	if err != nil {
		return nil, err
	}
	out.Trade.ID = e.newID()

	if err := tx.AppendClosedTrade(&out.Trade); err != nil {
		return nil, err
	}
	if out.FullyClosed() {
		if err := tx.DeleteOpenPosition(); err != nil {
			return nil, err
		}
		if err := tx.DeleteArmedExit(); err != nil {
			return nil, err
		}
	} else if err := tx.SetOpenPosition(out.Position); err != nil {
		return nil, err
	}

	perf, err := e.performanceTx(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.SetPerformance(perf); err != nil {
		return nil, err
	}
	return &CloseResult{Trade: out.Trade, Position: out.Position}, nil
}

// opLogger returns the logger carried by ctx, or the engine logger, tagged with op.
func (e *Engine) opLogger(ctx context.Context, op string) zerolog.Logger {
	return logging.WithOperation(logging.FromContext(ctx, e.logger), op)
}

// afterClose journals a committed close.
func (e *Engine) afterClose(ctx context.Context, op string, res *CloseResult) {
	logger := e.opLogger(ctx, op)
	t := res.Trade
	logging.LogClose(logger, t.Symbol, string(t.Reason), t.ExitPrice, t.Percent, t.ResultR, t.FullyClosed)

	if e.journal == nil {
		return
	}
	m, err := e.journal.Append(&t)
	if err != nil {
		res.JournalErr = err
		logger.Error().Err(err).Str("trade_id", t.ID).Msg("Trade committed but journal update failed")
		return
	}
	res.Metrics = m
}

// Close closes percent of the initial size at price, or at the current market
// price when price is zero.
func (e *Engine) Close(ctx context.Context, price, percent float64) (*CloseResult, error) {
	if err := e.cfg.RequirePaper(); err != nil {
		return nil, err
	}
	if err := validPercent(percent); err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, errors.NewValidationError("price", price, "must be positive")
	}

	pos, _, err := e.openPosition(ctx)
	if err != nil {
		return nil, err
	}
	if price == 0 {
		if price, err = e.currentPrice(ctx, pos.Symbol); err != nil {
			return nil, err
		}
	}

	var res *CloseResult
	err = e.store.Update(ctx, func(tx store.StateTx) error {
		pos, err := tx.OpenPosition()
		if err != nil {
			return err
		}
		if pos == nil {
			return errors.ErrNoOpenPosition
		}
		res, err = e.closeTx(tx, pos, CloseRequest{
			ExitPrice: price,
			Reason:    models.CloseManual,
			Percent:   percent,
			At:        e.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.afterClose(ctx, "close", res)
	return res, nil
}

// ArmExit arms a take-profit or stop-loss on the open position. When the
// trigger is already satisfied the close happens immediately instead.
func (e *Engine) ArmExit(ctx context.Context, t models.ExitType, percent float64) (*ExitResult, error) {
	if err := e.cfg.RequirePaper(); err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, errors.NewValidationError("type", t, "must be tp or sl")
	}
	if err := validPercent(percent); err != nil {
		return nil, err
	}

	pos, _, err := e.openPosition(ctx)
	if err != nil {
		return nil, err
	}
	price, err := e.currentPrice(ctx, pos.Symbol)
	if err != nil {
		return nil, err
	}

	res := &ExitResult{Price: price, Side: pos.Side}
	err = e.store.Update(ctx, func(tx store.StateTx) error {
		pos, err := tx.OpenPosition()
		if err != nil {
			return err
		}
		if pos == nil {
			return errors.ErrNoOpenPosition
		}

		exit := &models.ArmedExit{
			Type:    t,
			Target:  ExitTarget(t, pos),
			Percent: percent,
			ArmedAt: e.now(),
		}
		res.Exit = exit

		if !ExitTriggered(t, pos.Side, exit.Target, price) {
			return tx.SetArmedExit(exit)
		}

		res.Triggered = true
		if res.Close, err = e.closeTx(tx, pos, CloseRequest{
			ExitPrice: price,
			Reason:    models.CloseReason(t),
			Percent:   percent,
			At:        e.now(),
		}); err != nil {
			return err
		}
		return tx.DeleteArmedExit()
	})
	if err != nil {
		return nil, err
	}

	if res.Triggered {
		e.afterClose(ctx, "arm_exit", res.Close)
	} else {
		e.logger.Info().
			Str("type", string(t)).
			Float64("target", res.Exit.Target).
			Float64("current", price).
			Float64("percent", percent).
			Msg("Exit armed")
	}
	return res, nil
}

// Monitor re-checks the armed exit once against the current price.
func (e *Engine) Monitor(ctx context.Context) (*ExitResult, error) {
	if err := e.cfg.RequirePaper(); err != nil {
		return nil, err
	}

	pos, exit, err := e.openPosition(ctx)
	if err != nil {
		return nil, err
	}
	if exit == nil {
		return &ExitResult{Side: pos.Side, Message: errors.ErrNoArmedExit.Error()}, nil
	}

	price, err := e.currentPrice(ctx, pos.Symbol)
	if err != nil {
		return nil, err
	}
	res := &ExitResult{Exit: exit, Side: pos.Side, Price: price}
	if !ExitTriggered(exit.Type, pos.Side, exit.Target, price) {
		res.Message = "waiting"
		return res, nil
	}

	err = e.store.Update(ctx, func(tx store.StateTx) error {
		pos, err := tx.OpenPosition()
		if err != nil {
			return err
		}
		if pos == nil {
			return errors.ErrNoOpenPosition
		}
		armed, err := tx.ArmedExit()
		if err != nil {
			return err
		}
		if armed == nil {
			res.Exit = nil
			res.Message = errors.ErrNoArmedExit.Error()
			return nil
		}

		res.Exit = armed
		if !ExitTriggered(armed.Type, pos.Side, armed.Target, price) {
			res.Message = "waiting"
			return nil
		}
		res.Triggered = true
		if res.Close, err = e.closeTx(tx, pos, CloseRequest{
			ExitPrice: price,
			Reason:    models.CloseReason(armed.Type),
			Percent:   armed.Percent,
			At:        e.now(),
		}); err != nil {
			return err
		}
		return tx.DeleteArmedExit()
	})
	if err != nil {
		return nil, err
	}

	if res.Triggered {
		e.afterClose(ctx, "monitor", res.Close)
	}
	return res, nil
}

// SetKillSwitch turns the kill switch on or off. It only affects new orders.
func (e *Engine) SetKillSwitch(ctx context.Context, on bool) (*models.KillSwitch, error) {
	var ks *models.KillSwitch
	err := e.store.Update(ctx, func(tx store.StateTx) error {
		if !on {
			return tx.DeleteKillSwitch()
		}
		ks = &models.KillSwitch{Enabled: true, At: e.now()}
		return tx.SetKillSwitch(ks)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Warn().Bool("enabled", on).Msg("Kill switch updated")
	return ks, nil
}

// Status reads a summary of the persisted state.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	rep := &StatusReport{
		Mode:      models.TradingMode(e.cfg.Trading.Mode),
		Symbol:    e.cfg.Trading.Symbol,
		Timeframe: e.cfg.Trading.Timeframe,
	}
	err := e.store.View(ctx, func(tx store.StateTx) error {
		var err error
		if rep.KillSwitch, err = tx.KillSwitch(); err != nil {
			return err
		}
		if rep.Pending, err = tx.PendingOrder(); err != nil {
			return err
		}
		if rep.Position, err = tx.OpenPosition(); err != nil {
			return err
		}
		if rep.ArmedExit, err = tx.ArmedExit(); err != nil {
			return err
		}
		if rep.Executions, err = tx.CountExecutions(); err != nil {
			return err
		}
		rep.Performance, err = tx.Performance()
		return err
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}
