package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "trader.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStateRecords_SetGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	order := &models.PendingOrder{
		Symbol: "BTCUSDT", Side: models.SideLong, Entry: 100, Stop: 98, TP1: 105.6,
		RR: 2.8, SizeUSD: 5000, Mode: models.ModePaper,
	}

	require.NoError(t, s.Update(ctx, func(tx StateTx) error {
		got, err := tx.PendingOrder()
		require.NoError(t, err)
		assert.Nil(t, got, "missing record reads as nil")
		return tx.SetPendingOrder(order)
	}))

	require.NoError(t, s.View(ctx, func(tx StateTx) error {
		got, err := tx.PendingOrder()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, order.Symbol, got.Symbol)
		assert.Equal(t, order.SizeUSD, got.SizeUSD)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx StateTx) error {
		return tx.DeletePendingOrder()
	}))

	require.NoError(t, s.View(ctx, func(tx StateTx) error {
		got, err := tx.PendingOrder()
		assert.NoError(t, err)
		assert.Nil(t, got)
		return nil
	}))
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx StateTx) error {
		require.NoError(t, tx.SetOpenPosition(&models.OpenPosition{Symbol: "BTCUSDT", SizeUSD: 5000}))
		require.NoError(t, tx.AppendExecution(&models.ExecutionRecord{ID: "exec-1", Symbol: "BTCUSDT", ExecutedAt: time.Now()}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx StateTx) error {
		pos, err := tx.OpenPosition()
		require.NoError(t, err)
		assert.Nil(t, pos)
		n, err := tx.CountExecutions()
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		return nil
	}))
}

func TestCorruptAuthoritativeRecordIsFatal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)`, KeyOpenPosition, "{not json", time.Now())
	require.NoError(t, err)

	err = s.View(ctx, func(tx StateTx) error {
		_, err := tx.OpenPosition()
		return err
	})
	assert.ErrorIs(t, err, errors.ErrCorruptState)

	var stateErr *errors.StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, KeyOpenPosition, stateErr.Record)
}

func TestCorruptPerformanceFallsBackToZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)`, KeyPerformance, "garbage", time.Now())
	require.NoError(t, err)

	require.NoError(t, s.View(ctx, func(tx StateTx) error {
		perf, err := tx.Performance()
		assert.NoError(t, err)
		assert.Equal(t, models.Performance{}, perf)
		return nil
	}))
}

func TestClosedTradeLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Update(ctx, func(tx StateTx) error {
		for i, r := range []float64{2.0, -1.0, 1.5} {
			err := tx.AppendClosedTrade(&models.ClosedTrade{
				ID:          string(rune('a' + i)),
				ClosedAt:    base.Add(time.Duration(i) * 24 * time.Hour),
				Reason:      models.CloseManual,
				Symbol:      "BTCUSDT",
				Side:        models.SideLong,
				Setup:       "V2.1 long: trend + reclaim",
				Confidence:  models.ConfidenceHigh,
				EntryFill:   100,
				ExitPrice:   100 + 2*r,
				Stop:        98,
				Percent:     100,
				ResultR:     r,
				FullyClosed: i == 2,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := s.GetClosedTrades(ctx, TradeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []float64{2.0, -1.0, 1.5}, []float64{all[0].ResultR, all[1].ResultR, all[2].ResultR})
	assert.True(t, all[2].FullyClosed)
	assert.Equal(t, models.ConfidenceHigh, all[0].Confidence)
	assert.True(t, all[0].ClosedAt.Equal(base))

	recent, err := s.GetClosedTrades(ctx, TradeFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, -1.0, recent[0].ResultR, "limit keeps the newest, oldest first")

	require.NoError(t, s.View(ctx, func(tx StateTx) error {
		since, err := tx.ClosedTradesSince(base.Add(24 * time.Hour))
		require.NoError(t, err)
		assert.Len(t, since, 2)
		return nil
	}))
}

func TestExecutionLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(ctx, func(tx StateTx) error {
			return tx.AppendExecution(&models.ExecutionRecord{
				ID:          string(rune('x' + i)),
				ExecutedAt:  time.Now(),
				Mode:        models.ModePaper,
				Symbol:      "BTCUSDT",
				Side:        models.SideShort,
				EntrySignal: 100,
				EntryFill:   99.97,
				SlippageBps: 3,
			})
		}))
	}

	execs, err := s.GetExecutions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	assert.Equal(t, models.ModePaper, execs[0].Mode)
	assert.Equal(t, 99.97, execs[0].EntryFill)

	require.NoError(t, s.View(ctx, func(tx StateTx) error {
		n, err := tx.CountExecutions()
		assert.Equal(t, 3, n)
		return err
	}))
}

func TestEvaluations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1 := &models.Evaluation{Timestamp: time.Now(), Symbol: "BTCUSDT", Timeframe: "15m", Status: models.StatusNoTrade, Reason: "Range regime (skip)"}
	e2 := &models.Evaluation{Timestamp: time.Now(), Symbol: "BTCUSDT", Timeframe: "15m", Status: models.StatusSetup, PendingMade: true, Detail: `{"score":7}`}
	require.NoError(t, s.SaveEvaluation(ctx, e1))
	require.NoError(t, s.SaveEvaluation(ctx, e2))
	assert.Greater(t, e2.ID, e1.ID)

	evals, err := s.GetEvaluations(ctx, EvaluationFilter{Status: models.StatusSetup})
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.True(t, evals[0].PendingMade)
	assert.Equal(t, `{"score":7}`, evals[0].Detail)
}
