package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/errors"
)

func newTestClient(srv *httptest.Server) *BinanceClient {
	c := NewBinanceClient(BinanceConfig{
		BaseURL:           srv.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		MaxRetries:        3,
		Logger:            zerolog.Nop(),
	})
	c.retry.InitialDelay = time.Millisecond
	return c
}

func TestGetCandles_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinesPath, r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1767225600000,"100.10","101.00","99.50","100.80","12.5",1767226499999,"1260.0",42,"6.1","615.0","0"],
			[1767226500000,"100.80","102.20","100.70","102.00","20.0",1767227399999,"2040.0",51,"11.0","1120.0","0"]
		]`))
	}))
	defer srv.Close()

	candles, err := newTestClient(srv).GetCandles(context.Background(), "btcusdt", "15m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, time.UnixMilli(1767225600000).UTC(), candles[0].Timestamp)
	assert.Equal(t, 100.10, candles[0].Open)
	assert.Equal(t, 101.00, candles[0].High)
	assert.Equal(t, 99.50, candles[0].Low)
	assert.Equal(t, 100.80, candles[0].Close)
	assert.Equal(t, 12.5, candles[0].Volume)
	assert.Equal(t, 102.00, candles[1].Close)
}

func TestGetPrice_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tickerPricePath, r.URL.Path)
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"64123.45000000"}`))
	}))
	defer srv.Close()

	q, err := newTestClient(srv).GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", q.Symbol)
	assert.Equal(t, 64123.45, q.Price)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"1.5"}`))
	}))
	defer srv.Close()

	q, err := newTestClient(srv).GetPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1.5, q.Price)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_ExhaustedRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetPrice(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, errors.ErrRateLimited)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_InvalidSymbolIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetCandles(context.Background(), "NOPE", "15m", 250)
	assert.ErrorIs(t, err, errors.ErrSymbolNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var dataErr *errors.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "candles", dataErr.DataType)
}

func TestGetCandles_RejectsBadLimit(t *testing.T) {
	c := NewBinanceClient(BinanceConfig{Logger: zerolog.Nop()})
	_, err := c.GetCandles(context.Background(), "BTCUSDT", "15m", 0)
	assert.ErrorIs(t, err, errors.ErrInputValidation)
}
