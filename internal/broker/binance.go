package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"signal-trader/internal/errors"
	"signal-trader/internal/logging"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

const (
	defaultBinanceBase = "https://api.binance.com"
	klinesPath         = "/api/v3/klines"
	tickerPricePath    = "/api/v3/ticker/price"

	// Binance rejects kline requests above this limit.
	maxKlineLimit = 1000
)

// BinanceConfig holds configuration for the Binance REST client.
type BinanceConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	Logger            zerolog.Logger
}

// BinanceClient reads public spot market data from the Binance REST API.
type BinanceClient struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	retry   utils.RetryConfig
	logger  zerolog.Logger
}

// NewBinanceClient creates a new Binance market data client.
func NewBinanceClient(cfg BinanceConfig) *BinanceClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBinanceBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	retry := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	retry.Retryable = func(err error) bool {
		return errors.Is(err, errors.ErrConnectionFailed) || errors.Is(err, errors.ErrRateLimited)
	}

	return &BinanceClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry:   retry,
		logger:  cfg.Logger.With().Str("component", "binance").Logger(),
	}
}

// GetCandles fetches klines for symbol/interval.
func (c *BinanceClient) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if limit <= 0 || limit > maxKlineLimit {
		return nil, errors.NewValidationError("limit", limit, fmt.Sprintf("must be between 1 and %d", maxKlineLimit))
	}

	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]any
	if err := c.get(ctx, klinesPath, q, &rows); err != nil {
		return nil, errors.NewDataError("candles", symbol, "fetch klines", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, errors.NewDataError("candles", symbol, fmt.Sprintf("kline %d", i), err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// GetPrice fetches the latest traded price for symbol.
func (c *BinanceClient) GetPrice(ctx context.Context, symbol string) (*models.Quote, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.get(ctx, tickerPricePath, q, &resp); err != nil {
		return nil, errors.NewDataError("price", symbol, "fetch ticker", err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil || price <= 0 {
		return nil, errors.NewDataError("price", symbol, fmt.Sprintf("invalid price %q", resp.Price), err)
	}

	return &models.Quote{
		Symbol:    resp.Symbol,
		Price:     price,
		Timestamp: time.Now().UTC(),
	}, nil
}

// get performs a rate-limited GET with bounded retry and decodes JSON into out.
func (c *BinanceClient) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()

	return utils.Retry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		start := time.Now()
		err := c.do(ctx, endpoint, out)
		logging.LogAPICall(c.logger, http.MethodGet, path, time.Since(start), err)
		return err
	})
}

func (c *BinanceClient) do(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418:
		return fmt.Errorf("%w: status %d", errors.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: server error %d", errors.ErrConnectionFailed, resp.StatusCode)
	case resp.StatusCode >= 400:
		return apiError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError maps a Binance 4xx payload such as {"code":-1121,"msg":"Invalid symbol."}.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Code == -1121 {
		return fmt.Errorf("%w: %s", errors.ErrSymbolNotFound, payload.Msg)
	}
	return fmt.Errorf("client error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// parseKline decodes [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []any) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("open time: unexpected type %T", row[0])
	}

	var vals [5]float64
	for i := range vals {
		v, err := parseNumber(row[i+1])
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}

	return models.Candle{
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func parseNumber(v any) (float64, error) {
	switch n := v.(type) {
	case string:
		return strconv.ParseFloat(n, 64)
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
