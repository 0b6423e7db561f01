package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	var scoped, fallback bytes.Buffer
	scopedLogger := zerolog.New(&scoped)
	fallbackLogger := zerolog.New(&fallback)

	ctx := WithLogger(context.Background(), scopedLogger)
	scopedFromCtx := FromContext(ctx, fallbackLogger)
	scopedFromCtx.Info().Msg("scoped")
	assert.Contains(t, scoped.String(), "scoped")
	assert.Empty(t, fallback.String())

	fallbackFromCtx := FromContext(context.Background(), fallbackLogger)
	fallbackFromCtx.Info().Msg("fallback")
	assert.Contains(t, fallback.String(), "fallback")
}

func TestOperationAndSymbolFields(t *testing.T) {
	var buf bytes.Buffer
	logger := WithOperation(WithSymbol(zerolog.New(&buf), "BTCUSDT"), "monitor")

	LogClose(logger, "BTCUSDT", "tp", 105.6, 40, 2.74, false)

	out := buf.String()
	assert.Contains(t, out, `"symbol":"BTCUSDT"`)
	assert.Contains(t, out, `"operation":"monitor"`)
	assert.Contains(t, out, `"event":"close"`)
}

func TestNewLoggerWithConfig_WritesFile(t *testing.T) {
	cfg := DefaultLogConfig()
	cfg.Console = false
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "trader.log")

	logger := NewLoggerWithConfig(cfg)
	logger.Info().Str("event", "startup").Msg("ready")

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"startup"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}
