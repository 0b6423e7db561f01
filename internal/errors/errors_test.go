package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))

	err := Wrap(ErrConnectionFailed, "fetching price")
	assert.EqualError(t, err, "fetching price: connection failed")
	assert.True(t, Is(err, ErrConnectionFailed))

	err = Wrapf(ErrRateLimited, "fetching %s %s candles", "BTCUSDT", "15m")
	assert.EqualError(t, err, "fetching BTCUSDT 15m candles: rate limited")
	assert.True(t, Is(err, ErrRateLimited))
}

func TestTypedErrorsUnwrap(t *testing.T) {
	verr := NewValidationError("percent", 150, "must be in (0, 100]")
	assert.True(t, Is(verr, ErrInputValidation))

	var target *ValidationError
	assert.True(t, As(Wrap(verr, "close"), &target))
	assert.Equal(t, "percent", target.Field)

	serr := NewCorruptStateError("open_position", New("unexpected end of JSON input"))
	assert.True(t, Is(serr, ErrCorruptState))
}
