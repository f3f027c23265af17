package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestConverter(t *testing.T) *Converter {
	t.Helper()
	c, err := NewConverter("usd", map[string]decimal.Decimal{
		"eur": dec("0.92"),
		"NGN": dec("1550"),
	})
	require.NoError(t, err)
	return c
}

func TestConvert(t *testing.T) {
	c := newTestConverter(t)
	assert.Equal(t, "USD", c.Base())

	got, err := c.ToBase(dec("92"), "EUR")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("100")), "got %s", got)

	got, err = c.FromBase(dec("10.50"), "ngn")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("16275")), "got %s", got)

	got, err = c.ToBase(dec("12.34"), "")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("12.34")), "empty code means base")
}

func TestConvertUnknown(t *testing.T) {
	c := newTestConverter(t)
	_, err := c.ToBase(dec("1"), "JPY")
	assert.ErrorIs(t, err, ErrUnknownCurrency)
	assert.False(t, c.Supports("JPY"))
	assert.True(t, c.Supports("eur"))
}

func TestNewConverterRejectsBadRates(t *testing.T) {
	_, err := NewConverter("USD", map[string]decimal.Decimal{"EUR": decimal.Zero})
	assert.Error(t, err)

	_, err = NewConverter(" ", nil)
	assert.Error(t, err)
}
