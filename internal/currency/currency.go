// Package currency converts between the platform base currency and the
// currencies users type amounts in, using a static table of approximate
// rates.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency is returned for a currency with no configured rate.
var ErrUnknownCurrency = errors.New("unknown currency")

// Converter holds rates expressed as units of a currency per one unit of
// the base currency.
type Converter struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewConverter builds a Converter. The base currency always has rate 1 and
// non-positive rates are rejected.
func NewConverter(base string, rates map[string]decimal.Decimal) (*Converter, error) {
	base = Normalize(base)
	if base == "" {
		return nil, errors.New("base currency is required")
	}
	c := &Converter{base: base, rates: map[string]decimal.Decimal{base: decimal.NewFromInt(1)}}
	for code, rate := range rates {
		code = Normalize(code)
		if code == base {
			continue
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", code, rate)
		}
		c.rates[code] = rate
	}
	return c, nil
}

// Base returns the base currency code.
func (c *Converter) Base() string {
	return c.base
}

// Supports reports whether code has a rate.
func (c *Converter) Supports(code string) bool {
	_, ok := c.rates[Normalize(code)]
	return ok
}

// ToBase converts amount in code into the base currency, rounded to cents.
func (c *Converter) ToBase(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	rate, err := c.rate(code)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.DivRound(rate, 8).Round(2), nil
}

// FromBase converts a base-currency amount into code, rounded to cents.
func (c *Converter) FromBase(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	rate, err := c.rate(code)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Round(2), nil
}

func (c *Converter) rate(code string) (decimal.Decimal, error) {
	code = Normalize(code)
	if code == "" {
		code = c.base
	}
	r, ok := c.rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	return r, nil
}

// Normalize upper-cases and trims a currency code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DefaultRates is the approximate rate table shipped with a new project,
// relative to USD.
func DefaultRates() map[string]string {
	return map[string]string{
		"EUR": "0.92",
		"GBP": "0.79",
		"CAD": "1.36",
		"NGN": "1550",
		"KES": "129",
		"INR": "83.5",
	}
}
