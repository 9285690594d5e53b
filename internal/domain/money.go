package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Money is an amount expressed in currency minor units (kobo, cents).
// All waterfall and ledger arithmetic happens on Money so that sums stay exact
// across any number of accumulated payments.
type Money int64

// DefaultCurrency is used when a schedule does not name one
const DefaultCurrency = "NGN"

// Decimal returns the amount as a decimal count of minor units
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m))
}

// String renders the raw minor-unit count, the wire representation
func (m Money) String() string {
	return strconv.FormatInt(int64(m), 10)
}

// ParseMoney parses a wire value of integer minor units
func ParseMoney(s string) (Money, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Money(v), nil
}

// MulRate multiplies the amount by a rate and rounds to the nearest minor unit,
// halves rounding up.
func (m Money) MulRate(rate decimal.Decimal) Money {
	// decimal.Round rounds halves away from zero, which is half-up for the
	// non-negative amounts the waterfall works with.
	return Money(m.Decimal().Mul(rate).Round(0).IntPart())
}
