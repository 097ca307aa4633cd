package domain

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrAmountOutOfRange = errors.New("amount out of range")

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// Amount is a currency value in minor units (cents). JSON carries it as a
// decimal number of major units so 5998 is written as 59.98.
type Amount int64

// FromDecimal converts major units to minor units, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Mul(hundred).Round(0).IntPart())
}

// ParseDecimal is FromDecimal for untrusted input: it fails instead of
// wrapping when the minor-unit value does not fit in an int64.
func ParseDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Mul(hundred).Round(0)
	if minor.GreaterThan(maxAmount) || minor.LessThan(minAmount) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, d.String())
	}
	return Amount(minor.IntPart()), nil
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// Percent returns p percent of a, rounded half away from zero.
func (a Amount) Percent(p int) Amount {
	return FromDecimal(a.Decimal().Mul(decimal.NewFromInt(int64(p))).Div(hundred))
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode amount %s: %w", data, err)
	}

	amount, err := ParseDecimal(d)
	if err != nil {
		return err
	}
	*a = amount
	return nil
}
