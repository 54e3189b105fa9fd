// Package quantity holds the fixed-scale decimal rules shared by money and stock amounts.
package quantity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// UnitStock is the unit of discrete warehouse stock.
const UnitStock = "stock-units"

const (
	MoneyScale int32 = 6
	StockScale int32 = 0
)

// Bounds of the numeric(38,6) balance column. Literals beyond them are
// rejected before any rounding, since rescaling a huge exponent is unbounded work.
const (
	MaxIntegerDigits  = 32
	MaxFractionDigits = 32
	maxLiteralLength  = 80
)

// ErrOutOfRange is returned for values the ledger cannot store.
var ErrOutOfRange = errors.New("quantity out of range")

// ScaleFor returns the number of fractional digits kept for unit.
func ScaleFor(unit string) int32 {
	if unit == UnitStock {
		return StockScale
	}
	return MoneyScale
}

// NormalizeUnit upper-cases currency codes and leaves the stock unit alone.
func NormalizeUnit(unit string) string {
	unit = strings.TrimSpace(unit)
	if unit == UnitStock {
		return unit
	}
	return strings.ToUpper(unit)
}

// Quantize rounds d half-up to the scale of unit. Half-up equals shopspring's
// half-away-from-zero for the non-negative values a ledger accepts.
func Quantize(d decimal.Decimal, unit string) decimal.Decimal {
	return d.Round(ScaleFor(unit))
}

// Parse reads a decimal literal. Floats are never involved.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxLiteralLength {
		return decimal.Zero, fmt.Errorf("parse quantity: %w: literal longer than %d characters", ErrOutOfRange, maxLiteralLength)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	if err := CheckRange(d); err != nil {
		return decimal.Zero, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return d, nil
}

// CheckRange rejects values with more than MaxIntegerDigits integer digits or
// more than MaxFractionDigits fractional digits. It only inspects the exponent
// and coefficient length, so it is cheap for any input.
func CheckRange(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < -int64(MaxFractionDigits) {
		return fmt.Errorf("%w: more than %d fractional digits", ErrOutOfRange, MaxFractionDigits)
	}
	if d.IsZero() {
		return nil
	}
	if int64(d.NumDigits())+exp > MaxIntegerDigits {
		return fmt.Errorf("%w: more than %d integer digits", ErrOutOfRange, MaxIntegerDigits)
	}
	return nil
}

// Positive reports whether d, quantized to unit, is strictly greater than zero.
// It returns the quantized value either way. Out-of-range values are reported
// as not positive and returned unchanged.
func Positive(d decimal.Decimal, unit string) (decimal.Decimal, bool) {
	if CheckRange(d) != nil {
		return d, false
	}
	q := Quantize(d, unit)
	return q, q.IsPositive()
}
