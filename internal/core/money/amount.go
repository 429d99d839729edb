// Package money provides exact decimal arithmetic for FCFA amounts.
//
// Every monetary field in the system goes through this package. Three
// declared scales are used: 2 for persisted FCFA fields, 6 for the social
// accumulator and 18 for raw micro-impact values. Binary floats are never
// used for money.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Declared scales for monetary computation.
const (
	ScaleFCFA        = 2
	ScaleAccumulator = 6
	ScaleMicroImpact = 18
)

// Amount is an exact FCFA amount.
type Amount struct {
	dec decimal.Decimal
}

// Zero is the zero FCFA amount.
var Zero = Amount{}

// New creates an Amount from an integer number of francs.
func New(francs int64) Amount {
	return Amount{dec: decimal.NewFromInt(francs)}
}

// NewFromString parses a decimal string into an Amount.
func NewFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{dec: d}, nil
}

// MustParse parses a decimal string and panics on error. Test helper and
// constant-table use only.
func MustParse(s string) Amount {
	a, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal wraps a decimal.Decimal.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{dec: d}
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.dec
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{dec: a.dec.Add(b.dec)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{dec: a.dec.Sub(b.dec)}
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount {
	return Amount{dec: a.dec.Mul(b.dec)}
}

// MulRatio multiplies by a rate expressed as a decimal string, e.g. "0.05".
func (a Amount) MulRatio(rate string) Amount {
	return Amount{dec: a.dec.Mul(decimal.RequireFromString(rate))}
}

// MulInt multiplies by an integer quantity.
func (a Amount) MulInt(n int64) Amount {
	return Amount{dec: a.dec.Mul(decimal.NewFromInt(n))}
}

// Div returns a / b.
func (a Amount) Div(b Amount) Amount {
	return Amount{dec: a.dec.Div(b.dec)}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{dec: a.dec.Neg()}
}

// Abs returns |a|.
func (a Amount) Abs() Amount {
	return Amount{dec: a.dec.Abs()}
}

// Round returns the amount rounded half-up to the given scale.
func (a Amount) Round(scale int32) Amount {
	return Amount{dec: a.dec.Round(scale)}
}

// RoundFCFA rounds to the persisted FCFA scale (2 decimals).
func (a Amount) RoundFCFA() Amount {
	return a.Round(ScaleFCFA)
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.dec.Cmp(b.dec)
}

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.dec.Cmp(b.dec) < 0 }

// GreaterThan reports a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.dec.Cmp(b.dec) > 0 }

// GreaterThanOrEqual reports a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.dec.Cmp(b.dec) >= 0 }

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.dec.IsZero() }

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool { return a.dec.IsNegative() }

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool { return a.dec.IsPositive() }

// Clamp limits a to the inclusive range [lo, hi].
func (a Amount) Clamp(lo, hi Amount) Amount {
	if a.LessThan(lo) {
		return lo
	}
	if a.GreaterThan(hi) {
		return hi
	}
	return a
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// String renders the amount at full precision.
func (a Amount) String() string {
	return a.dec.String()
}

// StringFCFA renders the amount at the persisted 2-decimal scale.
func (a Amount) StringFCFA() string {
	return a.dec.StringFixed(ScaleFCFA)
}

// MarshalJSON renders the amount as a JSON string at FCFA scale.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.StringFCFA() + `"`), nil
}

// UnmarshalJSON parses either a JSON string or number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	a.dec = d
	return nil
}
