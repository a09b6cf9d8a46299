// Package core provides money parsing and handling utilities.
//
// Money wraps an arbitrary-precision decimal so that apportionment results
// are reproducible across runs and platforms. Values are only rounded to
// cents when they are rendered.
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a euro amount.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromInt creates a whole-euro amount.
func MoneyFromInt(euros int64) Money {
	return Money{d: decimal.NewFromInt(euros)}
}

// MoneyFromCents creates an amount from integer cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MoneyFromFloat converts a float literal (seed files, spreadsheets).
// Use sparingly: floats are converted through their shortest decimal form.
func MoneyFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

// ParseAmount parses a decimal string. Both dot (12.34) and comma (12,34)
// separators are accepted. Negative values are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.345, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Mul multiplies by a dimensionless factor.
func (m Money) Mul(f decimal.Decimal) Money { return Money{d: m.d.Mul(f)} }

// MulRatio returns m*num/den. Multiplication happens first to keep
// exact results exact.
func (m Money) MulRatio(num, den decimal.Decimal) Money {
	return Money{d: m.d.Mul(num).Div(den)}
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) Cmp(o Money) int  { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// Round returns the amount rounded half-up to cents.
func (m Money) Round() Money { return Money{d: m.d.Round(2)} }

// String renders the amount with two decimals ("1234.50").
func (m Money) String() string { return m.d.StringFixed(2) }

// Euros renders the amount German style ("1.234,50 €").
func (m Money) Euros() string {
	s := m.d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac + " €"
	if m.d.IsNegative() {
		return "-" + out
	}
	return out
}

// Validate rejects negative amounts. Zero is a valid amount.
func (m Money) Validate() error {
	if m.d.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a JSON number with full precision.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts numbers and quoted strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	m.d = d
	return nil
}

// MarshalYAML encodes the amount as its decimal string.
func (m Money) MarshalYAML() (any, error) {
	return m.d.String(), nil
}

// UnmarshalYAML accepts scalars such as 180 or "180.50".
func (m *Money) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	m.d = d
	return nil
}

// Sum adds all amounts.
func Sum(ms ...Money) Money {
	total := Zero
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}

var _ json.Marshaler = Money{}
