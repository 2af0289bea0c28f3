package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// DecimalPlaces is the fixed-point precision of Decimal.
const DecimalPlaces = 18

var (
	// ErrDecimalOverflow is returned when a fixed-point result exceeds 256 bits.
	ErrDecimalOverflow = errors.New("decimal: overflow")
	// ErrDivideByZero is returned when a ratio has a zero denominator.
	ErrDivideByZero = errors.New("decimal: division by zero")
)

// DecimalFractional is 10^18, the atomics of Decimal one.
var DecimalFractional = uint256.NewInt(1_000_000_000_000_000_000)

// Decimal is an unsigned fixed-point number with 18 fractional digits backed
// by a 256-bit integer of atomics.
type Decimal struct {
	atomics uint256.Int
}

// NewDecimalFromAtomics interprets v as atomics (value × 10^18).
func NewDecimalFromAtomics(v *uint256.Int) Decimal {
	var d Decimal
	if v != nil {
		d.atomics.Set(v)
	}
	return d
}

// DecimalOne returns 1.0.
func DecimalOne() Decimal {
	return NewDecimalFromAtomics(DecimalFractional)
}

// DecimalPercent returns p / 100.
func DecimalPercent(p uint64) Decimal {
	atomics := new(uint256.Int).Mul(uint256.NewInt(p), uint256.NewInt(10_000_000_000_000_000))
	return NewDecimalFromAtomics(atomics)
}

// DecimalPermille returns p / 1000.
func DecimalPermille(p uint64) Decimal {
	atomics := new(uint256.Int).Mul(uint256.NewInt(p), uint256.NewInt(1_000_000_000_000_000))
	return NewDecimalFromAtomics(atomics)
}

// DecimalFromRatio returns floor(num × 10^18 / den).
func DecimalFromRatio(num, den *uint256.Int) (Decimal, error) {
	if den == nil || den.IsZero() {
		return Decimal{}, ErrDivideByZero
	}
	if num == nil {
		return Decimal{}, nil
	}
	atomics, overflow := new(uint256.Int).MulDivOverflow(num, DecimalFractional, den)
	if overflow {
		return Decimal{}, ErrDecimalOverflow
	}
	return NewDecimalFromAtomics(atomics), nil
}

// ParseDecimal parses a non-negative decimal string with at most 18
// fractional digits.
func ParseDecimal(s string) (Decimal, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	if parsed.IsNegative() {
		return Decimal{}, fmt.Errorf("parse decimal %q: negative value", s)
	}
	scaled := parsed.Shift(DecimalPlaces)
	if !scaled.IsInteger() {
		return Decimal{}, fmt.Errorf("parse decimal %q: more than %d fractional digits", s, DecimalPlaces)
	}
	atomics, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return Decimal{}, ErrDecimalOverflow
	}
	return NewDecimalFromAtomics(atomics), nil
}

// MustParseDecimal panics on malformed input.
func MustParseDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Atomics returns a copy of the underlying integer.
func (d Decimal) Atomics() *uint256.Int {
	return new(uint256.Int).Set(&d.atomics)
}

func (d Decimal) IsZero() bool { return d.atomics.IsZero() }

func (d Decimal) Cmp(other Decimal) int { return d.atomics.Cmp(&other.atomics) }

func (d Decimal) Equal(other Decimal) bool { return d.atomics.Eq(&other.atomics) }

// MulInt returns floor(x × d).
func (d Decimal) MulInt(x *uint256.Int) (*uint256.Int, error) {
	if x == nil {
		return new(uint256.Int), nil
	}
	product, overflow := new(uint256.Int).MulDivOverflow(x, &d.atomics, DecimalFractional)
	if overflow {
		return nil, ErrDecimalOverflow
	}
	return product, nil
}

func (d Decimal) String() string {
	return decimal.NewFromBigInt(d.atomics.ToBig(), -DecimalPlaces).String()
}

func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Decimal) UnmarshalText(text []byte) error {
	parsed, err := ParseDecimal(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
