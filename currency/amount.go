package currency

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for strings that are not non-negative decimals.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrTooManyDecimals is returned when the fractional part exceeds the currency's decimals.
	ErrTooManyDecimals = errors.New("fractional component exceeds decimals")
)

// Amount is a quantity of a currency in its smallest unit. Amounts are
// values; operations return new Amounts and never mutate Raw in place.
type Amount struct {
	Currency
	Raw *big.Int
}

// NewAmount copies raw into a new Amount.
func NewAmount(c Currency, raw *big.Int) Amount {
	r := new(big.Int)
	if raw != nil {
		r.Set(raw)
	}
	return Amount{Currency: c, Raw: r}
}

// ParseAmount converts a decimal string such as "1.25" into smallest units of c.
// Trailing fractional zeros are ignored when checking against c.Decimals.
func ParseAmount(value string, c Currency) (Amount, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, "eE") {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, value)
	}

	scaled := d.Shift(int32(c.Decimals))
	if !scaled.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q has more than %d decimals", ErrTooManyDecimals, value, c.Decimals)
	}
	return Amount{Currency: c, Raw: scaled.BigInt()}, nil
}

// TryParseAmount is ParseAmount for user input: ok is false for empty,
// unparseable and zero values, which all mean "no amount".
func TryParseAmount(value string, c Currency) (Amount, bool) {
	if value == "" || value == "0" {
		return Amount{}, false
	}
	a, err := ParseAmount(value, c)
	if err != nil || a.Raw.Sign() == 0 {
		return Amount{}, false
	}
	return a, true
}

// IsZero reports whether the amount is zero or unset.
func (a Amount) IsZero() bool {
	return a.Raw == nil || a.Raw.Sign() == 0
}

// Cmp compares raw quantities; it does not check that currencies match.
func (a Amount) Cmp(b Amount) int {
	return a.raw().Cmp(b.raw())
}

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.Cmp(b) < 0
}

// Decimal returns the amount in whole units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.raw(), -int32(a.Currency.Decimals))
}

// Exact formats the amount in whole units without rounding.
func (a Amount) Exact() string {
	return a.Decimal().String()
}

// Significant formats the amount rounded to n significant digits.
func (a Amount) Significant(n int) string {
	d := a.Decimal()
	if d.IsZero() {
		return "0"
	}
	// position of the most significant digit relative to the decimal point
	msd := d.NumDigits() + int(d.Exponent())
	return d.Round(int32(n - msd)).String()
}

func (a Amount) String() string {
	return a.Exact() + " " + a.Currency.String()
}

func (a Amount) raw() *big.Int {
	if a.Raw == nil {
		return new(big.Int)
	}
	return a.Raw
}
