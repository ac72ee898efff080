// Package prices buckets trade price impact into warning tiers and runs the
// explicit override required before a high-impact swap.
package prices

import (
	"errors"
	"math/big"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/route"
)

var (
	// ErrPriceImpactTooHigh is returned when impact is blocked for non-expert users.
	ErrPriceImpactTooHigh = errors.New("price impact too high")
	// ErrNotConfirmed is returned when the user declines the impact override.
	ErrNotConfirmed = errors.New("price impact not confirmed")
)

// Severity is a warning tier from 0 (none) to 4 (blocked for non-experts).
type Severity uint8

// Blocked reports whether the tier refuses non-expert execution.
func (s Severity) Blocked() bool {
	return s > 3
}

// Thresholds are the impact fractions at which each tier starts.
type Thresholds struct {
	Low              *big.Rat
	Medium           *big.Rat
	High             *big.Rat
	BlockedNonExpert *big.Rat
	// TypedConfirm is where a plain confirmation stops being enough. Nil
	// means DefaultTypedConfirm.
	TypedConfirm *big.Rat
}

// DefaultTypedConfirm is the impact from which "confirm" must be typed.
var DefaultTypedConfirm = big.NewRat(10, 100)

// DefaultThresholds are 1%, 3%, 5% and 15%, with typed confirmation from 10%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Low:              big.NewRat(1, 100),
		Medium:           big.NewRat(3, 100),
		High:             big.NewRat(5, 100),
		BlockedNonExpert: big.NewRat(15, 100),
		TypedConfirm:     new(big.Rat).Set(DefaultTypedConfirm),
	}
}

// Severity buckets impact. A nil impact (no trade) has no severity.
func (th Thresholds) Severity(impact *big.Rat) Severity {
	switch {
	case impact == nil:
		return 0
	case impact.Cmp(th.BlockedNonExpert) >= 0:
		return 4
	case impact.Cmp(th.High) >= 0:
		return 3
	case impact.Cmp(th.Medium) >= 0:
		return 2
	case impact.Cmp(th.Low) >= 0:
		return 1
	}
	return 0
}

// Breakdown splits a trade's price impact into the part caused by its size
// and the part paid as liquidity provider fees.
type Breakdown struct {
	// PriceImpactWithoutFee is nil when there is no trade.
	PriceImpactWithoutFee *big.Rat
	// RealizedLPFee is the fee paid, in input currency.
	RealizedLPFee *currency.Amount
}

// ComputeBreakdown returns the breakdown of trade; a nil trade yields an empty Breakdown.
func ComputeBreakdown(trade *route.Trade) Breakdown {
	if trade == nil {
		return Breakdown{}
	}
	feeFraction := trade.RealizedLPFee()
	impact := new(big.Rat).Sub(trade.PriceImpact(), feeFraction)

	in := trade.InputAmount()
	fee := new(big.Rat).Mul(new(big.Rat).SetInt(in.Raw), feeFraction)
	feeRaw := new(big.Int).Quo(fee.Num(), fee.Denom())
	feeAmount := currency.NewAmount(in.Currency, feeRaw)

	return Breakdown{PriceImpactWithoutFee: impact, RealizedLPFee: &feeAmount}
}

// Confirmer asks the user to override a price impact warning.
type Confirmer interface {
	// Confirm asks for a plain yes/no on a noticeable impact.
	Confirm(impact *big.Rat) bool
	// ConfirmHigh asks for a deliberate acknowledgement, such as typing "confirm".
	ConfirmHigh(impact *big.Rat) bool
}

// ConfirmPriceImpact gates a swap on its impact. Blocked impact is refused
// unless expert is set. From th.TypedConfirm the user must ConfirmHigh, and
// from th.High a plain Confirm is enough. A nil confirmer declines every
// prompt.
func ConfirmPriceImpact(impact *big.Rat, th Thresholds, expert bool, c Confirmer) error {
	if impact == nil {
		return nil
	}
	if th.Severity(impact).Blocked() && !expert {
		return ErrPriceImpactTooHigh
	}
	typed := th.TypedConfirm
	if typed == nil {
		typed = DefaultTypedConfirm
	}
	switch {
	case impact.Cmp(typed) >= 0:
		if c == nil || !c.ConfirmHigh(impact) {
			return ErrNotConfirmed
		}
	case impact.Cmp(th.High) >= 0:
		if c == nil || !c.Confirm(impact) {
			return ErrNotConfirmed
		}
	}
	return nil
}

// Percent formats a fraction as a percentage with two decimals.
func Percent(f *big.Rat) string {
	if f == nil {
		return "-"
	}
	return new(big.Rat).Mul(f, big.NewRat(100, 1)).FloatString(2) + "%"
}
