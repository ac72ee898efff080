// Package route quotes trades across the supported router versions.
package route

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/protocols/uniswapv2"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/ethereum/go-ethereum/common"
)

const bpsDivisor = 10000

// TradeType says which side of a Trade is fixed.
type TradeType uint8

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	if t == ExactOutput {
		return "EXACT_OUTPUT"
	}
	return "EXACT_INPUT"
}

// TradeTypeFor maps the independent field of a swap to a trade type.
func TradeTypeFor(independent swapstate.Field) TradeType {
	if independent == swapstate.FieldOutput {
		return ExactOutput
	}
	return ExactInput
}

// Version is one router a trade can be executed through. Its pools are
// looked up by Name in the PoolSource.
type Version struct {
	Name    string
	Router  common.Address
	Route   swapstate.BestRoute
	MaxHops int
	// Bonus versions are resolved after the regular ones.
	Bonus bool
}

// Trade is an immutable quote along one path. Accessors return copies.
type Trade struct {
	tradeType TradeType
	version   Version
	input     currency.Amount
	output    currency.Amount
	path      []common.Address
	pools     []uniswapv2.Pool
	// wrappedIn is the token at the start of path.
	wrappedIn currency.Currency
	// midPrice is the raw output per raw input at current reserves.
	midPrice *big.Rat
}

func newTrade(v Version, tt TradeType, input, output currency.Amount, wrappedIn currency.Currency, p path) *Trade {
	mid := big.NewRat(1, 1)
	for i, pool := range p.pools {
		reserveIn, reserveOut := orientedReserves(pool, p.tokens[i])
		if reserveIn == nil || reserveIn.Sign() == 0 || reserveOut == nil {
			mid = new(big.Rat)
			break
		}
		mid.Mul(mid, new(big.Rat).SetFrac(reserveOut, reserveIn))
	}

	tokens := make([]common.Address, len(p.tokens))
	copy(tokens, p.tokens)

	return &Trade{
		tradeType: tt,
		version:   v,
		input:     currency.NewAmount(input.Currency, input.Raw),
		output:    currency.NewAmount(output.Currency, output.Raw),
		path:      tokens,
		pools:     uniswapv2.CopyPools(p.pools),
		wrappedIn: wrappedIn,
		midPrice:  mid,
	}
}

func orientedReserves(pool uniswapv2.Pool, tokenIn common.Address) (*big.Int, *big.Int) {
	if tokenIn == pool.Token0 {
		return pool.Reserve0, pool.Reserve1
	}
	return pool.Reserve1, pool.Reserve0
}

func (t *Trade) Type() TradeType  { return t.tradeType }
func (t *Trade) Version() Version { return t.version }

// Router is the contract that executes the trade and must be approved to
// spend the input token.
func (t *Trade) Router() common.Address { return t.version.Router }

func (t *Trade) InputAmount() currency.Amount {
	return currency.NewAmount(t.input.Currency, t.input.Raw)
}

func (t *Trade) OutputAmount() currency.Amount {
	return currency.NewAmount(t.output.Currency, t.output.Raw)
}

// Path returns the token addresses traversed, with the native asset wrapped.
func (t *Trade) Path() []common.Address {
	out := make([]common.Address, len(t.path))
	copy(out, t.path)
	return out
}

// WrappedInput is the input currency as the pools see it: the wrapped token
// when the input is native.
func (t *Trade) WrappedInput() currency.Currency { return t.wrappedIn }

// Pools returns a deep copy of the pools traversed, in path order.
func (t *Trade) Pools() []uniswapv2.Pool {
	return uniswapv2.CopyPools(t.pools)
}

// Hops is the number of pools traversed.
func (t *Trade) Hops() int { return len(t.pools) }

func scale(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// toDisplay converts a raw output-per-input ratio into whole units.
func (t *Trade) toDisplay(raw *big.Rat) *big.Rat {
	adj := new(big.Rat).SetFrac(scale(t.input.Currency.Decimals), scale(t.output.Currency.Decimals))
	return new(big.Rat).Mul(raw, adj)
}

// ExecutionPrice is output per input in whole units.
func (t *Trade) ExecutionPrice() *big.Rat {
	if t.input.IsZero() {
		return new(big.Rat)
	}
	return t.toDisplay(new(big.Rat).SetFrac(t.output.Raw, t.input.Raw))
}

// MidPrice is the marginal price along the path in whole units.
func (t *Trade) MidPrice() *big.Rat {
	return t.toDisplay(t.midPrice)
}

// PriceImpact is the fractional shortfall of the output against what the mid
// price promises for the input. Fees are included.
func (t *Trade) PriceImpact() *big.Rat {
	quote := new(big.Rat).Mul(t.midPrice, new(big.Rat).SetInt(t.input.Raw))
	if quote.Sign() == 0 {
		return new(big.Rat)
	}
	shortfall := new(big.Rat).Sub(quote, new(big.Rat).SetInt(t.output.Raw))
	return shortfall.Quo(shortfall, quote)
}

// RealizedLPFee is the fraction of the input paid to liquidity providers
// across all hops: 1 - prod(1 - fee_i).
func (t *Trade) RealizedLPFee() *big.Rat {
	kept := big.NewRat(1, 1)
	for _, p := range t.pools {
		kept.Mul(kept, big.NewRat(int64(bpsDivisor-int(p.FeeBps)), bpsDivisor))
	}
	return new(big.Rat).Sub(big.NewRat(1, 1), kept)
}

// MaximumAmountIn is the most input the trade may spend at the given slippage.
func (t *Trade) MaximumAmountIn(slippageBps uint16) currency.Amount {
	if t.tradeType == ExactInput {
		return t.InputAmount()
	}
	raw := new(big.Int).Mul(t.input.Raw, big.NewInt(bpsDivisor+int64(slippageBps)))
	raw.Quo(raw, big.NewInt(bpsDivisor))
	return currency.NewAmount(t.input.Currency, raw)
}

// MinimumAmountOut is the least output the trade may return at the given slippage.
func (t *Trade) MinimumAmountOut(slippageBps uint16) currency.Amount {
	if t.tradeType == ExactOutput {
		return t.OutputAmount()
	}
	raw := new(big.Int).Mul(t.output.Raw, big.NewInt(bpsDivisor))
	raw.Quo(raw, big.NewInt(bpsDivisor+int64(slippageBps)))
	return currency.NewAmount(t.output.Currency, raw)
}

// InvolvesAddress reports whether addr is a token on the path or one of the
// traversed pairs.
func (t *Trade) InvolvesAddress(addr common.Address) bool {
	for _, tok := range t.path {
		if tok == addr {
			return true
		}
	}
	for _, p := range t.pools {
		if p.Address == addr {
			return true
		}
	}
	return false
}

// Equivalent reports whether o quotes the same swap at the same amounts
// through the same router and path.
func (t *Trade) Equivalent(o *Trade) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.tradeType != o.tradeType || t.version.Name != o.version.Name || t.version.Router != o.version.Router {
		return false
	}
	if !t.input.Currency.Equal(o.input.Currency) || !t.output.Currency.Equal(o.output.Currency) {
		return false
	}
	if t.input.Cmp(o.input) != 0 || t.output.Cmp(o.output) != 0 {
		return false
	}
	if len(t.path) != len(o.path) {
		return false
	}
	for i := range t.path {
		if t.path[i] != o.path[i] {
			return false
		}
	}
	return true
}

func (t *Trade) String() string {
	hops := make([]string, len(t.path))
	for i, a := range t.path {
		hops[i] = a.Hex()
	}
	return fmt.Sprintf("%s %s -> %s via %s [%s]", t.tradeType, t.input, t.output, t.version.Name, strings.Join(hops, ","))
}
