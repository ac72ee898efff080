package route

import (
	"math/big"

	"github.com/defistate/swapintent-go/protocols/uniswapv2"
	"github.com/defistate/swapintent-go/protocols/uniswapv2/calculator"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultMaxHops bounds path length when a Version does not set MaxHops.
const DefaultMaxHops = 3

// path is a candidate route. tokens has one more entry than pools.
type path struct {
	tokens    []common.Address
	pools     []uniswapv2.Pool
	amountIn  *big.Int
	amountOut *big.Int
}

func extend[T any](s []T, v T) []T {
	out := make([]T, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

func prepend[T any](v T, s []T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, v)
	return append(out, s...)
}

func contains(tokens []common.Address, a common.Address) bool {
	for _, t := range tokens {
		if t == a {
			return true
		}
	}
	return false
}

// bestExactIn searches paths of at most maxHops pools from tokenIn to
// tokenOut and returns the one yielding the most output. Ties go to the
// shorter path, then to the first found. Paths never revisit a token.
func bestExactIn(pools []uniswapv2.Pool, tokenIn, tokenOut common.Address, amountIn *big.Int, maxHops int) (path, bool) {
	var best path
	found := false

	var walk func(token common.Address, amount *big.Int, tokens []common.Address, used []uniswapv2.Pool)
	walk = func(token common.Address, amount *big.Int, tokens []common.Address, used []uniswapv2.Pool) {
		if len(used) >= maxHops {
			return
		}
		for _, pool := range pools {
			next, ok := pool.Other(token)
			if !ok || contains(tokens, next) {
				continue
			}
			out, err := calculator.GetAmountOut(amount, token, next, pool)
			if err != nil || out.Sign() == 0 {
				continue
			}

			nextTokens := extend(tokens, next)
			nextUsed := extend(used, pool)
			if next == tokenOut {
				cand := path{tokens: nextTokens, pools: nextUsed, amountIn: amountIn, amountOut: out}
				if !found || betterExactIn(cand, best) {
					best, found = cand, true
				}
				continue
			}
			walk(next, out, nextTokens, nextUsed)
		}
	}
	walk(tokenIn, amountIn, []common.Address{tokenIn}, nil)
	return best, found
}

func betterExactIn(a, b path) bool {
	if c := a.amountOut.Cmp(b.amountOut); c != 0 {
		return c > 0
	}
	return len(a.pools) < len(b.pools)
}

// bestExactOut searches backwards from tokenOut and returns the path that
// needs the least input to deliver amountOut.
func bestExactOut(pools []uniswapv2.Pool, tokenIn, tokenOut common.Address, amountOut *big.Int, maxHops int) (path, bool) {
	var best path
	found := false

	var walk func(token common.Address, amount *big.Int, tokens []common.Address, used []uniswapv2.Pool)
	walk = func(token common.Address, amount *big.Int, tokens []common.Address, used []uniswapv2.Pool) {
		if len(used) >= maxHops {
			return
		}
		for _, pool := range pools {
			prev, ok := pool.Other(token)
			if !ok || contains(tokens, prev) {
				continue
			}
			in, err := calculator.GetAmountIn(amount, prev, token, pool)
			if err != nil {
				continue
			}

			prevTokens := prepend(prev, tokens)
			prevUsed := prepend(pool, used)
			if prev == tokenIn {
				cand := path{tokens: prevTokens, pools: prevUsed, amountIn: in, amountOut: amountOut}
				if !found || betterExactOut(cand, best) {
					best, found = cand, true
				}
				continue
			}
			walk(prev, in, prevTokens, prevUsed)
		}
	}
	walk(tokenOut, amountOut, []common.Address{tokenOut}, nil)
	return best, found
}

func betterExactOut(a, b path) bool {
	if c := a.amountIn.Cmp(b.amountIn); c != 0 {
		return c < 0
	}
	return len(a.pools) < len(b.pools)
}
