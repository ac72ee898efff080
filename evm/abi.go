package evm

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/defistate/swapintent-go/route"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// Uniswap V2 Router02 swap entry points.
const routerABIJSON = `[
{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactETHForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForETH","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapTokensForExactTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapETHForExactTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
{"inputs":[{"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapTokensForExactETH","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

var (
	erc20ABI  = mustParseABI(erc20ABIJSON)
	routerABI = mustParseABI(routerABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("evm: invalid ABI: %v", err))
	}
	return parsed
}

// ErrNativeToNative is returned for a trade with native currency on both sides.
var ErrNativeToNative = errors.New("cannot swap native currency for itself")

// SwapCall is an encoded router call.
type SwapCall struct {
	Method string
	Data   []byte
	// Value is the native amount sent along, zero for token input.
	Value *big.Int
}

// EncodeSwapCall picks the router method for trade and packs its arguments.
// Exact-input trades guard the output with MinimumAmountOut, exact-output
// trades cap the input with MaximumAmountIn. Native input is sent as value.
func EncodeSwapCall(trade *route.Trade, slippageBps uint16, to common.Address, deadline time.Time) (SwapCall, error) {
	in, out := trade.InputAmount(), trade.OutputAmount()
	if in.Native && out.Native {
		return SwapCall{}, ErrNativeToNative
	}
	path := trade.Path()
	dl := big.NewInt(deadline.Unix())

	var (
		method string
		args   []any
		value  = new(big.Int)
	)
	if trade.Type() == route.ExactInput {
		minOut := trade.MinimumAmountOut(slippageBps).Raw
		switch {
		case in.Native:
			method, args = "swapExactETHForTokens", []any{minOut, path, to, dl}
			value.Set(in.Raw)
		case out.Native:
			method, args = "swapExactTokensForETH", []any{in.Raw, minOut, path, to, dl}
		default:
			method, args = "swapExactTokensForTokens", []any{in.Raw, minOut, path, to, dl}
		}
	} else {
		maxIn := trade.MaximumAmountIn(slippageBps).Raw
		switch {
		case in.Native:
			method, args = "swapETHForExactTokens", []any{out.Raw, path, to, dl}
			value.Set(maxIn)
		case out.Native:
			method, args = "swapTokensForExactETH", []any{out.Raw, maxIn, path, to, dl}
		default:
			method, args = "swapTokensForExactTokens", []any{out.Raw, maxIn, path, to, dl}
		}
	}

	data, err := routerABI.Pack(method, args...)
	if err != nil {
		return SwapCall{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return SwapCall{Method: method, Data: data, Value: value}, nil
}
