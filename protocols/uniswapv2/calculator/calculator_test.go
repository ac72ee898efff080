package calculator

import (
	"math/big"
	"testing"

	"github.com/defistate/swapintent-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc    = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	weth    = common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619")
	unknown = common.HexToAddress("0x0000000000000000000000000000000000000099")
	pair    = common.HexToAddress("0x853Ee4b2A13f8a742d64C8F088bE7bA2131f670d")
)

func newBigIntFromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("failed to set string for big.Int")
	}
	return n
}

// usdcWethPool holds 100 USDC (6 decimals) against 50 WETH (18 decimals).
func usdcWethPool(feeBps uint16) uniswapv2.Pool {
	return uniswapv2.Pool{
		Address:  pair,
		Token0:   usdc,
		Token1:   weth,
		Reserve0: big.NewInt(100_000_000),
		Reserve1: newBigIntFromString("50000000000000000000"),
		FeeBps:   feeBps,
	}
}

func TestGetAmountOut(t *testing.T) {
	zeroLiquidity := usdcWethPool(30)
	zeroLiquidity.Reserve0 = big.NewInt(0)

	testCases := []struct {
		name           string
		amountIn       *big.Int
		tokenIn        common.Address
		tokenOut       common.Address
		pool           uniswapv2.Pool
		expectedAmount *big.Int
		expectedErr    error
	}{
		{
			name:           "token0 to token1",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        usdc,
			tokenOut:       weth,
			pool:           usdcWethPool(30),
			expectedAmount: newBigIntFromString("493579017198530649"),
		},
		{
			name:           "token1 to token0",
			amountIn:       newBigIntFromString("1000000000000000000"),
			tokenIn:        weth,
			tokenOut:       usdc,
			pool:           usdcWethPool(30),
			expectedAmount: big.NewInt(1955016),
		},
		{
			name:           "one percent fee",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        usdc,
			tokenOut:       weth,
			pool:           usdcWethPool(100),
			expectedAmount: newBigIntFromString("490147539360332706"),
		},
		{
			name:           "zero liquidity yields zero",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        usdc,
			tokenOut:       weth,
			pool:           zeroLiquidity,
			expectedAmount: big.NewInt(0),
		},
		{
			name:        "nil amount",
			tokenIn:     usdc,
			tokenOut:    weth,
			pool:        usdcWethPool(30),
			expectedErr: ErrNilAmount,
		},
		{
			name:        "negative amount",
			amountIn:    big.NewInt(-100),
			tokenIn:     usdc,
			tokenOut:    weth,
			pool:        usdcWethPool(30),
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "token mismatch",
			amountIn:    big.NewInt(1_000_000),
			tokenIn:     unknown,
			tokenOut:    weth,
			pool:        usdcWethPool(30),
			expectedErr: ErrTokenMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountOut, err := GetAmountOut(tc.amountIn, tc.tokenIn, tc.tokenOut, tc.pool)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, tc.expectedAmount.Cmp(amountOut), "expected %s, got %s", tc.expectedAmount, amountOut)
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	testCases := []struct {
		name           string
		amountOut      *big.Int
		tokenIn        common.Address
		tokenOut       common.Address
		expectedAmount *big.Int
		expectedErr    error
	}{
		{
			name:           "token0 to token1",
			amountOut:      newBigIntFromString("493579017198530649"),
			tokenIn:        usdc,
			tokenOut:       weth,
			expectedAmount: big.NewInt(1000000),
		},
		{
			name:           "token1 to token0",
			amountOut:      big.NewInt(1955016),
			tokenIn:        weth,
			tokenOut:       usdc,
			expectedAmount: newBigIntFromString("999999498234537320"),
		},
		{
			name:        "nil amount",
			tokenIn:     usdc,
			tokenOut:    weth,
			expectedErr: ErrNilAmount,
		},
		{
			name:        "negative amount",
			amountOut:   big.NewInt(-100),
			tokenIn:     usdc,
			tokenOut:    weth,
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "more than the reserve",
			amountOut:   newBigIntFromString("60000000000000000000"),
			tokenIn:     usdc,
			tokenOut:    weth,
			expectedErr: ErrInsufficientLiquidity,
		},
		{
			name:        "exactly the reserve",
			amountOut:   newBigIntFromString("50000000000000000000"),
			tokenIn:     usdc,
			tokenOut:    weth,
			expectedErr: ErrInsufficientLiquidity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountIn, err := GetAmountIn(tc.amountOut, tc.tokenIn, tc.tokenOut, usdcWethPool(30))
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, tc.expectedAmount.Cmp(amountIn), "expected %s, got %s", tc.expectedAmount, amountIn)
		})
	}
}

var result *big.Int

func BenchmarkGetAmountOut(b *testing.B) {
	pool := uniswapv2.Pool{
		Token0:   usdc,
		Token1:   weth,
		Reserve0: newBigIntFromString("2000000000000"),
		Reserve1: newBigIntFromString("1000000000000000000000"),
		FeeBps:   30,
	}
	amountIn := newBigIntFromString("1000000000000000000")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ = GetAmountOut(amountIn, weth, usdc, pool)
	}
}
