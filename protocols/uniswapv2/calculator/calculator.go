package calculator

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/swapintent-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// basisPointDivisor is 100% in basis points.
	basisPointDivisor = big.NewInt(10000)
	one               = big.NewInt(1)

	// ErrInvalidAmount is returned when an input/output amount is negative.
	ErrInvalidAmount = errors.New("amount must be non-negative")
	// ErrNilAmount is returned when a nil pointer is passed for an amount.
	ErrNilAmount = errors.New("nil pointer passed as amount")
	// ErrTokenMismatch is returned when the tokens are not the two sides of the pool.
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrInvalidState is returned for internal calculation errors, like division by zero.
	ErrInvalidState = errors.New("invalid internal state")
	// ErrInsufficientLiquidity is returned when amountOut is not strictly below the output reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
)

// Calculator holds scratch big.Ints so quoting a path does not allocate per hop.
// A Calculator is not safe for concurrent use; the package functions take one
// from calculatorPool for the duration of a call.
type Calculator struct {
	feeMultiplier   *big.Int
	amountInWithFee *big.Int
	numerator       *big.Int
	denominator     *big.Int
}

var calculatorPool = sync.Pool{
	New: func() any {
		return &Calculator{
			feeMultiplier:   new(big.Int),
			amountInWithFee: new(big.Int),
			numerator:       new(big.Int),
			denominator:     new(big.Int),
		}
	},
}

// GetAmountOut returns the output of swapping amountIn of tokenIn through pool.
func GetAmountOut(amountIn *big.Int, tokenIn, tokenOut common.Address, pool uniswapv2.Pool) (*big.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountOut(amountIn, tokenIn, tokenOut, pool)
}

// GetAmountIn returns the input of tokenIn required to receive amountOut of tokenOut.
func GetAmountIn(amountOut *big.Int, tokenIn, tokenOut common.Address, pool uniswapv2.Pool) (*big.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountIn(amountOut, tokenIn, tokenOut, pool)
}

func (c *Calculator) getAmountOut(amountIn *big.Int, tokenIn, tokenOut common.Address, pool uniswapv2.Pool) (*big.Int, error) {
	if amountIn == nil {
		return nil, ErrNilAmount
	}
	if amountIn.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	reserveIn, reserveOut, err := GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return nil, err
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int), nil
	}

	// amountOut = reserveOut * amountIn * (10000 - fee) / (reserveIn * 10000 + amountIn * (10000 - fee))
	c.feeMultiplier.Sub(basisPointDivisor, big.NewInt(int64(pool.FeeBps)))
	c.amountInWithFee.Mul(amountIn, c.feeMultiplier)
	c.numerator.Mul(reserveOut, c.amountInWithFee)
	c.denominator.Mul(reserveIn, basisPointDivisor)
	c.denominator.Add(c.denominator, c.amountInWithFee)

	if c.denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool denominator is zero", ErrInvalidState)
	}
	return new(big.Int).Div(c.numerator, c.denominator), nil
}

func (c *Calculator) getAmountIn(amountOut *big.Int, tokenIn, tokenOut common.Address, pool uniswapv2.Pool) (*big.Int, error) {
	if amountOut == nil {
		return nil, ErrNilAmount
	}
	if amountOut.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	reserveIn, reserveOut, err := GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return nil, err
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("%w: requested amountOut (%s) is >= reserveOut (%v)", ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	// amountIn = reserveIn * amountOut * 10000 / ((reserveOut - amountOut) * (10000 - fee)) + 1
	c.numerator.Mul(reserveIn, amountOut)
	c.numerator.Mul(c.numerator, basisPointDivisor)
	c.feeMultiplier.Sub(basisPointDivisor, big.NewInt(int64(pool.FeeBps)))
	c.denominator.Sub(reserveOut, amountOut)
	c.denominator.Mul(c.denominator, c.feeMultiplier)

	if c.denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool denominator is zero", ErrInvalidState)
	}
	amountIn := new(big.Int).Div(c.numerator, c.denominator)
	return amountIn.Add(amountIn, one), nil
}

// GetReserves returns the reserves of pool oriented for a tokenIn -> tokenOut swap.
func GetReserves(tokenIn, tokenOut common.Address, pool uniswapv2.Pool) (reserveIn, reserveOut *big.Int, err error) {
	if tokenIn == pool.Token0 && tokenOut == pool.Token1 {
		return pool.Reserve0, pool.Reserve1, nil
	} else if tokenIn == pool.Token1 && tokenOut == pool.Token0 {
		return pool.Reserve1, pool.Reserve0, nil
	}
	return nil, nil, fmt.Errorf("%w: pool %s does not contain the pair %s -> %s", ErrTokenMismatch, pool.Address.Hex(), tokenIn.Hex(), tokenOut.Hex())
}
