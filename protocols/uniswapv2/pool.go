package uniswapv2

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a Uniswap V2 style constant-product pair. Address doubles as the
// address of the pair's liquidity token.
type Pool struct {
	Address  common.Address `json:"address"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 *big.Int       `json:"reserve0"`
	Reserve1 *big.Int       `json:"reserve1"`
	FeeBps   uint16         `json:"feeBps"` // i.e 30 for 0.3%
}

// Involves reports whether token is one side of the pair.
func (p Pool) Involves(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// Other returns the counterpart of token in the pair. ok is false when the
// pool does not hold token.
func (p Pool) Other(token common.Address) (common.Address, bool) {
	switch token {
	case p.Token0:
		return p.Token1, true
	case p.Token1:
		return p.Token0, true
	}
	return common.Address{}, false
}
