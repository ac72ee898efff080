package uniswapv2

import (
	"bytes"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// deepCopyPool creates a new Pool with its own *big.Int reserves so the new
// snapshot never shares memory with the old one.
func deepCopyPool(p Pool) Pool {
	newPool := p
	if p.Reserve0 != nil {
		newPool.Reserve0 = new(big.Int).Set(p.Reserve0)
	}
	if p.Reserve1 != nil {
		newPool.Reserve1 = new(big.Int).Set(p.Reserve1)
	}
	return newPool
}

// CopyPools deep copies a snapshot.
func CopyPools(pools []Pool) []Pool {
	out := make([]Pool, len(pools))
	for i, p := range pools {
		out[i] = deepCopyPool(p)
	}
	return out
}

// Patcher builds the next snapshot by applying diff to prevState. The result
// is sorted by pair address so route search over it is deterministic.
func Patcher(prevState []Pool, diff PoolDiff) ([]Pool, error) {
	next := make(map[common.Address]Pool, len(prevState))
	for _, pool := range prevState {
		next[pool.Address] = deepCopyPool(pool)
	}

	for _, addr := range diff.Deletions {
		delete(next, addr)
	}
	for _, updated := range diff.Updates {
		next[updated.Address] = deepCopyPool(updated)
	}
	for _, added := range diff.Additions {
		next[added.Address] = deepCopyPool(added)
	}

	finalState := make([]Pool, 0, len(next))
	for _, pool := range next {
		finalState = append(finalState, pool)
	}
	SortPools(finalState)

	return finalState, nil
}

// SortPools orders pools by pair address in place.
func SortPools(pools []Pool) {
	slices.SortFunc(pools, func(a, b Pool) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})
}

func sameReserve(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
