package uniswapv2

import "github.com/ethereum/go-ethereum/common"

// PoolDiff is the delta between two snapshots of a router's pools.
type PoolDiff struct {
	Additions []Pool           `json:"additions,omitempty"`
	Updates   []Pool           `json:"updates,omitempty"`
	Deletions []common.Address `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d PoolDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Len is the number of pools the diff touches.
func (d PoolDiff) Len() int {
	return len(d.Additions) + len(d.Updates) + len(d.Deletions)
}

// Differ calculates the difference between two snapshots of pools keyed by
// pair address. Only reserve changes count as updates; token and fee fields
// are fixed for the lifetime of a pair.
func Differ(old, new []Pool) PoolDiff {
	oldPools := make(map[common.Address]Pool, len(old))
	for _, pool := range old {
		oldPools[pool.Address] = pool
	}

	newPools := make(map[common.Address]Pool, len(new))
	for _, pool := range new {
		newPools[pool.Address] = pool
	}

	var diff PoolDiff
	for addr, newPool := range newPools {
		oldPool, exists := oldPools[addr]
		if !exists {
			diff.Additions = append(diff.Additions, newPool)
			continue
		}
		// manual reserve check, much cheaper than reflect.DeepEqual
		if !sameReserve(oldPool.Reserve0, newPool.Reserve0) || !sameReserve(oldPool.Reserve1, newPool.Reserve1) {
			diff.Updates = append(diff.Updates, newPool)
		}
	}

	for addr := range oldPools {
		if _, exists := newPools[addr]; !exists {
			diff.Deletions = append(diff.Deletions, addr)
		}
	}

	return diff
}
