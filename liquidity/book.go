// Package liquidity keeps the current pools of every router version and
// serves them to the route resolver.
package liquidity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/defistate/swapintent-go/protocols/uniswapv2"
)

var (
	// ErrNotReady is returned before the first snapshot arrived.
	ErrNotReady = errors.New("liquidity book has no snapshot yet")
	// ErrUnknownVersion is returned for a router version without pools.
	ErrUnknownVersion = errors.New("unknown router version")
	// ErrBlockGap is returned when a diff does not start at the book's block.
	ErrBlockGap = errors.New("diff does not continue the current block")
)

// Book is a thread-safe store of pool snapshots keyed by router version.
// Snapshots are replaced whole; readers never observe a partial update.
type Book struct {
	mu    sync.RWMutex
	ready bool
	block uint64
	pools map[string][]uniswapv2.Pool
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{pools: make(map[string][]uniswapv2.Pool)}
}

// NewStaticBook returns a book holding a fixed snapshot at block 0.
func NewStaticBook(pools map[string][]uniswapv2.Pool) *Book {
	b := NewBook()
	b.Replace(0, pools)
	return b
}

// Block returns the block of the current snapshot.
func (b *Book) Block() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.block
}

// Versions lists the router versions with pools.
func (b *Book) Versions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.pools))
	for v := range b.pools {
		out = append(out, v)
	}
	return out
}

// Pools returns a copy of the pools of version.
func (b *Book) Pools(_ context.Context, version string) ([]uniswapv2.Pool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.ready {
		return nil, ErrNotReady
	}
	pools, ok := b.pools[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, version)
	}
	return uniswapv2.CopyPools(pools), nil
}

// Replace installs a full snapshot taken at block and returns, per version,
// how it differs from the snapshot it replaced.
func (b *Book) Replace(block uint64, pools map[string][]uniswapv2.Pool) map[string]uniswapv2.PoolDiff {
	next := make(map[string][]uniswapv2.Pool, len(pools))
	for version, ps := range pools {
		snapshot := uniswapv2.CopyPools(ps)
		uniswapv2.SortPools(snapshot)
		next[version] = snapshot
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changes := make(map[string]uniswapv2.PoolDiff)
	for version, snapshot := range next {
		if diff := uniswapv2.Differ(b.pools[version], snapshot); !diff.IsEmpty() {
			changes[version] = diff
		}
	}
	for version, old := range b.pools {
		if _, ok := next[version]; !ok && len(old) > 0 {
			changes[version] = uniswapv2.Differ(old, nil)
		}
	}

	b.pools = next
	b.block = block
	b.ready = true
	return changes
}

// Apply moves the book from fromBlock to toBlock by patching each version
// with its diff. Versions absent from diffs are unchanged; a diff for a new
// version starts from an empty snapshot. Nothing is applied when any patch
// fails or fromBlock is not the current block.
func (b *Book) Apply(fromBlock, toBlock uint64, diffs map[string]uniswapv2.PoolDiff) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready {
		return ErrNotReady
	}
	if fromBlock != b.block {
		return fmt.Errorf("%w: book at %d, diff from %d", ErrBlockGap, b.block, fromBlock)
	}

	next := make(map[string][]uniswapv2.Pool, len(b.pools))
	for version, pools := range b.pools {
		next[version] = pools
	}
	for version, diff := range diffs {
		if diff.IsEmpty() {
			continue
		}
		patched, err := uniswapv2.Patcher(b.pools[version], diff)
		if err != nil {
			return fmt.Errorf("failed to patch %s: %w", version, err)
		}
		next[version] = patched
	}

	b.pools = next
	b.block = toBlock
	return nil
}
