package uniswapv2

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairAddr(n byte) common.Address {
	return common.BytesToAddress([]byte{0xaa, n})
}

func TestDiffer(t *testing.T) {
	pool1 := Pool{Address: pairAddr(1), Reserve0: big.NewInt(1000), Reserve1: big.NewInt(2000)}
	pool2 := Pool{Address: pairAddr(2), Reserve0: big.NewInt(3000), Reserve1: big.NewInt(4000)}
	pool3 := Pool{Address: pairAddr(3), Reserve0: big.NewInt(5000), Reserve1: big.NewInt(6000)}

	t.Run("additions", func(t *testing.T) {
		diff := Differ([]Pool{pool1}, []Pool{pool1, pool2})

		require.Len(t, diff.Additions, 1)
		assert.Equal(t, pool2.Address, diff.Additions[0].Address)
		assert.Empty(t, diff.Updates)
		assert.Empty(t, diff.Deletions)
	})

	t.Run("deletions", func(t *testing.T) {
		diff := Differ([]Pool{pool1, pool2}, []Pool{pool1})

		assert.Empty(t, diff.Additions)
		assert.Empty(t, diff.Updates)
		require.Len(t, diff.Deletions, 1)
		assert.Equal(t, pool2.Address, diff.Deletions[0])
	})

	t.Run("reserve change is an update", func(t *testing.T) {
		pool1Updated := Pool{Address: pairAddr(1), Reserve0: big.NewInt(1001), Reserve1: big.NewInt(2000)}

		diff := Differ([]Pool{pool1}, []Pool{pool1Updated})

		assert.Empty(t, diff.Additions)
		require.Len(t, diff.Updates, 1)
		assert.Equal(t, int64(1001), diff.Updates[0].Reserve0.Int64())
		assert.Empty(t, diff.Deletions)
	})

	t.Run("mixed", func(t *testing.T) {
		pool1Updated := Pool{Address: pairAddr(1), Reserve0: big.NewInt(1001), Reserve1: big.NewInt(2000)}
		pool4 := Pool{Address: pairAddr(4), Reserve0: big.NewInt(7000), Reserve1: big.NewInt(8000)}

		diff := Differ([]Pool{pool1, pool2, pool3}, []Pool{pool1Updated, pool2, pool4})

		require.Len(t, diff.Additions, 1)
		assert.Equal(t, pool4.Address, diff.Additions[0].Address)
		require.Len(t, diff.Updates, 1)
		assert.Equal(t, pool1.Address, diff.Updates[0].Address)
		require.Len(t, diff.Deletions, 1)
		assert.Equal(t, pool3.Address, diff.Deletions[0])
	})

	t.Run("no changes", func(t *testing.T) {
		diff := Differ([]Pool{pool1, pool2}, []Pool{pool1, pool2})
		assert.True(t, diff.IsEmpty())
	})

	t.Run("nil reserves compare equal", func(t *testing.T) {
		bare := Pool{Address: pairAddr(9)}
		diff := Differ([]Pool{bare}, []Pool{bare})
		assert.True(t, diff.IsEmpty())
	})
}
