package uniswapv2

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findPool(pools []Pool, addr common.Address) *Pool {
	for i := range pools {
		if pools[i].Address == addr {
			return &pools[i]
		}
	}
	return nil
}

func TestPatcher(t *testing.T) {
	pool1 := Pool{Address: pairAddr(1), Reserve0: big.NewInt(1000), Reserve1: big.NewInt(5000)}
	pool2 := Pool{Address: pairAddr(2), Reserve0: big.NewInt(2000), Reserve1: big.NewInt(6000)}
	pool3 := Pool{Address: pairAddr(3), Reserve0: big.NewInt(3000), Reserve1: big.NewInt(7000)}

	initialState := []Pool{pool3, pool1, pool2}

	t.Run("additions", func(t *testing.T) {
		newState, err := Patcher(initialState, PoolDiff{
			Additions: []Pool{{Address: pairAddr(4), Reserve0: big.NewInt(4000)}},
		})
		require.NoError(t, err)

		assert.Len(t, newState, 4)
		added := findPool(newState, pairAddr(4))
		require.NotNil(t, added)
		assert.Equal(t, int64(4000), added.Reserve0.Int64())
	})

	t.Run("deletions", func(t *testing.T) {
		newState, err := Patcher(initialState, PoolDiff{Deletions: []common.Address{pairAddr(2)}})
		require.NoError(t, err)

		assert.Len(t, newState, 2)
		assert.Nil(t, findPool(newState, pairAddr(2)))
		assert.NotNil(t, findPool(newState, pairAddr(1)))
	})

	t.Run("updates", func(t *testing.T) {
		newState, err := Patcher(initialState, PoolDiff{
			Updates: []Pool{{Address: pairAddr(1), Reserve0: big.NewInt(1001), Reserve1: big.NewInt(5005)}},
		})
		require.NoError(t, err)

		assert.Len(t, newState, 3)
		updated := findPool(newState, pairAddr(1))
		require.NotNil(t, updated)
		assert.Equal(t, int64(1001), updated.Reserve0.Int64())
		assert.Equal(t, int64(5005), updated.Reserve1.Int64())
	})

	t.Run("new state does not share reserves", func(t *testing.T) {
		local := []Pool{{Address: pairAddr(1), Reserve0: big.NewInt(1000), Reserve1: big.NewInt(5000)}}

		newState, err := Patcher(local, PoolDiff{})
		require.NoError(t, err)
		require.Len(t, newState, 1)

		local[0].Reserve0.SetInt64(9999)
		assert.Equal(t, int64(1000), newState[0].Reserve0.Int64())
	})

	t.Run("result is sorted by address", func(t *testing.T) {
		newState, err := Patcher(initialState, PoolDiff{})
		require.NoError(t, err)
		require.Len(t, newState, 3)

		assert.Equal(t, pairAddr(1), newState[0].Address)
		assert.Equal(t, pairAddr(2), newState[1].Address)
		assert.Equal(t, pairAddr(3), newState[2].Address)
	})

	t.Run("differ and patcher round trip", func(t *testing.T) {
		target := []Pool{
			{Address: pairAddr(1), Reserve0: big.NewInt(1), Reserve1: big.NewInt(1)},
			pool3,
			{Address: pairAddr(5), Reserve0: big.NewInt(50), Reserve1: big.NewInt(60)},
		}

		newState, err := Patcher(initialState, Differ(initialState, target))
		require.NoError(t, err)
		assert.True(t, Differ(newState, target).IsEmpty())
	})
}

func TestPoolOther(t *testing.T) {
	a, b := common.HexToAddress("0x01"), common.HexToAddress("0x02")
	p := Pool{Token0: a, Token1: b}

	other, ok := p.Other(a)
	require.True(t, ok)
	assert.Equal(t, b, other)

	_, ok = p.Other(common.HexToAddress("0x03"))
	assert.False(t, ok)
	assert.True(t, p.Involves(b))
}
