package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/defistate/swapintent-go/swapstate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
chain:
  id: 137
  name: polygon
  rpc_url: https://polygon-rpc.com
  native:
    symbol: MATIC
    name: Polygon
  wrapped:
    address: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"
    symbol: WMATIC
tokens:
  - address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
    symbol: USDC
    decimals: 6
  - address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F"
    symbol: USDT
    decimals: 6
stablecoins:
  - "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
  - "0xc2132D05D31c914a87C6611C10748AEb04B58e8F"
routers:
  - name: v2
    address: "0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff"
    max_hops: 3
  - name: bonus
    address: "0x1111111111111111111111111111111111111111"
    route:
      routerType: BONUS
      smartRouter: PARASWAP
    bonus: true
liquidity:
  pools:
    v2:
      - address: "0x6e7a5FAFcec6BB1e78bAE2A1F0B612012BF14827"
        token0: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"
        token1: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
        reserve0: "1000000000000000000000"
        reserve1: "1000000000"
        fee_bps: 30
swap:
  slippage_bps: 75
  deadline: 5m
  quiet_period: 250ms
redis:
  addr: localhost:6379
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, uint64(137), cfg.Chain.ID)
	assert.True(t, cfg.Chain.Native.Native)
	assert.Equal(t, uint8(18), cfg.Chain.Native.Decimals)
	assert.Equal(t, uint8(18), cfg.Chain.Wrapped.Decimals)
	assert.Equal(t, uint16(75), cfg.Swap.SlippageBps)
	assert.Equal(t, 5*time.Minute, cfg.Swap.Deadline)
	assert.Equal(t, 250*time.Millisecond, cfg.Swap.QuietPeriod)

	// defaults
	assert.Equal(t, float64(DefaultRateLimit), cfg.Swap.RateLimit)
	assert.Equal(t, DefaultReceiptTimeout, cfg.Swap.ReceiptTimeout)
	assert.Equal(t, DefaultRedisPrefix, cfg.Redis.Prefix)
	assert.Equal(t, DefaultMetricsAddr, cfg.Metrics.Addr)
	assert.Equal(t, uint(DefaultStreamBuffer), cfg.Liquidity.BufferSize)
	assert.Equal(t, "swapctl", cfg.Wallet)
	assert.Equal(t, uint64(137), cfg.Swap.PrimaryChainID)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(string) string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			edit:    func(string) string { return "chain: [" },
			wantErr: "failed to parse config",
		},
		{
			name:    "missing chain id",
			edit:    func(s string) string { return strings.Replace(s, "id: 137", "id: 0", 1) },
			wantErr: "chain.id is required",
		},
		{
			name:    "missing rpc url",
			edit:    func(s string) string { return strings.Replace(s, "rpc_url: https://polygon-rpc.com", "rpc_url: \"\"", 1) },
			wantErr: "chain.rpc_url is required",
		},
		{
			name:    "duplicate router",
			edit:    func(s string) string { return strings.Replace(s, "name: bonus", "name: v2", 1) },
			wantErr: `duplicate router "v2"`,
		},
		{
			name:    "pools for unknown router",
			edit:    func(s string) string { return strings.Replace(s, "    v2:\n", "    v3:\n", 1) },
			wantErr: `pools for unknown router "v3"`,
		},
		{
			name:    "bad reserve",
			edit:    func(s string) string { return strings.Replace(s, `reserve1: "1000000000"`, `reserve1: "1e9"`, 1) },
			wantErr: "reserve1",
		},
		{
			name: "thresholds out of order",
			edit: func(s string) string {
				return strings.Replace(s, "  quiet_period: 250ms\n",
					"  quiet_period: 250ms\n  thresholds:\n    low_bps: 300\n    medium_bps: 100\n    high_bps: 500\n    blocked_bps: 1500\n", 1)
			},
			wantErr: "ascending",
		},
		{
			name: "typed confirmation below high",
			edit: func(s string) string {
				return strings.Replace(s, "  quiet_period: 250ms\n",
					"  quiet_period: 250ms\n  thresholds:\n    low_bps: 100\n    medium_bps: 300\n    high_bps: 500\n    blocked_bps: 1500\n    typed_confirm_bps: 400\n", 1)
			},
			wantErr: "typed_confirm_bps",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.edit(validYAML)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfigConversions(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	usdc := common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")

	t.Run("currencies", func(t *testing.T) {
		reg := cfg.Currencies()
		c, ok := reg.Lookup(usdc.Hex())
		require.True(t, ok)
		assert.Equal(t, "USDC", c.Symbol)
		assert.True(t, reg.IsStable(c))
		assert.Equal(t, "WMATIC", reg.Wrapped().Symbol)
		assert.True(t, reg.Native().Native)
	})

	t.Run("versions", func(t *testing.T) {
		versions := cfg.Versions()
		require.Len(t, versions, 2)
		assert.Equal(t, "v2", versions[0].Name)
		assert.Equal(t, swapstate.DefaultBestRoute, versions[0].Route)
		assert.Equal(t, 3, versions[0].MaxHops)
		assert.False(t, versions[0].Bonus)
		assert.Equal(t, swapstate.BestRoute{RouterType: swapstate.RouterTypeBonus, SmartRouter: swapstate.SmartRouterParaswap}, versions[1].Route)
		assert.True(t, versions[1].Bonus)
	})

	t.Run("static pools", func(t *testing.T) {
		pools := cfg.StaticPools()
		require.Len(t, pools["v2"], 1)
		p := pools["v2"][0]
		assert.Equal(t, usdc, p.Token1)
		assert.Equal(t, "1000000000000000000000", p.Reserve0.String())
		assert.Equal(t, big.NewInt(1_000_000_000), p.Reserve1)
		assert.Equal(t, uint16(30), p.FeeBps)
	})

	t.Run("thresholds", func(t *testing.T) {
		th := cfg.Thresholds()
		assert.Equal(t, 0, th.Low.Cmp(big.NewRat(1, 100)))
		assert.Equal(t, 0, th.Medium.Cmp(big.NewRat(3, 100)))
		assert.Equal(t, 0, th.High.Cmp(big.NewRat(5, 100)))
		assert.Equal(t, 0, th.BlockedNonExpert.Cmp(big.NewRat(15, 100)))
		require.NotNil(t, th.TypedConfirm)
		assert.Equal(t, 0, th.TypedConfirm.Cmp(big.NewRat(10, 100)))
	})
}
