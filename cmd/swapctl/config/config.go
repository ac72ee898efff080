// Package config loads the swapctl YAML configuration.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/prices"
	"github.com/defistate/swapintent-go/protocols/uniswapv2"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDeadline       = 20 * time.Minute
	DefaultQuietPeriod    = 300 * time.Millisecond
	DefaultRateLimit      = 10
	DefaultMetricsAddr    = ":9090"
	DefaultRedisPrefix    = "swapintent"
	DefaultStreamBuffer   = 100
	DefaultReceiptTimeout = 10 * time.Minute
)

// ChainConfig describes the chain swaps run on.
type ChainConfig struct {
	ID      uint64            `yaml:"id"`
	Name    string            `yaml:"name"`
	RPCURL  string            `yaml:"rpc_url"`
	Native  currency.Currency `yaml:"native"`
	Wrapped currency.Currency `yaml:"wrapped"`
}

// RouterConfig is one router version.
type RouterConfig struct {
	Name    string              `yaml:"name"`
	Address common.Address      `yaml:"address"`
	Route   swapstate.BestRoute `yaml:"route"`
	MaxHops int                 `yaml:"max_hops"`
	Bonus   bool                `yaml:"bonus"`
}

// PoolConfig is a static pool. Reserves are decimal strings of smallest units.
type PoolConfig struct {
	Address  common.Address `yaml:"address"`
	Token0   common.Address `yaml:"token0"`
	Token1   common.Address `yaml:"token1"`
	Reserve0 string         `yaml:"reserve0"`
	Reserve1 string         `yaml:"reserve1"`
	FeeBps   uint16         `yaml:"fee_bps"`
}

// LiquidityConfig selects the pool source: a pool stream when StreamURL is
// set, otherwise the static Pools keyed by router name.
type LiquidityConfig struct {
	StreamURL  string                  `yaml:"stream_url"`
	BufferSize uint                    `yaml:"buffer_size"`
	Pools      map[string][]PoolConfig `yaml:"pools"`
}

// ThresholdsConfig are price impact tiers in basis points.
type ThresholdsConfig struct {
	LowBps     int64 `yaml:"low_bps"`
	MediumBps  int64 `yaml:"medium_bps"`
	HighBps    int64 `yaml:"high_bps"`
	BlockedBps int64 `yaml:"blocked_bps"`
	// TypedConfirmBps is where "confirm" must be typed; zero keeps 1000.
	TypedConfirmBps int64 `yaml:"typed_confirm_bps"`
}

// SwapConfig holds the user's swap settings.
type SwapConfig struct {
	// SlippageBps of zero selects automatic slippage.
	SlippageBps   uint16           `yaml:"slippage_bps"`
	Expert        bool             `yaml:"expert"`
	Deadline      time.Duration    `yaml:"deadline"`
	QuietPeriod   time.Duration    `yaml:"quiet_period"`
	RateLimit     float64          `yaml:"rate_limit"`
	Thresholds    ThresholdsConfig `yaml:"thresholds"`
	BadRecipients []common.Address `yaml:"bad_recipients"`
	// ReceiptTimeout bounds the wait for a mined transaction.
	ReceiptTimeout time.Duration `yaml:"receipt_timeout"`
	// PrimaryChainID is the chain trade analytics are fired for. It
	// defaults to chain.id.
	PrimaryChainID uint64 `yaml:"primary_chain_id"`
}

// RedisConfig enables the redis ledger and analytics sink when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// MetricsConfig enables the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the swapctl configuration file.
type Config struct {
	Chain       ChainConfig         `yaml:"chain"`
	Tokens      []currency.Currency `yaml:"tokens"`
	Stablecoins []common.Address    `yaml:"stablecoins"`
	Routers     []RouterConfig      `yaml:"routers"`
	Liquidity   LiquidityConfig     `yaml:"liquidity"`
	Swap        SwapConfig          `yaml:"swap"`
	Redis       RedisConfig         `yaml:"redis"`
	Metrics     MetricsConfig       `yaml:"metrics"`
	// Wallet names this client in analytics events.
	Wallet string `yaml:"wallet"`
}

// LoadConfig reads, defaults and validates the file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Chain.Native.Native = true
	if c.Chain.Native.Decimals == 0 {
		c.Chain.Native.Decimals = 18
	}
	if c.Chain.Wrapped.Decimals == 0 {
		c.Chain.Wrapped.Decimals = c.Chain.Native.Decimals
	}
	if c.Swap.Deadline == 0 {
		c.Swap.Deadline = DefaultDeadline
	}
	if c.Swap.QuietPeriod == 0 {
		c.Swap.QuietPeriod = DefaultQuietPeriod
	}
	if c.Swap.RateLimit == 0 {
		c.Swap.RateLimit = DefaultRateLimit
	}
	if c.Swap.ReceiptTimeout == 0 {
		c.Swap.ReceiptTimeout = DefaultReceiptTimeout
	}
	if c.Swap.PrimaryChainID == 0 {
		c.Swap.PrimaryChainID = c.Chain.ID
	}
	if c.Swap.Thresholds == (ThresholdsConfig{}) {
		c.Swap.Thresholds = ThresholdsConfig{LowBps: 100, MediumBps: 300, HighBps: 500, BlockedBps: 1500, TypedConfirmBps: 1000}
	}
	if c.Liquidity.BufferSize == 0 {
		c.Liquidity.BufferSize = DefaultStreamBuffer
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = DefaultRedisPrefix
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Wallet == "" {
		c.Wallet = "swapctl"
	}
}

func (c *Config) validate() error {
	if c.Chain.ID == 0 {
		return errors.New("config: chain.id is required")
	}
	if c.Chain.RPCURL == "" {
		return errors.New("config: chain.rpc_url is required")
	}
	if c.Chain.Native.Symbol == "" {
		return errors.New("config: chain.native.symbol is required")
	}
	if c.Chain.Wrapped.Address == (common.Address{}) {
		return errors.New("config: chain.wrapped.address is required")
	}
	if len(c.Routers) == 0 {
		return errors.New("config: at least one router is required")
	}
	seen := make(map[string]struct{}, len(c.Routers))
	for _, r := range c.Routers {
		if r.Name == "" {
			return errors.New("config: routers[].name is required")
		}
		if r.Address == (common.Address{}) {
			return fmt.Errorf("config: router %q has no address", r.Name)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("config: duplicate router %q", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	if c.Liquidity.StreamURL == "" && len(c.Liquidity.Pools) == 0 {
		return errors.New("config: liquidity.stream_url or liquidity.pools is required")
	}
	for name, pools := range c.Liquidity.Pools {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("config: pools for unknown router %q", name)
		}
		for i, p := range pools {
			if _, err := parseReserve(p.Reserve0); err != nil {
				return fmt.Errorf("config: pools[%s][%d].reserve0: %w", name, i, err)
			}
			if _, err := parseReserve(p.Reserve1); err != nil {
				return fmt.Errorf("config: pools[%s][%d].reserve1: %w", name, i, err)
			}
		}
	}
	th := c.Swap.Thresholds
	if !(0 < th.LowBps && th.LowBps <= th.MediumBps && th.MediumBps <= th.HighBps && th.HighBps <= th.BlockedBps) {
		return errors.New("config: swap.thresholds must be positive and ascending")
	}
	if th.TypedConfirmBps < 0 || (th.TypedConfirmBps > 0 && th.TypedConfirmBps < th.HighBps) {
		return errors.New("config: swap.thresholds.typed_confirm_bps must not be below high_bps")
	}
	return nil
}

func parseReserve(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid reserve %q", s)
	}
	return v, nil
}

// Currencies builds the currency registry of the configured chain.
func (c *Config) Currencies() *currency.Registry {
	return currency.NewRegistry(c.Chain.Native, c.Chain.Wrapped, c.Tokens, c.Stablecoins)
}

// Versions returns the configured routers in priority order.
func (c *Config) Versions() []route.Version {
	out := make([]route.Version, 0, len(c.Routers))
	for _, r := range c.Routers {
		rt := r.Route
		if rt == (swapstate.BestRoute{}) {
			rt = swapstate.DefaultBestRoute
		}
		out = append(out, route.Version{Name: r.Name, Router: r.Address, Route: rt, MaxHops: r.MaxHops, Bonus: r.Bonus})
	}
	return out
}

// StaticPools returns the configured pools keyed by router name.
func (c *Config) StaticPools() map[string][]uniswapv2.Pool {
	out := make(map[string][]uniswapv2.Pool, len(c.Liquidity.Pools))
	for name, pools := range c.Liquidity.Pools {
		for _, p := range pools {
			// Reserves were checked by validate.
			r0, _ := parseReserve(p.Reserve0)
			r1, _ := parseReserve(p.Reserve1)
			out[name] = append(out[name], uniswapv2.Pool{
				Address:  p.Address,
				Token0:   p.Token0,
				Token1:   p.Token1,
				Reserve0: r0,
				Reserve1: r1,
				FeeBps:   p.FeeBps,
			})
		}
	}
	return out
}

// Thresholds converts the configured tiers.
func (c *Config) Thresholds() prices.Thresholds {
	th := c.Swap.Thresholds
	out := prices.Thresholds{
		Low:              big.NewRat(th.LowBps, 10000),
		Medium:           big.NewRat(th.MediumBps, 10000),
		High:             big.NewRat(th.HighBps, 10000),
		BlockedNonExpert: big.NewRat(th.BlockedBps, 10000),
	}
	if th.TypedConfirmBps > 0 {
		out.TypedConfirm = big.NewRat(th.TypedConfirmBps, 10000)
	}
	return out
}
