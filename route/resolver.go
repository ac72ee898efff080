package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/protocols/uniswapv2"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var (
	// ErrSourceUnavailable is returned when no version could be quoted because
	// every pool lookup failed.
	ErrSourceUnavailable = errors.New("liquidity source unavailable")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PoolSource supplies the current pools of a router version.
type PoolSource interface {
	Pools(ctx context.Context, version string) ([]uniswapv2.Pool, error)
}

// Request is the quote-relevant part of the swap intent. Nil currencies are
// unselected.
type Request struct {
	Input       *currency.Currency
	Output      *currency.Currency
	TypedValue  string
	Independent swapstate.Field
}

// Config holds the configuration for the Resolver.
type Config struct {
	Versions []Version
	Source   PoolSource
	// Wrapped is the ERC-20 standing in for the native asset inside pools.
	Wrapped currency.Currency
	// Limiter bounds calls into Source. Nil means unlimited.
	Limiter  *rate.Limiter
	Logger   Logger
	Registry prometheus.Registerer
}

func (c *Config) validate() error {
	if len(c.Versions) == 0 {
		return errors.New("config: at least one Version is required")
	}
	seen := make(map[string]struct{}, len(c.Versions))
	for _, v := range c.Versions {
		if v.Name == "" {
			return errors.New("config: Version.Name is required")
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("config: duplicate Version %q", v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	if c.Source == nil {
		return errors.New("config: Source is required")
	}
	if c.Wrapped.Native {
		return errors.New("config: Wrapped must be a token")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	return nil
}

// Resolver quotes a Request against every configured router version.
type Resolver struct {
	versions []Version
	source   PoolSource
	wrapped  currency.Currency
	limiter  *rate.Limiter
	logger   Logger
	metrics  *Metrics
}

// NewResolver validates cfg and builds a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	versions := make([]Version, len(cfg.Versions))
	copy(versions, cfg.Versions)

	return &Resolver{
		versions: versions,
		source:   cfg.Source,
		wrapped:  cfg.Wrapped,
		limiter:  limiter,
		logger:   cfg.Logger,
		metrics:  NewMetrics(cfg.Registry),
	}, nil
}

// Versions returns the configured router versions in priority order.
func (r *Resolver) Versions() []Version {
	out := make([]Version, len(r.versions))
	copy(out, r.versions)
	return out
}

// Resolve quotes req against every version.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]*Trade, error) {
	return r.ResolveVersions(ctx, req, r.versions)
}

// ResolveVersions quotes req against versions and returns at most one trade
// per version, in the order given. An unselected currency or a missing,
// unparseable or zero amount is not an error: the result is simply empty.
func (r *Resolver) ResolveVersions(ctx context.Context, req Request, versions []Version) ([]*Trade, error) {
	if req.Input == nil || req.Output == nil {
		return nil, nil
	}
	tokenIn := r.wrap(*req.Input).Address
	tokenOut := r.wrap(*req.Output).Address
	if tokenIn == tokenOut {
		return nil, nil
	}

	tradeType := TradeTypeFor(req.Independent)
	independent := *req.Input
	if tradeType == ExactOutput {
		independent = *req.Output
	}
	amount, ok := currency.TryParseAmount(req.TypedValue, independent)
	if !ok {
		return nil, nil
	}

	var (
		trades []*Trade
		errs   []error
	)
	for _, v := range versions {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		trade, err := r.quote(ctx, v, tradeType, *req.Input, *req.Output, amount)
		switch {
		case err != nil:
			r.metrics.resolutions.WithLabelValues(v.Name, "error").Inc()
			r.logger.Warn("Failed to quote router version", "version", v.Name, "error", err)
			errs = append(errs, fmt.Errorf("version %s: %w", v.Name, err))
		case trade == nil:
			r.metrics.resolutions.WithLabelValues(v.Name, "no_route").Inc()
		default:
			r.metrics.resolutions.WithLabelValues(v.Name, "trade").Inc()
			trades = append(trades, trade)
		}
	}

	if len(trades) == 0 && len(errs) > 0 && len(errs) == len(versions) {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, errors.Join(errs...))
	}
	r.logger.Debug("Resolved trades", "type", tradeType, "amount", amount.String(), "trades", len(trades))
	return trades, nil
}

func (r *Resolver) quote(ctx context.Context, v Version, tt TradeType, in, out currency.Currency, amount currency.Amount) (*Trade, error) {
	timer := prometheus.NewTimer(r.metrics.resolveDuration.WithLabelValues(v.Name))
	defer timer.ObserveDuration()

	pools, err := r.source.Pools(ctx, v.Name)
	if err != nil {
		return nil, err
	}

	maxHops := v.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	wrappedIn := r.wrap(in)
	tokenIn, tokenOut := wrappedIn.Address, r.wrap(out).Address

	var (
		p     path
		found bool
	)
	if tt == ExactInput {
		p, found = bestExactIn(pools, tokenIn, tokenOut, amount.Raw, maxHops)
	} else {
		p, found = bestExactOut(pools, tokenIn, tokenOut, amount.Raw, maxHops)
	}
	if !found {
		return nil, nil
	}

	return newTrade(v, tt, currency.NewAmount(in, p.amountIn), currency.NewAmount(out, p.amountOut), wrappedIn, p), nil
}

func (r *Resolver) wrap(c currency.Currency) currency.Currency {
	if c.Native {
		return r.wrapped
	}
	return c
}

// Best picks the trade that gives the most output (exact input) or takes
// the least input (exact output). Ties keep the earlier trade.
func Best(trades []*Trade) *Trade {
	var best *Trade
	for _, t := range trades {
		if t == nil {
			continue
		}
		if best == nil || better(t, best) {
			best = t
		}
	}
	return best
}

func better(a, b *Trade) bool {
	if a.tradeType == ExactOutput {
		return a.input.Raw.Cmp(b.input.Raw) < 0
	}
	return a.output.Raw.Cmp(b.output.Raw) > 0
}
