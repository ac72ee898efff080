package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/route"
	"github.com/defistate/swapintent-go/swapstate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var errNoStablecoin = errors.New("no stablecoin configured")

// routeOracle prices a token by quoting one whole unit of it into the first
// configured stablecoin, which is taken to be worth one dollar.
type routeOracle struct {
	resolver   *route.Resolver
	currencies *currency.Registry
	stable     *currency.Currency
}

func newRouteOracle(resolver *route.Resolver, currencies *currency.Registry, stablecoins []common.Address) *routeOracle {
	o := &routeOracle{resolver: resolver, currencies: currencies}
	for _, addr := range stablecoins {
		if c, ok := currencies.GetByAddress(addr); ok {
			o.stable = &c
			break
		}
	}
	return o
}

func (o *routeOracle) USDPrice(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	if o.stable == nil {
		return decimal.Zero, errNoStablecoin
	}
	in, ok := o.currencies.GetByAddress(token)
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown token %s", token.Hex())
	}
	if o.currencies.IsStable(in) {
		return decimal.NewFromInt(1), nil
	}

	trades, err := o.resolver.Resolve(ctx, route.Request{
		Input:       &in,
		Output:      o.stable,
		TypedValue:  "1",
		Independent: swapstate.FieldInput,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to quote %s: %w", in.Symbol, err)
	}
	best := route.Best(trades)
	if best == nil {
		return decimal.Zero, fmt.Errorf("no route from %s to %s", in.Symbol, o.stable.Symbol)
	}
	return best.OutputAmount().Decimal(), nil
}
