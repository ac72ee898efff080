package currency

import (
	"github.com/ethereum/go-ethereum/common"
)

// Registry provides indexed access to the currencies known on one chain: the
// native asset, its wrapped token, the token list and the stablecoin set.
type Registry struct {
	native    Currency
	wrapped   Currency
	byAddress map[common.Address]Currency
	stable    map[common.Address]struct{}
	all       []Currency
}

// NewRegistry indexes tokens. The wrapped native token is always indexed.
func NewRegistry(native, wrapped Currency, tokens []Currency, stablecoins []common.Address) *Registry {
	native.Native = true
	byAddress := make(map[common.Address]Currency, len(tokens)+1)
	all := make([]Currency, 0, len(tokens)+1)

	byAddress[wrapped.Address] = wrapped
	all = append(all, wrapped)
	for _, t := range tokens {
		if _, dup := byAddress[t.Address]; dup {
			continue
		}
		byAddress[t.Address] = t
		all = append(all, t)
	}

	stable := make(map[common.Address]struct{}, len(stablecoins))
	for _, s := range stablecoins {
		stable[s] = struct{}{}
	}

	return &Registry{
		native:    native,
		wrapped:   wrapped,
		byAddress: byAddress,
		stable:    stable,
		all:       all,
	}
}

// Native returns the chain's native currency.
func (r *Registry) Native() Currency {
	return r.native
}

// Wrapped returns the ERC-20 that stands in for the native asset in pools.
func (r *Registry) Wrapped() Currency {
	return r.wrapped
}

// Wrap maps the native currency to its wrapped token and returns tokens unchanged.
func (r *Registry) Wrap(c Currency) Currency {
	if c.Native {
		return r.wrapped
	}
	return c
}

// GetByAddress retrieves a token by its contract address.
func (r *Registry) GetByAddress(addr common.Address) (Currency, bool) {
	c, ok := r.byAddress[addr]
	return c, ok
}

// Lookup resolves a swap state currency id. Empty and unknown ids are not found.
func (r *Registry) Lookup(id string) (Currency, bool) {
	if id == "" {
		return Currency{}, false
	}
	if IsNativeID(id) {
		return r.native, true
	}
	addr, ok := CheckAddress(id)
	if !ok {
		return Currency{}, false
	}
	return r.GetByAddress(addr)
}

// IsStable reports whether c is a configured stablecoin. The native asset never is.
func (r *Registry) IsStable(c Currency) bool {
	if c.Native {
		return false
	}
	_, ok := r.stable[c.Address]
	return ok
}

// All returns a copy of every indexed token, wrapped native first.
func (r *Registry) All() []Currency {
	out := make([]Currency, len(r.all))
	copy(out, r.all)
	return out
}
