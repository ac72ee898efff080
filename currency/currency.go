// Package currency models the assets a swap moves: the chain's native asset
// and ERC-20 tokens, plus exact smallest-unit amounts of them.
package currency

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeID is the currency id under which the chain's native asset is
// selected, regardless of the asset's actual symbol.
const NativeID = "ETH"

// Currency is either the native asset (Native set, Address zero) or an ERC-20 token.
type Currency struct {
	Address  common.Address `json:"address,omitempty" yaml:"address"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Name     string         `json:"name,omitempty" yaml:"name"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
	Native   bool           `json:"native,omitempty" yaml:"native"`
}

// NewToken returns an ERC-20 currency.
func NewToken(addr common.Address, symbol string, decimals uint8) Currency {
	return Currency{Address: addr, Symbol: symbol, Decimals: decimals}
}

// NewNative returns the chain's native currency.
func NewNative(symbol string, decimals uint8) Currency {
	return Currency{Symbol: symbol, Decimals: decimals, Native: true}
}

// ID is the identifier stored in swap state: NativeID for the native asset
// and the checksummed address for tokens.
func (c Currency) ID() string {
	if c.Native {
		return NativeID
	}
	return c.Address.Hex()
}

// IsToken reports whether c is an ERC-20 token.
func (c Currency) IsToken() bool {
	return !c.Native
}

// Equal compares by identity, not by metadata.
func (c Currency) Equal(o Currency) bool {
	if c.Native || o.Native {
		return c.Native == o.Native
	}
	return c.Address == o.Address
}

func (c Currency) String() string {
	if c.Symbol != "" {
		return c.Symbol
	}
	return c.ID()
}

// IsNativeID reports whether id selects the native asset.
func IsNativeID(id string) bool {
	return strings.EqualFold(id, NativeID)
}
