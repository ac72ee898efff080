package currency

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CheckAddress validates s as an account address and returns it checksummed.
// Forty hex digits with an optional 0x prefix are accepted; input that mixes
// upper and lower case must carry a valid EIP-55 checksum.
func CheckAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(s)

	hexPart := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if hexPart != strings.ToLower(hexPart) && hexPart != strings.ToUpper(hexPart) {
		if addr.Hex()[2:] != hexPart {
			return common.Address{}, false
		}
	}
	return addr, true
}

// IsAddress reports whether s is a valid address per CheckAddress.
func IsAddress(s string) bool {
	_, ok := CheckAddress(s)
	return ok
}
