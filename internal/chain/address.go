package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexbuy/internal/errs"
)

// IsValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
// Single-case bodies carry no checksum and are accepted; a mixed-case body
// must match its EIP-55 checksum.
func IsValidAddress(s string) bool {
	if len(s) != 2+2*common.AddressLength {
		return false
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	body := s[2:]
	for i := 0; i < len(body); i++ {
		if !isHexChar(body[i]) {
			return false
		}
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(s).Hex()[2:] == body
}

// ParseAddress validates s and names field in the error.
func ParseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, fmt.Errorf("%w: %s is required", errs.ErrConfig, field)
	}
	if !IsValidAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not a valid address", errs.ErrConfig, field, s)
	}
	return common.HexToAddress(s), nil
}

func isHexChar(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
