package txbuilder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"dexbuy/internal/abis"
)

// ReadERC20Balance calls balanceOf(owner) at the latest block.
func ReadERC20Balance(ctx context.Context, caller ethereum.ContractCaller, token, owner common.Address) (*big.Int, error) {
	out, err := callERC20(ctx, caller, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unexpected result type %T", out[0])
	}
	return v, nil
}

func ReadERC20Decimals(ctx context.Context, caller ethereum.ContractCaller, token common.Address) (uint8, error) {
	out, err := callERC20(ctx, caller, token, "decimals")
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected result type %T", out[0])
	}
	return v, nil
}

// ReadERC20Symbol also accepts the bytes32 symbol some early tokens return.
func ReadERC20Symbol(ctx context.Context, caller ethereum.ContractCaller, token common.Address) (string, error) {
	data, err := abis.ERC20.Pack("symbol")
	if err != nil {
		return "", err
	}
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return "", err
	}
	if out, err := abis.ERC20.Unpack("symbol", raw); err == nil {
		if s, ok := out[0].(string); ok {
			return s, nil
		}
	}
	if len(raw) == 32 {
		return string(bytes.TrimRight(raw, "\x00")), nil
	}
	return "", fmt.Errorf("symbol: cannot decode %d bytes", len(raw))
}

func callERC20(ctx context.Context, caller ethereum.ContractCaller, token common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, errors.New("contract caller is nil")
	}
	data, err := abis.ERC20.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: empty result from %s", method, token.Hex())
	}
	out, err := abis.ERC20.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

// ParseUnits converts a decimal string to base units without float rounding.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.New("amount is empty")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, errors.New("amount must be non-negative")
	}
	parts := strings.SplitN(amount, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > int(decimals) {
		return nil, fmt.Errorf("too many decimal places: %d > %d", len(fracPart), decimals)
	}
	fracPart = fracPart + strings.Repeat("0", int(decimals)-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, errors.New("invalid number format")
	}
	return v, nil
}
