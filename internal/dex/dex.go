// Package dex reads Uniswap-V2 state: pair discovery through the factory,
// pair reserves and router quotes.
package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dexbuy/internal/abis"
	"dexbuy/internal/errs"
)

// Pair is a resolved pool. The zero Pair means the factory has no pool for
// the requested tokens.
type Pair struct {
	Address common.Address
	Token0  common.Address
	Token1  common.Address
}

func (p Pair) Exists() bool {
	return p.Address != (common.Address{})
}

// Has reports whether token is one side of the pair.
func (p Pair) Has(token common.Address) bool {
	return p.Exists() && (token == p.Token0 || token == p.Token1)
}

type TokenMeta struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

type TokenMetaSource interface {
	Lookup(addr common.Address) (TokenMeta, bool)
}

// Liquidity is the reserve of one token of a pair.
type Liquidity struct {
	Token  common.Address
	Raw    *big.Int
	Amount decimal.Decimal
}

type Reader struct {
	caller ethereum.ContractCaller
}

func NewReader(caller ethereum.ContractCaller) *Reader {
	return &Reader{caller: caller}
}

// ResolvePair asks factory for the pool of tokenA and tokenB. The factory
// is order-independent, so swapping the arguments yields the same pair.
func (r *Reader) ResolvePair(ctx context.Context, factory, tokenA, tokenB common.Address) (Pair, error) {
	out, err := r.call(ctx, abis.Factory, factory, "getPair", tokenA, tokenB)
	if err != nil {
		return Pair{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return Pair{}, fmt.Errorf("%w: getPair: unexpected result type %T", errs.ErrContractCall, out[0])
	}
	if addr == (common.Address{}) {
		return Pair{}, nil
	}
	token0, err := r.address(ctx, addr, "token0")
	if err != nil {
		return Pair{}, err
	}
	token1, err := r.address(ctx, addr, "token1")
	if err != nil {
		return Pair{}, err
	}
	return Pair{Address: addr, Token0: token0, Token1: token1}, nil
}

// Liquidity reads the pair reserves and returns the one belonging to
// target, scaled by the token's decimals.
func (r *Reader) Liquidity(ctx context.Context, pair Pair, target common.Address, metas TokenMetaSource) (Liquidity, error) {
	if !pair.Exists() {
		return Liquidity{}, fmt.Errorf("%w: no pair for %s", errs.ErrData, target.Hex())
	}
	if !pair.Has(target) {
		return Liquidity{}, fmt.Errorf("%w: token %s is not in pair %s", errs.ErrData, target.Hex(), pair.Address.Hex())
	}
	if metas == nil {
		return Liquidity{}, fmt.Errorf("%w: no token metadata source", errs.ErrData)
	}
	meta, ok := metas.Lookup(target)
	if !ok {
		return Liquidity{}, fmt.Errorf("%w: no metadata for token %s", errs.ErrData, target.Hex())
	}

	out, err := r.call(ctx, abis.Pair, pair.Address, "getReserves")
	if err != nil {
		return Liquidity{}, err
	}
	reserve0, ok0 := out[0].(*big.Int)
	reserve1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return Liquidity{}, fmt.Errorf("%w: getReserves: unexpected result types", errs.ErrContractCall)
	}
	raw := reserve0
	if target == pair.Token1 {
		raw = reserve1
	}
	return Liquidity{
		Token:  target,
		Raw:    new(big.Int).Set(raw),
		Amount: decimal.NewFromBigInt(raw, -int32(meta.Decimals)),
	}, nil
}

// Quote returns the router's expected output for amountIn along path.
func (r *Reader) Quote(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: quote path needs at least 2 tokens", errs.ErrData)
	}
	out, err := r.call(ctx, abis.Router, router, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("%w: getAmountsOut: unexpected result", errs.ErrContractCall)
	}
	return amounts[len(amounts)-1], nil
}

func (r *Reader) address(ctx context.Context, contract common.Address, method string) (common.Address, error) {
	out, err := r.call(ctx, abis.Pair, contract, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s: unexpected result type %T", errs.ErrContractCall, method, out[0])
	}
	return addr, nil
}

func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %w", errs.ErrContractCall, method, err)
	}
	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", errs.ErrContractCall, method, to.Hex(), err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s on %s: empty result", errs.ErrContractCall, method, to.Hex())
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", errs.ErrContractCall, method, err)
	}
	return out, nil
}
