package txbuilder

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexbuy/internal/abis"
)

// FeeParams carries either EIP-1559 caps or, on chains without a base fee,
// a legacy GasPrice. GasPrice takes precedence when set.
type FeeParams struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
}

func (f FeeParams) Legacy() bool {
	return f.GasPrice != nil
}

type BuildParams struct {
	Nonce    uint64
	GasLimit uint64
	Fee      FeeParams
}

type Builder struct {
	ChainID         *big.Int
	DefaultDeadline time.Duration
	now             func() time.Time
}

func NewBuilder(chainID *big.Int, defaultDeadline time.Duration) *Builder {
	if defaultDeadline <= 0 {
		defaultDeadline = 120 * time.Second
	}
	return &Builder{
		ChainID:         new(big.Int).Set(chainID),
		DefaultDeadline: defaultDeadline,
		now:             time.Now,
	}
}

func NewBuilderWithClock(chainID *big.Int, defaultDeadline time.Duration, now func() time.Time) *Builder {
	b := NewBuilder(chainID, defaultDeadline)
	if now != nil {
		b.now = now
	}
	return b
}

// Deadline is the unix time after which the router rejects the swap.
func (b *Builder) Deadline() *big.Int {
	return new(big.Int).SetInt64(b.now().Add(b.DefaultDeadline).Unix())
}

// BuildSwapExactETHForTokensTx pays amountIn of the native asset to router.
func (b *Builder) BuildSwapExactETHForTokensTx(router common.Address, path []common.Address, to common.Address, amountIn, minOut *big.Int, p BuildParams) (*types.Transaction, error) {
	if amountIn == nil || minOut == nil {
		return nil, errors.New("amountIn and minOut are required")
	}
	data, err := buildSwapExactETHData(minOut, path, to, b.Deadline())
	if err != nil {
		return nil, err
	}
	return buildTx(b.ChainID, router, amountIn, data, p)
}

func (b *Builder) BuildSwapExactTokensForTokensTx(router common.Address, path []common.Address, to common.Address, amountIn, minOut *big.Int, p BuildParams) (*types.Transaction, error) {
	if amountIn == nil || minOut == nil {
		return nil, errors.New("amountIn and minOut are required")
	}
	data, err := buildSwapExactTokensData(amountIn, minOut, path, to, b.Deadline())
	if err != nil {
		return nil, err
	}
	return buildTx(b.ChainID, router, big.NewInt(0), data, p)
}

func (b *Builder) BuildApproveTx(token common.Address, spender common.Address, amount *big.Int, p BuildParams) (*types.Transaction, error) {
	if amount == nil {
		return nil, errors.New("amount is required")
	}
	data, err := buildApproveData(spender, amount)
	if err != nil {
		return nil, err
	}
	return buildTx(b.ChainID, token, big.NewInt(0), data, p)
}

func buildSwapExactETHData(minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	if minOut.Sign() < 0 {
		return nil, errors.New("minOut must be non-negative")
	}
	data, err := abis.Router.Pack("swapExactETHForTokens", minOut, path, to, deadline)
	if err != nil {
		return nil, fmt.Errorf("pack swapExactETHForTokens: %w", err)
	}
	return data, nil
}

func buildSwapExactTokensData(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	if amountIn.Sign() <= 0 {
		return nil, errors.New("amountIn must be positive")
	}
	if minOut.Sign() < 0 {
		return nil, errors.New("minOut must be non-negative")
	}
	data, err := abis.Router.Pack("swapExactTokensForTokens", amountIn, minOut, path, to, deadline)
	if err != nil {
		return nil, fmt.Errorf("pack swapExactTokensForTokens: %w", err)
	}
	return data, nil
}

func buildApproveData(spender common.Address, amount *big.Int) ([]byte, error) {
	if amount.Sign() < 0 {
		return nil, errors.New("amount must be non-negative")
	}
	data, err := abis.ERC20.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}

func checkPath(path []common.Address) error {
	if len(path) < 2 {
		return fmt.Errorf("swap path needs at least 2 tokens, got %d", len(path))
	}
	return nil
}

func buildTx(chainID *big.Int, to common.Address, value *big.Int, data []byte, p BuildParams) (*types.Transaction, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}
	if value == nil {
		return nil, errors.New("value is required")
	}
	if value.Sign() < 0 {
		return nil, errors.New("value must be non-negative")
	}
	if p.GasLimit == 0 {
		return nil, errors.New("gasLimit is required")
	}
	if p.Fee.Legacy() {
		if p.Fee.GasPrice.Sign() < 0 {
			return nil, errors.New("gasPrice must be non-negative")
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    p.Nonce,
			GasPrice: p.Fee.GasPrice,
			Gas:      p.GasLimit,
			To:       &to,
			Value:    value,
			Data:     data,
		}), nil
	}
	if p.Fee.MaxFeePerGas == nil || p.Fee.MaxPriorityFeePerGas == nil {
		return nil, errors.New("maxFeePerGas and maxPriorityFeePerGas are required")
	}
	if p.Fee.MaxFeePerGas.Sign() < 0 || p.Fee.MaxPriorityFeePerGas.Sign() < 0 {
		return nil, errors.New("fee values must be non-negative")
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     p.Nonce,
		Gas:       p.GasLimit,
		GasFeeCap: p.Fee.MaxFeePerGas,
		GasTipCap: p.Fee.MaxPriorityFeePerGas,
		To:        &to,
		Value:     value,
		Data:      data,
	}), nil
}
