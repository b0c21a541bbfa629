package txbuilder

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type AutoBuilderConfig struct {
	GasLimitMultiplier float64
}

// AutoBuilder fills nonce, fees and gas limit from the chain before handing
// the call to Builder.
type AutoBuilder struct {
	builder *Builder
	client  ChainClient
	oracle  *FeeOracle
	cfg     AutoBuilderConfig
	nonce   NonceProvider
}

func NewAutoBuilder(builder *Builder, client ChainClient, oracle *FeeOracle, cfg AutoBuilderConfig) *AutoBuilder {
	if cfg.GasLimitMultiplier <= 0 {
		cfg.GasLimitMultiplier = 1.2
	}
	return &AutoBuilder{builder: builder, client: client, oracle: oracle, cfg: cfg}
}

func (a *AutoBuilder) SetNonceProvider(provider NonceProvider) {
	a.nonce = provider
}

// BuildSwapExactETHForTokensTx sends the output to from. A nil deadline uses
// the builder's default window.
func (a *AutoBuilder) BuildSwapExactETHForTokensTx(ctx context.Context, from, router common.Address, path []common.Address, amountIn, minOut, deadline *big.Int) (*types.Transaction, error) {
	if a.builder == nil || a.client == nil {
		return nil, errors.New("builder and client are required")
	}
	if amountIn == nil || minOut == nil {
		return nil, errors.New("amountIn and minOut are required")
	}
	data, err := buildSwapExactETHData(minOut, path, from, a.deadline(deadline))
	if err != nil {
		return nil, err
	}
	return a.buildTx(ctx, from, router, amountIn, data)
}

func (a *AutoBuilder) BuildSwapExactTokensForTokensTx(ctx context.Context, from, router common.Address, path []common.Address, amountIn, minOut, deadline *big.Int) (*types.Transaction, error) {
	if a.builder == nil || a.client == nil {
		return nil, errors.New("builder and client are required")
	}
	if amountIn == nil || minOut == nil {
		return nil, errors.New("amountIn and minOut are required")
	}
	data, err := buildSwapExactTokensData(amountIn, minOut, path, from, a.deadline(deadline))
	if err != nil {
		return nil, err
	}
	return a.buildTx(ctx, from, router, big.NewInt(0), data)
}

func (a *AutoBuilder) BuildApproveTx(ctx context.Context, from, token, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	if a.builder == nil || a.client == nil {
		return nil, errors.New("builder and client are required")
	}
	if amount == nil {
		return nil, errors.New("amount is required")
	}
	data, err := buildApproveData(spender, amount)
	if err != nil {
		return nil, err
	}
	return a.buildTx(ctx, from, token, big.NewInt(0), data)
}

func (a *AutoBuilder) buildTx(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	fees, err := a.fees(ctx)
	if err != nil {
		return nil, err
	}
	gasLimit, err := a.estimateGas(ctx, from, to, value, data, fees)
	if err != nil {
		return nil, err
	}
	nonce, err := a.nextNonce(ctx, from)
	if err != nil {
		return nil, err
	}
	params := BuildParams{
		Nonce:    nonce,
		GasLimit: gasLimit,
		Fee:      fees,
	}
	return buildTx(a.builder.ChainID, to, value, data, params)
}

func (a *AutoBuilder) deadline(d *big.Int) *big.Int {
	if d != nil {
		return d
	}
	return a.builder.Deadline()
}

func (a *AutoBuilder) nextNonce(ctx context.Context, from common.Address) (uint64, error) {
	if a.nonce != nil {
		return a.nonce.Next(ctx, from)
	}
	return a.client.PendingNonceAt(ctx, from)
}

// ResetNonce drops the cached nonce after a failed sign or broadcast.
func (a *AutoBuilder) ResetNonce(from common.Address) {
	if a.nonce != nil {
		a.nonce.Reset(from)
	}
}

func (a *AutoBuilder) ChainID() *big.Int {
	if a.builder == nil || a.builder.ChainID == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.builder.ChainID)
}

func (a *AutoBuilder) fees(ctx context.Context) (FeeParams, error) {
	if a.oracle == nil {
		return FeeParams{}, errors.New("fee oracle is not configured")
	}
	return a.oracle.Fees(ctx)
}

func (a *AutoBuilder) estimateGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte, fees FeeParams) (uint64, error) {
	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	}
	if fees.Legacy() {
		msg.GasPrice = fees.GasPrice
	} else {
		msg.GasFeeCap = fees.MaxFeePerGas
		msg.GasTipCap = fees.MaxPriorityFeePerGas
	}
	gas, err := a.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, &EstimateGasError{Err: err, CallMsg: msg}
	}
	return applyGasMultiplier(gas, a.cfg.GasLimitMultiplier), nil
}

func applyGasMultiplier(gas uint64, mult float64) uint64 {
	if mult <= 0 {
		return gas
	}
	adjusted := uint64(float64(gas) * mult)
	if adjusted < gas {
		return gas
	}
	return adjusted
}

func GweiToWei(gwei float64) (*big.Int, error) {
	if gwei < 0 {
		return nil, errors.New("gwei must be non-negative")
	}
	v := new(big.Rat).SetFloat64(gwei)
	v.Mul(v, new(big.Rat).SetInt(big.NewInt(1_000_000_000)))
	out := new(big.Int)
	out.Div(v.Num(), v.Denom())
	return out, nil
}
