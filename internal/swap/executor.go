// Package swap runs a single native-to-token purchase on a Uniswap-V2 style
// router: preconditions, pair and liquidity checks, submission and
// confirmation. Every failure ends the run; nothing is retried.
package swap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"dexbuy/internal/chain"
	"dexbuy/internal/decoder"
	"dexbuy/internal/dex"
	"dexbuy/internal/errs"
	"dexbuy/internal/metrics"
	"dexbuy/internal/session"
	"dexbuy/internal/txbuilder"
	"dexbuy/internal/util"
)

const bpsDenominator = 10_000

// Balances is the part of a session the precondition gates read.
type Balances interface {
	NativeBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, error)
}

type Options struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	PollInterval time.Duration
}

// Executor drives one run at a time over a session. It is not safe for
// concurrent use.
type Executor struct {
	session  *session.Session
	registry *chain.Registry
	metas    dex.TokenMetaSource
	reader   *dex.Reader
	builder  *txbuilder.AutoBuilder
	decoder  *decoder.Decoder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	poll     time.Duration

	stage     Stage
	stageTime time.Time
	now       func() time.Time
}

func NewExecutor(sess *session.Session, registry *chain.Registry, metas dex.TokenMetaSource, builder *txbuilder.AutoBuilder, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Executor{
		session:  sess,
		registry: registry,
		metas:    metas,
		reader:   dex.NewReader(sess.Backend()),
		builder:  builder,
		decoder:  decoder.New(),
		logger:   logger,
		metrics:  opts.Metrics,
		poll:     poll,
		stage:    StageIdle,
		now:      time.Now,
	}
}

func (e *Executor) Stage() Stage {
	return e.stage
}

func (e *Executor) advance(next Stage) {
	now := e.now()
	if !e.stageTime.IsZero() {
		e.metrics.ObserveStage(next.String(), now.Sub(e.stageTime))
	}
	e.logger.Debug("swap stage", "from", e.stage.String(), "stage", next.String())
	e.stage = next
	e.stageTime = now
}

// Run performs the whole purchase described by cfg.
func (e *Executor) Run(ctx context.Context, cfg TransactionConfig) (Result, error) {
	e.stage = StageIdle
	e.stageTime = e.now()

	if err := cfg.Validate(); err != nil {
		return Result{}, e.fail(StageSessionReady, nil, "", err)
	}
	chainEntry, ok := e.registry.Chain(e.session.ChainID().Uint64())
	if !ok {
		return Result{}, e.fail(StageSessionReady, nil, "", fmt.Errorf("%w: chain id %s is not in the registry", errs.ErrConfig, e.session.ChainID()))
	}
	dexEntry, ok := e.registry.Dex(cfg.Dex)
	if !ok {
		return Result{}, e.fail(StageSessionReady, nil, "", fmt.Errorf("%w: unknown dex %q", errs.ErrConfig, cfg.Dex))
	}
	inputMeta, ok := e.metas.Lookup(cfg.Input)
	if !ok {
		return Result{}, e.fail(StageSessionReady, nil, "", fmt.Errorf("%w: no metadata for input token %s", errs.ErrData, cfg.Input.Hex()))
	}
	outputMeta, ok := e.metas.Lookup(cfg.Output)
	if !ok {
		return Result{}, e.fail(StageSessionReady, nil, "", fmt.Errorf("%w: no metadata for output token %s", errs.ErrData, cfg.Output.Hex()))
	}
	path, err := BuildSwapPath(dexEntry, cfg.Input, cfg.Output)
	if err != nil {
		return Result{}, e.fail(StageSessionReady, nil, "", err)
	}
	e.advance(StageSessionReady)
	e.logger.Info("session ready",
		"chain", chainEntry.Name,
		"dex", dexEntry.Name,
		"account", e.session.Address().Hex())

	if err := CheckPreconditions(ctx, e.session, cfg, dexEntry.WrappedNative); err != nil {
		return Result{}, e.fail(StagePreconditionsChecked, nil, "", err)
	}
	e.advance(StagePreconditionsChecked)

	pairWith := cfg.PairHint
	if pairWith == (common.Address{}) {
		pairWith = dexEntry.WrappedNative
	}
	pair, err := e.reader.ResolvePair(ctx, dexEntry.Factory, pairWith, cfg.Output)
	if err != nil {
		return Result{}, e.fail(StagePairResolved, nil, "", err)
	}
	if !pair.Exists() {
		return Result{}, e.fail(StagePairResolved, nil, "", fmt.Errorf("%w: %s has no pool for %s/%s", errs.ErrData, dexEntry.Name, pairWith.Hex(), cfg.Output.Hex()))
	}
	e.advance(StagePairResolved)
	e.logger.Info("pair resolved", "pair", pair.Address.Hex())

	liq, err := e.reader.Liquidity(ctx, pair, cfg.Output, e.metas)
	if err != nil {
		return Result{}, e.fail(StageLiquidityAssessed, nil, "", err)
	}
	if liq.Raw.Sign() == 0 {
		return Result{}, e.fail(StageLiquidityAssessed, nil, "", fmt.Errorf("%w: pair %s holds no %s", errs.ErrData, pair.Address.Hex(), outputMeta.Symbol))
	}
	expected, err := e.reader.Quote(ctx, dexEntry.Router, cfg.AmountInBase, path)
	if err != nil {
		return Result{}, e.fail(StageLiquidityAssessed, nil, "", err)
	}
	if expected.Sign() == 0 {
		return Result{}, e.fail(StageLiquidityAssessed, nil, "", fmt.Errorf("%w: router quotes zero %s for %s %s", errs.ErrData, outputMeta.Symbol, cfg.AmountIn, inputMeta.Symbol))
	}
	minOut := ComputeMinimumOut(expected, cfg.SlippageBps)
	e.advance(StageLiquidityAssessed)
	e.logger.Info("liquidity found",
		"liquidity", liq.Amount.String(),
		"symbol", outputMeta.Symbol,
		"expected_out", displayUnits(expected, outputMeta.Decimals),
		"minimum_out", displayUnits(minOut, outputMeta.Decimals))

	tx, err := e.Submit(ctx, dexEntry, path, cfg.AmountInBase, minOut, cfg.Deadline)
	if err != nil {
		return Result{}, e.fail(StageSubmitted, nil, "", err)
	}
	explorer := chainEntry.TxURL(tx.Hash())
	e.advance(StageSubmitted)
	e.logger.Info("swap submitted", "tx", tx.Hash().Hex(), "explorer", explorer)

	want := decoder.Expect{
		Pair:      pair.Address,
		Token0:    pair.Token0,
		Output:    cfg.Output,
		Recipient: e.session.Address(),
	}
	receipt, err := e.AwaitConfirmation(ctx, tx, want, cfg.ConfirmTimeout)
	if err != nil {
		return Result{}, e.fail(StageConfirmed, tx, explorer, err)
	}
	receipt.AmountOutMinimum = minOut
	receipt.ExplorerURL = explorer
	e.advance(StageConfirmed)

	amountOut := displayUnits(receipt.AmountOut, outputMeta.Decimals)
	e.metrics.SetAmountOut(displayFloat(receipt.AmountOut, outputMeta.Decimals))
	e.metrics.RunFinished(errs.Label(nil))

	return Result{
		Receipt:     receipt,
		Pair:        pair,
		Liquidity:   liq,
		ExpectedOut: expected,
		Summary: Summary{
			InputSymbol:  inputMeta.Symbol,
			InputAmount:  displayUnits(cfg.AmountInBase, inputMeta.Decimals),
			OutputSymbol: outputMeta.Symbol,
			MinimumOut:   displayUnits(minOut, outputMeta.Decimals),
			AmountOut:    amountOut,
			TxHash:       receipt.TxHash.Hex(),
			ExplorerURL:  explorer,
		},
	}, nil
}

func (e *Executor) fail(target Stage, tx *types.Transaction, explorer string, err error) error {
	runErr := &RunError{Stage: target, ExplorerURL: explorer, Err: err}
	if tx != nil {
		runErr.TxHash = tx.Hash()
	}
	e.logger.Debug("swap stage", "from", e.stage.String(), "stage", StageFailed.String(), "error", err)
	e.stage = StageFailed
	e.metrics.RunFinished(errs.Label(err))
	return runErr
}

// CheckPreconditions reads both balances concurrently. A zero native balance
// fails before the input balance is considered. When the input is the
// wrapped native token the purchase is paid in native coin, so the native
// balance is what must cover the amount.
func CheckPreconditions(ctx context.Context, b Balances, cfg TransactionConfig, wrappedNative common.Address) error {
	payingNative := cfg.Input == wrappedNative
	var native, input *big.Int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := b.NativeBalance(gctx)
		if err != nil {
			return err
		}
		native = v
		return nil
	})
	if !payingNative {
		g.Go(func() error {
			v, err := b.TokenBalance(gctx, cfg.Input)
			if err != nil {
				return err
			}
			input = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if native.Sign() == 0 {
		return fmt.Errorf("%w: account has no native balance to pay gas", errs.ErrInsufficientGas)
	}
	if payingNative {
		input = native
	}
	if input.Cmp(cfg.AmountInBase) < 0 {
		return fmt.Errorf("%w: have %s, need %s", errs.ErrInsufficientInputBalance, input, cfg.AmountInBase)
	}
	return nil
}

// BuildSwapPath returns the fixed two-hop route [wrapped native, output].
// Only native purchases are routed; an ERC20 input is a configuration
// error.
func BuildSwapPath(d chain.DexEntry, input, output common.Address) ([]common.Address, error) {
	if input != d.WrappedNative {
		return nil, fmt.Errorf("%w: input %s must be %s's wrapped native token %s", errs.ErrConfig, input.Hex(), d.Name, d.WrappedNative.Hex())
	}
	if output == d.WrappedNative {
		return nil, fmt.Errorf("%w: output must differ from the wrapped native token", errs.ErrConfig)
	}
	return []common.Address{d.WrappedNative, output}, nil
}

// ComputeMinimumOut floors expectedOut * (10000 - bps) / 10000.
func ComputeMinimumOut(expectedOut *big.Int, slippageBps uint32) *big.Int {
	if expectedOut == nil || expectedOut.Sign() <= 0 || slippageBps >= bpsDenominator {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(expectedOut, big.NewInt(int64(bpsDenominator-slippageBps)))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

// Submit builds, signs and broadcasts swapExactETHForTokens paying amountIn.
func (e *Executor) Submit(ctx context.Context, d chain.DexEntry, path []common.Address, amountIn, minOut *big.Int, deadline time.Duration) (*types.Transaction, error) {
	from := e.session.Address()
	deadlineAt := big.NewInt(e.now().Add(deadline).Unix())
	tx, err := e.builder.BuildSwapExactETHForTokensTx(ctx, from, d.Router, path, amountIn, minOut, deadlineAt)
	if err != nil {
		return nil, fmt.Errorf("%w: build swap: %w", errs.ErrSubmission, err)
	}
	if call, err := e.decoder.DecodeInput(tx.Data()); err == nil && call != nil {
		e.logger.Debug("swap call", "method", call.Name, "args", call.Args, "nonce", tx.Nonce(), "gas", tx.Gas())
	}
	signed, err := e.session.SignAndSend(ctx, tx)
	if err != nil {
		e.builder.ResetNonce(from)
		return nil, fmt.Errorf("%w: %w", errs.ErrSubmission, err)
	}
	return signed, nil
}

// AwaitConfirmation polls for the receipt until timeout. Only the wait is
// bounded; the broadcast transaction may still be mined afterwards.
func (e *Executor) AwaitConfirmation(ctx context.Context, tx *types.Transaction, want decoder.Expect, timeout time.Duration) (SwapReceipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var receipt *types.Receipt
	var lastErr error
	err := util.Poll(waitCtx, e.poll, func(ctx context.Context) (bool, error) {
		r, err := e.session.Backend().TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				lastErr = err
				e.logger.Debug("receipt lookup failed", "tx", tx.Hash().Hex(), "error", err)
			}
			return false, nil
		}
		receipt = r
		return true, nil
	})
	if err != nil {
		if lastErr != nil {
			err = fmt.Errorf("%w (last lookup error: %v)", err, lastErr)
		}
		return SwapReceipt{}, fmt.Errorf("%w: tx %s not confirmed within %s, on-chain state unknown: %w", errs.ErrTimeout, tx.Hash().Hex(), timeout, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return SwapReceipt{}, fmt.Errorf("%w: tx %s in block %s", errs.ErrReverted, tx.Hash().Hex(), receipt.BlockNumber)
	}
	amountOut, err := e.decoder.AmountOut(receipt, want)
	if err != nil {
		return SwapReceipt{}, err
	}
	return SwapReceipt{
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber,
		BlockHash:   receipt.BlockHash,
		AmountOut:   amountOut,
		GasUsed:     receipt.GasUsed,
	}, nil
}
