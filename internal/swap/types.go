package swap

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dexbuy/internal/dex"
	"dexbuy/internal/errs"
)

type Stage int

const (
	StageIdle Stage = iota
	StageSessionReady
	StagePreconditionsChecked
	StagePairResolved
	StageLiquidityAssessed
	StageSubmitted
	StageConfirmed
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageSessionReady:
		return "session_ready"
	case StagePreconditionsChecked:
		return "preconditions_checked"
	case StagePairResolved:
		return "pair_resolved"
	case StageLiquidityAssessed:
		return "liquidity_assessed"
	case StageSubmitted:
		return "submitted"
	case StageConfirmed:
		return "confirmed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// TransactionConfig is one purchase request. Amounts are base units and
// slippage is basis points.
type TransactionConfig struct {
	Dex            string
	Input          common.Address
	Output         common.Address
	PairHint       common.Address
	AmountIn       string
	AmountInBase   *big.Int
	SlippageBps    uint32
	Deadline       time.Duration
	ConfirmTimeout time.Duration
}

func (c TransactionConfig) Validate() error {
	if c.Dex == "" {
		return fmt.Errorf("%w: dex is required", errs.ErrConfig)
	}
	if c.Input == (common.Address{}) || c.Output == (common.Address{}) {
		return fmt.Errorf("%w: input and output tokens are required", errs.ErrConfig)
	}
	if c.AmountInBase == nil || c.AmountInBase.Sign() <= 0 {
		return fmt.Errorf("%w: amount in must be positive", errs.ErrConfig)
	}
	if c.SlippageBps == 0 || c.SlippageBps >= bpsDenominator {
		return fmt.Errorf("%w: slippage must be between 1 and 9999 bps, got %d", errs.ErrConfig, c.SlippageBps)
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("%w: deadline must be positive", errs.ErrConfig)
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("%w: confirm timeout must be positive", errs.ErrConfig)
	}
	return nil
}

type SwapReceipt struct {
	TxHash           common.Hash
	BlockNumber      *big.Int
	BlockHash        common.Hash
	AmountOutMinimum *big.Int
	AmountOut        *big.Int
	GasUsed          uint64
	ExplorerURL      string
}

// Summary is the human-readable report of a confirmed purchase.
type Summary struct {
	InputSymbol  string
	InputAmount  string
	OutputSymbol string
	MinimumOut   string
	AmountOut    string
	TxHash       string
	ExplorerURL  string
}

func (s Summary) String() string {
	return fmt.Sprintf("From %s (%s %s) -> %s (minimum %s %s, received %s %s)",
		s.InputSymbol, s.InputAmount, s.InputSymbol,
		s.OutputSymbol, s.MinimumOut, s.OutputSymbol, s.AmountOut, s.OutputSymbol)
}

type Result struct {
	Receipt     SwapReceipt
	Pair        dex.Pair
	Liquidity   dex.Liquidity
	ExpectedOut *big.Int
	Summary     Summary
}

// RunError reports the stage a run failed to reach. TxHash and ExplorerURL
// are set once a transaction has been broadcast.
type RunError struct {
	Stage       Stage
	TxHash      common.Hash
	ExplorerURL string
	Err         error
}

func (e *RunError) Error() string {
	if e == nil || e.Err == nil {
		return "swap failed"
	}
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("swap failed before %s (tx %s): %v", e.Stage, e.TxHash.Hex(), e.Err)
	}
	return fmt.Sprintf("swap failed before %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func displayUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

func displayFloat(v *big.Int, decimals uint8) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v, -int32(decimals)).Float64()
	return f
}
