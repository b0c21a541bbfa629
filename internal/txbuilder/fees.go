package txbuilder

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"time"
)

type FeeOracleConfig struct {
	MaxAge            time.Duration
	MaxFeeMultiplier  float64
	MinPriorityFeeWei *big.Int
}

// FeeOracle caches the latest base fee and tip for MaxAge. Chains whose
// headers carry no base fee get legacy gas-price quotes instead.
type FeeOracle struct {
	client ChainClient
	cfg    FeeOracleConfig

	mu       sync.RWMutex
	baseFee  *big.Int
	tipCap   *big.Int
	gasPrice *big.Int
	lastSync time.Time
}

func NewFeeOracle(client ChainClient, cfg FeeOracleConfig) *FeeOracle {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}
	if !(cfg.MaxFeeMultiplier > 0) || math.IsInf(cfg.MaxFeeMultiplier, 0) {
		cfg.MaxFeeMultiplier = 2.0
	}
	return &FeeOracle{client: client, cfg: cfg}
}

func (o *FeeOracle) Refresh(ctx context.Context) error {
	header, err := o.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return err
	}
	if header.BaseFee == nil {
		// The tip floor does not apply to a legacy gas price.
		price, err := o.client.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		o.store(nil, nil, price)
		return nil
	}
	tip, err := o.client.SuggestGasTipCap(ctx)
	if err != nil {
		return err
	}
	if o.cfg.MinPriorityFeeWei != nil && tip.Cmp(o.cfg.MinPriorityFeeWei) < 0 {
		tip = new(big.Int).Set(o.cfg.MinPriorityFeeWei)
	}
	o.store(new(big.Int).Set(header.BaseFee), tip, nil)
	return nil
}

func (o *FeeOracle) store(baseFee, tip, gasPrice *big.Int) {
	o.mu.Lock()
	o.baseFee = baseFee
	o.tipCap = tip
	o.gasPrice = gasPrice
	o.lastSync = time.Now()
	o.mu.Unlock()
}

func (o *FeeOracle) Fees(ctx context.Context) (FeeParams, error) {
	snap, ok := o.snapshot()
	if !ok || time.Since(snap.at) > o.cfg.MaxAge {
		if err := o.Refresh(ctx); err != nil {
			return FeeParams{}, err
		}
		if snap, ok = o.snapshot(); !ok {
			return FeeParams{}, errors.New("fee oracle unavailable")
		}
	}
	if snap.gasPrice != nil {
		return FeeParams{GasPrice: snap.gasPrice}, nil
	}
	maxFee := new(big.Int).Add(mulFloat(snap.baseFee, o.cfg.MaxFeeMultiplier), snap.tipCap)
	return FeeParams{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: snap.tipCap,
	}, nil
}

type feeSnapshot struct {
	baseFee  *big.Int
	tipCap   *big.Int
	gasPrice *big.Int
	at       time.Time
}

func (o *FeeOracle) snapshot() (feeSnapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.gasPrice != nil {
		return feeSnapshot{gasPrice: new(big.Int).Set(o.gasPrice), at: o.lastSync}, true
	}
	if o.baseFee == nil || o.tipCap == nil {
		return feeSnapshot{}, false
	}
	return feeSnapshot{baseFee: new(big.Int).Set(o.baseFee), tipCap: new(big.Int).Set(o.tipCap), at: o.lastSync}, true
}

func mulFloat(v *big.Int, f float64) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	if f == 1.0 {
		return new(big.Int).Set(v)
	}
	r := new(big.Rat).SetInt(v)
	r.Mul(r, new(big.Rat).SetFloat64(f))
	out := new(big.Int)
	out.Div(r.Num(), r.Denom())
	return out
}
