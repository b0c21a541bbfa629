package txbuilder

import (
	"math/big"

	"dexbuy/internal/config"
)

func NewOracleFromConfig(client ChainClient, cfg *config.Config) (*FeeOracle, error) {
	minTipWei, err := GweiToWei(cfg.Tx.MinPriorityFeeGwei)
	if err != nil {
		return nil, err
	}
	return NewFeeOracle(client, FeeOracleConfig{
		MaxFeeMultiplier:  cfg.Tx.MaxFeeMultiplier,
		MinPriorityFeeWei: minTipWei,
	}), nil
}

// NewAutoBuilderFromConfig wires a builder for the chain the session is
// connected to; the chain id comes from the node, not from the config.
func NewAutoBuilderFromConfig(client ChainClient, chainID *big.Int, cfg *config.Config) (*AutoBuilder, error) {
	builder := NewBuilder(chainID, cfg.Transaction.Deadline.Duration)
	oracle, err := NewOracleFromConfig(client, cfg)
	if err != nil {
		return nil, err
	}
	auto := NewAutoBuilder(builder, client, oracle, AutoBuilderConfig{
		GasLimitMultiplier: cfg.Tx.GasLimitMultiplier,
	})
	auto.SetNonceProvider(NewNonceManager(client))
	return auto, nil
}
