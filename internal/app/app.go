package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexbuy/internal/chain"
	"dexbuy/internal/config"
	"dexbuy/internal/dex"
	"dexbuy/internal/errs"
	"dexbuy/internal/keys"
	"dexbuy/internal/metrics"
	"dexbuy/internal/session"
	"dexbuy/internal/swap"
	"dexbuy/internal/tokencache"
	"dexbuy/internal/txbuilder"
)

type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *App {
	return &App{cfg: cfg, logger: logger, metrics: m}
}

// Run connects, performs one purchase and logs the outcome. Failures before
// the executor starts are reported as not reaching the session-ready stage.
func (a *App) Run(ctx context.Context) (swap.Result, error) {
	res, err := a.run(ctx)
	if err == nil {
		return res, nil
	}
	var runErr *swap.RunError
	if !errors.As(err, &runErr) {
		a.metrics.RunFinished(errs.Label(err))
		err = &swap.RunError{Stage: swap.StageSessionReady, Err: err}
	}
	a.report(err)
	return res, err
}

func (a *App) run(ctx context.Context) (swap.Result, error) {
	registry, err := a.cfg.BuildRegistry(chain.DefaultRegistry())
	if err != nil {
		return swap.Result{}, err
	}
	if _, ok := registry.Dex(a.cfg.Contracts.Dex); !ok {
		return swap.Result{}, fmt.Errorf("%w: unknown dex %q, known: %s", errs.ErrConfig, a.cfg.Contracts.Dex, strings.Join(registry.DexNames(), ", "))
	}

	signer, err := loadSigner(a.cfg)
	if err != nil {
		return swap.Result{}, err
	}
	sess, err := session.Connect(ctx, a.cfg.RPC.HTTP, signer, session.Options{
		RequestTimeout: a.cfg.RPC.RequestTimeout.Duration,
		UserAgent:      "dexbuy",
	})
	if err != nil {
		return swap.Result{}, err
	}
	defer sess.Close()
	a.logger.Info("rpc http connected", "chain_id", sess.ChainID().String(), "account", sess.Address().Hex())

	cache := tokencache.New(a.cfg.Cache.Path)
	if err := cache.Load(); err != nil {
		return swap.Result{}, err
	}
	tokens := a.tokens()
	if a.cfg.Cache.Autofill {
		added, err := cache.Fill(ctx, sess.Backend(), tokens...)
		if err != nil {
			return swap.Result{}, err
		}
		if added > 0 {
			a.logger.Info("token cache filled", "added", added)
			if err := cache.Save(); err != nil {
				a.logger.Warn("token cache save failed", "error", err)
			}
		}
	}

	txCfg, err := buildTransaction(a.cfg, cache)
	if err != nil {
		return swap.Result{}, err
	}
	builder, err := txbuilder.NewAutoBuilderFromConfig(sess.Backend(), sess.ChainID(), a.cfg)
	if err != nil {
		return swap.Result{}, fmt.Errorf("%w: %w", errs.ErrConfig, err)
	}

	exec := swap.NewExecutor(sess, registry, cache, builder, swap.Options{
		Logger:       a.logger,
		Metrics:      a.metrics,
		PollInterval: a.cfg.Transaction.PollInterval.Duration,
	})
	res, err := exec.Run(ctx, txCfg)
	if err != nil {
		return res, err
	}

	a.logger.Info("swap completed",
		"summary", res.Summary.String(),
		"tx", res.Summary.TxHash,
		"explorer", res.Summary.ExplorerURL,
		"block", res.Receipt.BlockNumber.String(),
		"gas_used", res.Receipt.GasUsed)
	if err := cache.Save(); err != nil {
		a.logger.Warn("token cache save failed", "error", err)
	}
	return res, nil
}

func (a *App) tokens() []common.Address {
	out := []common.Address{
		common.HexToAddress(a.cfg.Contracts.Input),
		common.HexToAddress(a.cfg.Contracts.Output),
	}
	if pair := common.HexToAddress(a.cfg.Contracts.Pair); pair != out[0] && pair != out[1] {
		out = append(out, pair)
	}
	return out
}

func (a *App) report(err error) {
	var runErr *swap.RunError
	if !errors.As(err, &runErr) {
		a.logger.Error("swap failed", "error", err)
		return
	}
	if errors.Is(err, errs.ErrTimeout) {
		a.logger.Error("confirmation timed out, on-chain state is unknown; verify the transaction manually",
			"tx", runErr.TxHash.Hex(),
			"explorer", runErr.ExplorerURL,
			"error", runErr.Err)
		return
	}
	attrs := []any{"stage", runErr.Stage.String(), "error", runErr.Err}
	if runErr.TxHash != (common.Hash{}) {
		attrs = append(attrs, "tx", runErr.TxHash.Hex(), "explorer", runErr.ExplorerURL)
	}
	a.logger.Error("swap failed", attrs...)
}

// buildTransaction converts the configured human amount using the input
// token's decimals. The token must already be in the cache.
func buildTransaction(cfg *config.Config, metas dex.TokenMetaSource) (swap.TransactionConfig, error) {
	input := common.HexToAddress(cfg.Contracts.Input)
	meta, ok := metas.Lookup(input)
	if !ok {
		return swap.TransactionConfig{}, fmt.Errorf("%w: no metadata for input token %s, enable cache.autofill or add it to %s", errs.ErrData, input.Hex(), cfg.Cache.Path)
	}
	amount, err := txbuilder.ParseUnits(cfg.Transaction.AmountIn, meta.Decimals)
	if err != nil {
		return swap.TransactionConfig{}, fmt.Errorf("%w: transaction.amount_in: %w", errs.ErrConfig, err)
	}
	return swap.TransactionConfig{
		Dex:            cfg.Contracts.Dex,
		Input:          input,
		Output:         common.HexToAddress(cfg.Contracts.Output),
		PairHint:       common.HexToAddress(cfg.Contracts.Pair),
		AmountIn:       cfg.Transaction.AmountIn,
		AmountInBase:   amount,
		SlippageBps:    cfg.Transaction.SlippageBps,
		Deadline:       cfg.Transaction.Deadline.Duration,
		ConfirmTimeout: cfg.Transaction.ConfirmTimeout.Duration,
	}, nil
}

// loadSigner prefers a keystore when one is configured, otherwise the hex
// key from the environment. A bad credential is a connection failure: the
// session cannot be established.
func loadSigner(cfg *config.Config) (keys.Signer, error) {
	if cfg.Signer.KeystoreDir != "" {
		passphrase := os.Getenv(cfg.Signer.PassphraseEnv)
		manager, err := keys.NewManager(cfg.Signer.KeystoreDir, passphrase)
		if err != nil {
			return nil, fmt.Errorf("%w: keystore: %w", errs.ErrConnection, err)
		}
		var addr common.Address
		if cfg.Signer.KeystoreAddress != "" {
			if addr, err = chain.ParseAddress("signer.keystore_address", cfg.Signer.KeystoreAddress); err != nil {
				return nil, err
			}
		}
		signer, err := manager.Signer(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: keystore: %w", errs.ErrConnection, err)
		}
		return signer, nil
	}
	signer, err := keys.FromHex(os.Getenv(cfg.Signer.PrivateKeyEnv))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errs.ErrConnection, cfg.Signer.PrivateKeyEnv, err)
	}
	return signer, nil
}
