package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dexbuy/internal/chain"
	"dexbuy/internal/errs"
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	if value.Tag == "!!int" {
		var v int64
		if err := value.Decode(&v); err != nil {
			return err
		}
		d.Duration = time.Duration(v) * time.Second
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

type Config struct {
	RPC struct {
		HTTP           string   `yaml:"http"`
		RequestTimeout Duration `yaml:"request_timeout"`
	} `yaml:"rpc"`

	Signer struct {
		PrivateKeyEnv   string `yaml:"private_key_env"`
		KeystoreDir     string `yaml:"keystore_dir"`
		KeystoreAddress string `yaml:"keystore_address"`
		PassphraseEnv   string `yaml:"passphrase_env"`
	} `yaml:"signer"`

	Contracts struct {
		Dex    string `yaml:"dex"`
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
		Pair   string `yaml:"pair"`
	} `yaml:"contracts"`

	Transaction struct {
		AmountIn       string   `yaml:"amount_in"`
		SlippageBps    uint32   `yaml:"slippage_bps"`
		Deadline       Duration `yaml:"deadline"`
		ConfirmTimeout Duration `yaml:"confirm_timeout"`
		PollInterval   Duration `yaml:"poll_interval"`
	} `yaml:"transaction"`

	Tx struct {
		GasLimitMultiplier float64 `yaml:"gas_limit_multiplier"`
		MaxFeeMultiplier   float64 `yaml:"max_fee_multiplier"`
		MinPriorityFeeGwei float64 `yaml:"min_priority_fee_gwei"`
	} `yaml:"tx"`

	Cache struct {
		Path     string `yaml:"path"`
		Autofill bool   `yaml:"autofill"`
	} `yaml:"cache"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Registry struct {
		Chains []chain.ChainEntry `yaml:"chains"`
		Dexes  []DexSpec          `yaml:"dexes"`
	} `yaml:"registry"`
}

// DexSpec is the YAML form of a chain.DexEntry.
type DexSpec struct {
	Name          string `yaml:"name"`
	TokenSymbol   string `yaml:"token_symbol"`
	Token         string `yaml:"token"`
	WrappedNative string `yaml:"wrapped_native"`
	Router        string `yaml:"router"`
	Factory       string `yaml:"factory"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfig, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RPC.RequestTimeout.Duration == 0 {
		c.RPC.RequestTimeout = Duration{Duration: 15 * time.Second}
	}
	if c.Signer.PrivateKeyEnv == "" {
		c.Signer.PrivateKeyEnv = "DEXBUY_PRIVATE_KEY"
	}
	if c.Signer.PassphraseEnv == "" {
		c.Signer.PassphraseEnv = "DEXBUY_KEYSTORE_PASSPHRASE"
	}
	if c.Transaction.SlippageBps == 0 {
		c.Transaction.SlippageBps = 500
	}
	if c.Transaction.Deadline.Duration == 0 {
		c.Transaction.Deadline = Duration{Duration: 120 * time.Second}
	}
	if c.Transaction.ConfirmTimeout.Duration == 0 {
		c.Transaction.ConfirmTimeout = Duration{Duration: 3 * time.Minute}
	}
	if c.Transaction.PollInterval.Duration == 0 {
		c.Transaction.PollInterval = Duration{Duration: 2 * time.Second}
	}
	if c.Tx.GasLimitMultiplier == 0 {
		c.Tx.GasLimitMultiplier = 1.2
	}
	if c.Tx.MaxFeeMultiplier == 0 {
		c.Tx.MaxFeeMultiplier = 2.0
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "cache.json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.RPC.HTTP == "" {
		return fmt.Errorf("%w: rpc.http is required", errs.ErrConfig)
	}
	if strings.TrimSpace(c.Contracts.Dex) == "" {
		return fmt.Errorf("%w: contracts.dex is required", errs.ErrConfig)
	}
	fields := []struct {
		name  string
		value string
	}{
		{"contracts.input", c.Contracts.Input},
		{"contracts.output", c.Contracts.Output},
		{"contracts.pair", c.Contracts.Pair},
	}
	for _, f := range fields {
		if _, err := chain.ParseAddress(f.name, f.value); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.Transaction.AmountIn) == "" {
		return fmt.Errorf("%w: transaction.amount_in is required", errs.ErrConfig)
	}
	if c.Transaction.SlippageBps >= 10_000 {
		return fmt.Errorf("%w: transaction.slippage_bps must be below 10000, got %d", errs.ErrConfig, c.Transaction.SlippageBps)
	}
	if !finiteAtLeast(c.Tx.GasLimitMultiplier, 1) {
		return fmt.Errorf("%w: tx.gas_limit_multiplier must be a finite value >= 1", errs.ErrConfig)
	}
	if !finiteAtLeast(c.Tx.MaxFeeMultiplier, 1) {
		return fmt.Errorf("%w: tx.max_fee_multiplier must be a finite value >= 1", errs.ErrConfig)
	}
	if !finiteAtLeast(c.Tx.MinPriorityFeeGwei, 0) {
		return fmt.Errorf("%w: tx.min_priority_fee_gwei must be a finite value >= 0", errs.ErrConfig)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format must be json or text", errs.ErrConfig)
	}
	return nil
}

func finiteAtLeast(v, floor float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= floor
}

// BuildRegistry merges the configured overrides over base.
func (c *Config) BuildRegistry(base *chain.Registry) (*chain.Registry, error) {
	dexes := make([]chain.DexEntry, 0, len(c.Registry.Dexes))
	for i, d := range c.Registry.Dexes {
		entry, err := d.entry(fmt.Sprintf("registry.dexes[%d]", i))
		if err != nil {
			return nil, err
		}
		dexes = append(dexes, entry)
	}
	return base.Merge(c.Registry.Chains, dexes)
}

func (d DexSpec) entry(field string) (chain.DexEntry, error) {
	wrapped, err := chain.ParseAddress(field+".wrapped_native", d.WrappedNative)
	if err != nil {
		return chain.DexEntry{}, err
	}
	router, err := chain.ParseAddress(field+".router", d.Router)
	if err != nil {
		return chain.DexEntry{}, err
	}
	factory, err := chain.ParseAddress(field+".factory", d.Factory)
	if err != nil {
		return chain.DexEntry{}, err
	}
	entry := chain.DexEntry{
		Name:          d.Name,
		TokenSymbol:   d.TokenSymbol,
		WrappedNative: wrapped,
		Router:        router,
		Factory:       factory,
	}
	if d.Token != "" {
		if entry.Token, err = chain.ParseAddress(field+".token", d.Token); err != nil {
			return chain.DexEntry{}, err
		}
	}
	return entry, nil
}
