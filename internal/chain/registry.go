package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexbuy/internal/errs"
)

type ChainEntry struct {
	ChainID         uint64 `yaml:"chain_id"`
	Name            string `yaml:"name"`
	NativeSymbol    string `yaml:"native_symbol"`
	ExplorerBaseURL string `yaml:"explorer"`
}

// TxURL returns the explorer page for a transaction hash.
func (c ChainEntry) TxURL(hash common.Hash) string {
	if c.ExplorerBaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.ExplorerBaseURL, "/") + "/tx/" + hash.Hex()
}

type DexEntry struct {
	Name          string
	TokenSymbol   string
	Token         common.Address
	WrappedNative common.Address
	Router        common.Address
	Factory       common.Address
}

// Registry is an immutable lookup of chains by id and dexes by name.
type Registry struct {
	chains map[uint64]ChainEntry
	dexes  map[string]DexEntry
}

func NewRegistry(chains []ChainEntry, dexes []DexEntry) (*Registry, error) {
	r := &Registry{
		chains: make(map[uint64]ChainEntry, len(chains)),
		dexes:  make(map[string]DexEntry, len(dexes)),
	}
	for _, c := range chains {
		if c.ChainID == 0 {
			return nil, fmt.Errorf("%w: chain %q has no chain id", errs.ErrConfig, c.Name)
		}
		r.chains[c.ChainID] = c
	}
	for _, d := range dexes {
		if err := d.validate(); err != nil {
			return nil, err
		}
		r.dexes[dexKey(d.Name)] = d
	}
	return r, nil
}

// Merge returns a registry holding r's entries overridden by the given ones.
func (r *Registry) Merge(chains []ChainEntry, dexes []DexEntry) (*Registry, error) {
	allChains := make([]ChainEntry, 0, len(r.chains)+len(chains))
	for _, c := range r.chains {
		allChains = append(allChains, c)
	}
	allDexes := make([]DexEntry, 0, len(r.dexes)+len(dexes))
	for _, d := range r.dexes {
		allDexes = append(allDexes, d)
	}
	return NewRegistry(append(allChains, chains...), append(allDexes, dexes...))
}

func (r *Registry) Chain(id uint64) (ChainEntry, bool) {
	c, ok := r.chains[id]
	return c, ok
}

func (r *Registry) Dex(name string) (DexEntry, bool) {
	d, ok := r.dexes[dexKey(name)]
	return d, ok
}

// DexNames lists the registered dex names in sorted order.
func (r *Registry) DexNames() []string {
	out := make([]string, 0, len(r.dexes))
	for _, d := range r.dexes {
		out = append(out, d.Name)
	}
	sort.Strings(out)
	return out
}

func (d DexEntry) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: dex entry without a name", errs.ErrConfig)
	}
	zero := common.Address{}
	if d.WrappedNative == zero || d.Router == zero || d.Factory == zero {
		return fmt.Errorf("%w: dex %q: router/factory/wrapped native must be set", errs.ErrConfig, d.Name)
	}
	return nil
}

func dexKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
