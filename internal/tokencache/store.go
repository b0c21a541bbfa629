// Package tokencache keeps token symbols and decimals in a JSON file so a run
// never has to guess them.
package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"dexbuy/internal/chain"
	"dexbuy/internal/dex"
	"dexbuy/internal/errs"
	"dexbuy/internal/txbuilder"
)

type Entry struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type state struct {
	Addresses map[string]Entry `json:"addresses"`
}

type Store struct {
	path    string
	mu      sync.Mutex
	entries map[common.Address]Entry
}

func New(path string) *Store {
	return &Store{path: path, entries: make(map[common.Address]Entry)}
}

// Load replaces the in-memory entries with the file contents. A missing file
// leaves the store empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read token cache: %w", errs.ErrData, err)
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return fmt.Errorf("%w: parse token cache %s: %w", errs.ErrData, s.path, err)
	}
	entries := make(map[common.Address]Entry, len(st.Addresses))
	for key, e := range st.Addresses {
		if !chain.IsValidAddress(key) {
			return fmt.Errorf("%w: token cache key %q is not an address", errs.ErrData, key)
		}
		entries[common.HexToAddress(key)] = e
	}
	s.entries = entries
	return nil
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	st := state{Addresses: make(map[string]Entry, len(s.entries))}
	for addr, e := range s.entries {
		st.Addresses[addr.Hex()] = e
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("token cache rename: %w", err)
	}
	return nil
}

func (s *Store) Lookup(addr common.Address) (dex.TokenMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[addr]
	if !ok {
		return dex.TokenMeta{}, false
	}
	return dex.TokenMeta{Address: addr, Symbol: e.Symbol, Decimals: e.Decimals}, true
}

func (s *Store) Put(meta dex.TokenMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[meta.Address] = Entry{Symbol: meta.Symbol, Decimals: meta.Decimals}
}

// Addresses lists cached tokens in checksum order.
func (s *Store) Addresses() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.Address, 0, len(s.entries))
	for addr := range s.entries {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// Fill reads symbol and decimals on-chain for every addr not yet cached and
// returns how many entries were added.
func (s *Store) Fill(ctx context.Context, caller ethereum.ContractCaller, addrs ...common.Address) (int, error) {
	added := 0
	for _, addr := range addrs {
		if _, ok := s.Lookup(addr); ok {
			continue
		}
		decimals, err := txbuilder.ReadERC20Decimals(ctx, caller, addr)
		if err != nil {
			return added, fmt.Errorf("%w: decimals of %s: %w", errs.ErrContractCall, addr.Hex(), err)
		}
		symbol, err := txbuilder.ReadERC20Symbol(ctx, caller, addr)
		if err != nil {
			return added, fmt.Errorf("%w: symbol of %s: %w", errs.ErrContractCall, addr.Hex(), err)
		}
		s.Put(dex.TokenMeta{Address: addr, Symbol: symbol, Decimals: decimals})
		added++
	}
	return added, nil
}
