package txbuilder

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type NonceProvider interface {
	Next(ctx context.Context, addr common.Address) (uint64, error)
	Reset(addr common.Address)
}

// NonceManager hands out sequential nonces per sender, seeded from the
// pending nonce. One manager belongs to one session; two sessions signing
// for the same address would race on the pending nonce.
type NonceManager struct {
	client ChainClient
	mu     sync.Mutex
	next   map[common.Address]uint64
}

func NewNonceManager(client ChainClient) *NonceManager {
	return &NonceManager{client: client, next: make(map[common.Address]uint64)}
}

func (m *NonceManager) Next(ctx context.Context, addr common.Address) (uint64, error) {
	if m.client == nil {
		return 0, errors.New("nonce manager client is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.next[addr]
	if !ok {
		pending, err := m.client.PendingNonceAt(ctx, addr)
		if err != nil {
			return 0, err
		}
		n = pending
	}
	m.next[addr] = n + 1
	return n, nil
}

func (m *NonceManager) Reset(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.next, addr)
}
