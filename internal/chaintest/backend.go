// Package chaintest provides an in-memory chain backend for tests. Contract
// calls are dispatched on the 4-byte selector and answered through the real
// ABI codec, so callers exercise the same Pack/Unpack paths as on mainnet.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrReverted = errors.New("execution reverted")

// Handler answers one contract method with already-unpacked arguments.
type Handler func(args []interface{}) ([]interface{}, error)

type Call struct {
	To     common.Address
	Method string
}

type handlerKey struct {
	to       common.Address
	selector [4]byte
}

type registered struct {
	method abi.Method
	fn     Handler
}

type Backend struct {
	mu sync.Mutex

	// Fee and gas knobs. A nil BaseFee makes the chain look pre-London.
	BaseFee  *big.Int
	GasPrice *big.Int
	TipCap   *big.Int
	Gas      uint64
	Nonce    uint64

	// SendErr fails every broadcast. ReceiptFor, when set, produces the
	// receipt for each accepted transaction.
	SendErr    error
	ReceiptFor func(tx *types.Transaction) *types.Receipt

	balances map[common.Address]*big.Int
	code     map[common.Address][]byte
	handlers map[handlerKey]registered
	receipts map[common.Hash]*types.Receipt
	calls    []Call
	sent     []*types.Transaction
}

func NewBackend() *Backend {
	return &Backend{
		GasPrice: big.NewInt(1_000_000_000),
		TipCap:   big.NewInt(1_000_000_000),
		Gas:      150_000,
		balances: make(map[common.Address]*big.Int),
		code:     make(map[common.Address][]byte),
		handlers: make(map[handlerKey]registered),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// Handle registers fn for method of contract at to and marks the address as
// holding code.
func (b *Backend) Handle(to common.Address, contract abi.ABI, method string, fn Handler) {
	m, ok := contract.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: unknown method %s", method))
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[handlerKey{to: to, selector: sel}] = registered{method: m, fn: fn}
	if len(b.code[to]) == 0 {
		b.code[to] = []byte{0x60, 0x80}
	}
}

// Returns registers a method that always answers with outs.
func (b *Backend) Returns(to common.Address, contract abi.ABI, method string, outs ...interface{}) {
	b.Handle(to, contract, method, func([]interface{}) ([]interface{}, error) {
		return outs, nil
	})
}

// Reverts registers a method that always fails.
func (b *Backend) Reverts(to common.Address, contract abi.ABI, method string) {
	b.Handle(to, contract, method, func([]interface{}) ([]interface{}, error) {
		return nil, ErrReverted
	})
}

func (b *Backend) SetBalance(addr common.Address, v *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Set(v)
}

func (b *Backend) SetCode(addr common.Address, code []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.code[addr] = code
}

func (b *Backend) SetReceipt(r *types.Receipt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[r.TxHash] = r
}

// Calls returns every contract call made so far, in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Called reports whether method was invoked on any contract.
func (b *Backend) Called(method string) bool {
	for _, c := range b.Calls() {
		if c.Method == method {
			return true
		}
	}
	return false
}

func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, ErrReverted
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])

	b.mu.Lock()
	h, ok := b.handlers[handlerKey{to: *msg.To, selector: sel}]
	name := fmt.Sprintf("0x%x", sel)
	if ok {
		name = h.method.Name
	}
	b.calls = append(b.calls, Call{To: *msg.To, Method: name})
	b.mu.Unlock()

	if !ok {
		// No code answers with empty data, like a real node.
		return nil, nil
	}
	args, err := h.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	outs, err := h.fn(args)
	if err != nil {
		return nil, err
	}
	return h.method.Outputs.Pack(outs...)
}

func (b *Backend) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.code[account], nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (b *Backend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Nonce, nil
}

func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return b.TipCap, nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return b.GasPrice, nil
}

func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: b.BaseFee}, nil
}

func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.Gas, nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.SendErr != nil {
		return b.SendErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	b.Nonce++
	if b.ReceiptFor != nil {
		if r := b.ReceiptFor(tx); r != nil {
			b.receipts[tx.Hash()] = r
		}
	}
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}
