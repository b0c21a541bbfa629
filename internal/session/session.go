// Package session holds the authenticated connection a swap run works
// through: the RPC client, the signing key and the chain id reported by the
// node.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"dexbuy/internal/errs"
	"dexbuy/internal/keys"
	"dexbuy/internal/txbuilder"
)

// Backend is the subset of ethclient.Client a run needs.
type Backend interface {
	txbuilder.ChainClient
	ethereum.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

type Options struct {
	RequestTimeout time.Duration
	UserAgent      string
}

type Session struct {
	backend Backend
	signer  keys.Signer
	chainID *big.Int
	close   func()
}

// Connect dials endpoint over HTTP and resolves the chain id. Every failure
// is reported as errs.ErrConnection.
func Connect(ctx context.Context, endpoint string, signer keys.Signer, opts Options) (*Session, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: signer is required", errs.ErrConnection)
	}
	httpClient := &http.Client{Timeout: opts.RequestTimeout}
	rpcClient, err := rpc.DialHTTPWithClient(endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", errs.ErrConnection, endpoint, err)
	}
	if opts.UserAgent != "" {
		rpcClient.SetHeader("User-Agent", opts.UserAgent)
	}
	client := ethclient.NewClient(rpcClient)

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: eth_chainId: %w", errs.ErrConnection, err)
	}
	return &Session{backend: client, signer: signer, chainID: chainID, close: client.Close}, nil
}

// NewWithBackend wraps an existing backend; the caller keeps ownership of it.
func NewWithBackend(backend Backend, signer keys.Signer, chainID *big.Int) (*Session, error) {
	if backend == nil || signer == nil || chainID == nil {
		return nil, errors.New("backend, signer and chain id are required")
	}
	return &Session{backend: backend, signer: signer, chainID: new(big.Int).Set(chainID)}, nil
}

func (s *Session) Backend() Backend {
	return s.backend
}

func (s *Session) Address() common.Address {
	return s.signer.Address()
}

func (s *Session) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

func (s *Session) NativeBalance(ctx context.Context) (*big.Int, error) {
	bal, err := s.backend.BalanceAt(ctx, s.Address(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: native balance: %w", errs.ErrContractCall, err)
	}
	return bal, nil
}

// TokenBalance reads balanceOf for the session address. An address without
// code is rejected up front since eth_call would return an empty result.
func (s *Session) TokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	code, err := s.backend.CodeAt(ctx, token, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: code at %s: %w", errs.ErrContractCall, token.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: no contract at %s", errs.ErrContractCall, token.Hex())
	}
	bal, err := txbuilder.ReadERC20Balance(ctx, s.backend, token, s.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: balanceOf %s: %w", errs.ErrContractCall, token.Hex(), err)
	}
	return bal, nil
}

// SignAndSend signs tx for the session chain and broadcasts it.
func (s *Session) SignAndSend(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	if tx == nil {
		return nil, errors.New("transaction is nil")
	}
	signed, err := s.signer.SignTx(tx, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	return signed, nil
}

func (s *Session) Close() {
	if s.close != nil {
		s.close()
	}
}
