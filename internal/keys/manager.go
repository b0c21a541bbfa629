package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the signing credential held by a session.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

type keySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// FromHex builds a signer from a hex private key, with or without 0x.
func FromHex(hexKey string) (Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &keySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *keySigner) Address() common.Address {
	return s.addr
}

func (s *keySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// Manager opens a go-ethereum keystore directory.
type Manager struct {
	ks         *keystore.KeyStore
	passphrase string
}

func NewManager(dir string, passphrase string) (*Manager, error) {
	return newManager(dir, passphrase, keystore.StandardScryptN, keystore.StandardScryptP)
}

func newManager(dir string, passphrase string, scryptN, scryptP int) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("keystore dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	ks := keystore.NewKeyStore(dir, scryptN, scryptP)
	return &Manager{ks: ks, passphrase: passphrase}, nil
}

func (m *Manager) CreateAccount() (common.Address, error) {
	if m.passphrase == "" {
		return common.Address{}, errors.New("keystore passphrase is empty")
	}
	acct, err := m.ks.NewAccount(m.passphrase)
	if err != nil {
		return common.Address{}, err
	}
	return acct.Address, nil
}

func (m *Manager) FindAccount(addr common.Address) (accounts.Account, error) {
	for _, acct := range m.ks.Accounts() {
		if acct.Address == addr {
			return acct, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("account %s not found in keystore", addr.Hex())
}

// Signer returns a signer for addr. With a zero addr the keystore must hold
// exactly one account.
func (m *Manager) Signer(addr common.Address) (Signer, error) {
	if m.passphrase == "" {
		return nil, errors.New("keystore passphrase is empty")
	}
	if addr == (common.Address{}) {
		accts := m.ks.Accounts()
		if len(accts) != 1 {
			return nil, fmt.Errorf("keystore holds %d accounts, an address must be selected", len(accts))
		}
		addr = accts[0].Address
	}
	acct, err := m.FindAccount(addr)
	if err != nil {
		return nil, err
	}
	return &keystoreSigner{ks: m.ks, acct: acct, passphrase: m.passphrase}, nil
}

type keystoreSigner struct {
	ks         *keystore.KeyStore
	acct       accounts.Account
	passphrase string
}

func (s *keystoreSigner) Address() common.Address {
	return s.acct.Address
}

func (s *keystoreSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return s.ks.SignTxWithPassphrase(s.acct, s.passphrase, tx, chainID)
}
