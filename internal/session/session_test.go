package session

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexbuy/internal/abis"
	"dexbuy/internal/chaintest"
	"dexbuy/internal/errs"
	"dexbuy/internal/keys"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var token = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestSession(t *testing.T, backend *chaintest.Backend) *Session {
	t.Helper()
	signer, err := keys.FromHex(testKey)
	require.NoError(t, err)
	s, err := NewWithBackend(backend, signer, big.NewInt(1116))
	require.NoError(t, err)
	return s
}

func TestNativeBalance(t *testing.T) {
	backend := chaintest.NewBackend()
	s := newTestSession(t, backend)
	backend.SetBalance(s.Address(), big.NewInt(42))

	bal, err := s.NativeBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal.Int64())
}

func TestTokenBalance(t *testing.T) {
	backend := chaintest.NewBackend()
	s := newTestSession(t, backend)
	backend.InstallToken(token, "TKN", 18, map[common.Address]*big.Int{s.Address(): big.NewInt(7)})

	bal, err := s.TokenBalance(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), bal.Int64())
}

func TestTokenBalanceWithoutCode(t *testing.T) {
	backend := chaintest.NewBackend()
	s := newTestSession(t, backend)

	_, err := s.TokenBalance(context.Background(), token)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrContractCall)
	assert.False(t, backend.Called("balanceOf"), "no call expected against an empty account")
}

func TestTokenBalanceRevert(t *testing.T) {
	backend := chaintest.NewBackend()
	s := newTestSession(t, backend)
	backend.Reverts(token, abis.ERC20, "balanceOf")

	_, err := s.TokenBalance(context.Background(), token)
	assert.ErrorIs(t, err, errs.ErrContractCall)
}

func TestSignAndSend(t *testing.T) {
	backend := chaintest.NewBackend()
	s := newTestSession(t, backend)

	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21000, To: &to, Value: big.NewInt(1)})
	signed, err := s.SignAndSend(context.Background(), tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(s.ChainID()), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
	require.Len(t, backend.Sent(), 1)
	assert.Equal(t, signed.Hash(), backend.Sent()[0].Hash())
}

func TestSignAndSendBroadcastFailure(t *testing.T) {
	backend := chaintest.NewBackend()
	backend.SendErr = errors.New("nonce too low")
	s := newTestSession(t, backend)

	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tx := types.NewTx(&types.LegacyTx{Gas: 21000, GasPrice: big.NewInt(1), To: &to, Value: big.NewInt(0)})
	_, err := s.SignAndSend(context.Background(), tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce too low")
}

func TestConnectRejectsMalformedEndpoint(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := keys.FromHex(common.Bytes2Hex(crypto.FromECDSA(key)))
	require.NoError(t, err)

	_, err = Connect(context.Background(), "://not a url", signer, Options{})
	assert.ErrorIs(t, err, errs.ErrConnection)
}

func TestConnectRequiresSigner(t *testing.T) {
	_, err := Connect(context.Background(), "http://127.0.0.1:1", nil, Options{})
	assert.ErrorIs(t, err, errs.ErrConnection)
}

func TestChainIDIsCopied(t *testing.T) {
	s := newTestSession(t, chaintest.NewBackend())
	id := s.ChainID()
	id.SetInt64(1)
	assert.Equal(t, int64(1116), s.ChainID().Int64())
}

func TestBackendReadsCode(t *testing.T) {
	var backend Backend = chaintest.NewBackend()
	backend.(*chaintest.Backend).SetCode(token, []byte{0x60, 0x80})

	code, err := backend.CodeAt(context.Background(), token, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)
}
