package keys

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hardhat/anvil account #0.
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestFromHex(t *testing.T) {
	s, err := FromHex(testKey)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Address())

	_, err = FromHex("")
	assert.Error(t, err)
	_, err = FromHex("0xnothex")
	assert.Error(t, err)
}

func TestKeySignerRecoversSender(t *testing.T) {
	s, err := FromHex(testKey)
	require.NoError(t, err)

	chainID := big.NewInt(1116)
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		Gas:       21000,
		GasFeeCap: big.NewInt(2e9),
		GasTipCap: big.NewInt(1e9),
		To:        &to,
		Value:     big.NewInt(1),
	})
	signed, err := s.SignTx(tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), from)
}

func TestManagerSignerSingleAccount(t *testing.T) {
	m, err := newManager(t.TempDir(), "secret", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	addr, err := m.CreateAccount()
	require.NoError(t, err)

	s, err := m.Signer(common.Address{})
	require.NoError(t, err)
	assert.Equal(t, addr, s.Address())

	chainID := big.NewInt(1116)
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, Gas: 21000, GasPrice: big.NewInt(1), To: &to, Value: big.NewInt(0)})
	signed, err := s.SignTx(tx, chainID)
	require.NoError(t, err)
	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, addr, from)
}

func TestManagerSignerRequiresSelectionWithManyAccounts(t *testing.T) {
	m, err := newManager(t.TempDir(), "secret", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	_, err = m.CreateAccount()
	require.NoError(t, err)
	_, err = m.CreateAccount()
	require.NoError(t, err)

	_, err = m.Signer(common.Address{})
	assert.Error(t, err)

	_, err = m.Signer(common.HexToAddress("0x9999999999999999999999999999999999999999"))
	assert.Error(t, err)
}

func TestManagerRequiresPassphrase(t *testing.T) {
	m, err := newManager(t.TempDir(), "", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	_, err = m.CreateAccount()
	assert.Error(t, err)
	_, err = m.Signer(common.Address{})
	assert.Error(t, err)
}
