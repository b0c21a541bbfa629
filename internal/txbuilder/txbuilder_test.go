package txbuilder

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testRouter  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testWrapped = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testToken   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testSender  = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func dynamicParams(nonce uint64) BuildParams {
	return BuildParams{
		Nonce:    nonce,
		GasLimit: 210000,
		Fee: FeeParams{
			MaxFeePerGas:         big.NewInt(1000000000),
			MaxPriorityFeePerGas: big.NewInt(200000000),
		},
	}
}

func TestBuildSwapExactETHForTokensCalldata(t *testing.T) {
	now := func() time.Time { return time.Unix(1700000000, 0) }
	builder := NewBuilderWithClock(big.NewInt(1116), 120*time.Second, now)

	amountIn := big.NewInt(1_000_000_000_000_000_000)
	minOut := big.NewInt(950)
	path := []common.Address{testWrapped, testToken}

	tx, err := builder.BuildSwapExactETHForTokensTx(testRouter, path, testSender, amountIn, minOut, dynamicParams(7))
	if err != nil {
		t.Fatalf("BuildSwapExactETHForTokensTx error: %v", err)
	}
	if tx.Value().Cmp(amountIn) != 0 {
		t.Fatalf("value = %s, want %s", tx.Value(), amountIn)
	}
	if tx.To() == nil || *tx.To() != testRouter {
		t.Fatalf("tx sent to %v, want router", tx.To())
	}
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("tx type = %d, want dynamic fee", tx.Type())
	}

	expected := "0x7ff36ab5" +
		hex32(minOut) +
		hex32(big.NewInt(0x80)) +
		hexAddress(testSender) +
		hex32(big.NewInt(1700000120)) +
		hex32(big.NewInt(2)) +
		hexAddress(testWrapped) +
		hexAddress(testToken)
	if data := hexutil.Encode(tx.Data()); data != expected {
		t.Fatalf("unexpected calldata\nexpected=%s\nactual=%s", expected, data)
	}
}

func TestBuildSwapRejectsShortPath(t *testing.T) {
	builder := NewBuilder(big.NewInt(1116), time.Minute)
	_, err := builder.BuildSwapExactETHForTokensTx(testRouter, []common.Address{testToken}, testSender, big.NewInt(1), big.NewInt(0), dynamicParams(0))
	if err == nil {
		t.Fatalf("expected error for single-token path")
	}
}

func TestBuildSwapExactTokensForTokensCalldata(t *testing.T) {
	now := func() time.Time { return time.Unix(1700000000, 0) }
	builder := NewBuilderWithClock(big.NewInt(1116), 60*time.Second, now)

	amountIn := big.NewInt(5000)
	minOut := big.NewInt(123456)
	path := []common.Address{testToken, testWrapped}

	tx, err := builder.BuildSwapExactTokensForTokensTx(testRouter, path, testSender, amountIn, minOut, dynamicParams(1))
	if err != nil {
		t.Fatalf("BuildSwapExactTokensForTokensTx error: %v", err)
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("token swap must not carry value, got %s", tx.Value())
	}
	expected := "0x38ed1739" +
		hex32(amountIn) +
		hex32(minOut) +
		hex32(big.NewInt(0xa0)) +
		hexAddress(testSender) +
		hex32(big.NewInt(1700000060)) +
		hex32(big.NewInt(2)) +
		hexAddress(testToken) +
		hexAddress(testWrapped)
	if data := hexutil.Encode(tx.Data()); data != expected {
		t.Fatalf("unexpected calldata\nexpected=%s\nactual=%s", expected, data)
	}
}

func TestBuildApproveTxCalldata(t *testing.T) {
	spender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	builder := NewBuilderWithClock(big.NewInt(1116), 60*time.Second, time.Now)

	amount := big.NewInt(1000000)

	tx, err := builder.BuildApproveTx(testToken, spender, amount, dynamicParams(2))
	if err != nil {
		t.Fatalf("BuildApproveTx error: %v", err)
	}
	data := hexutil.Encode(tx.Data())
	expected := "0x095ea7b3" + hexAddress(spender) + hex32(amount)
	if data != expected {
		t.Fatalf("unexpected calldata\nexpected=%s\nactual=%s", expected, data)
	}
}

func TestBuildLegacyTxWhenGasPriceSet(t *testing.T) {
	builder := NewBuilder(big.NewInt(1116), time.Minute)
	params := BuildParams{Nonce: 3, GasLimit: 90000, Fee: FeeParams{GasPrice: big.NewInt(30_000_000_000)}}

	tx, err := builder.BuildSwapExactETHForTokensTx(testRouter, []common.Address{testWrapped, testToken}, testSender, big.NewInt(10), big.NewInt(1), params)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if tx.Type() != types.LegacyTxType {
		t.Fatalf("tx type = %d, want legacy", tx.Type())
	}
	if tx.GasPrice().Cmp(big.NewInt(30_000_000_000)) != 0 {
		t.Fatalf("gas price = %s", tx.GasPrice())
	}
	if tx.Nonce() != 3 || tx.Gas() != 90000 {
		t.Fatalf("nonce/gas = %d/%d", tx.Nonce(), tx.Gas())
	}
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1.23", 6, "1230000"},
		{"0.000001", 6, "1"},
		{"1", 18, "1000000000000000000"},
		{".5", 2, "50"},
		{"0", 18, "0"},
	}
	for _, tc := range cases {
		v, err := ParseUnits(tc.in, tc.decimals)
		if err != nil {
			t.Fatalf("ParseUnits(%q) error: %v", tc.in, err)
		}
		if v.String() != tc.want {
			t.Fatalf("ParseUnits(%q) = %s, want %s", tc.in, v.String(), tc.want)
		}
	}

	for _, bad := range []string{"", "-1", "1.2345678", "abc"} {
		if _, err := ParseUnits(bad, 6); err == nil {
			t.Fatalf("ParseUnits(%q) expected error", bad)
		}
	}
}

type fakeChainClient struct {
	baseFee    *big.Int
	gasPrice   *big.Int
	tip        *big.Int
	gas        uint64
	gasErr     error
	pending    uint64
	nonceCalls int
	lastMsg    ethereum.CallMsg
}

func (f *fakeChainClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.nonceCalls++
	return f.pending, nil
}

func (f *fakeChainClient) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return f.tip, nil
}

func (f *fakeChainClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeChainClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeChainClient) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.lastMsg = msg
	return f.gas, f.gasErr
}

func newTestAuto(client *fakeChainClient) *AutoBuilder {
	builder := NewBuilder(big.NewInt(1116), time.Minute)
	oracle := NewFeeOracle(client, FeeOracleConfig{MaxFeeMultiplier: 2})
	auto := NewAutoBuilder(builder, client, oracle, AutoBuilderConfig{GasLimitMultiplier: 1.5})
	auto.SetNonceProvider(NewNonceManager(client))
	return auto
}

func TestAutoBuilderLegacyChain(t *testing.T) {
	client := &fakeChainClient{gasPrice: big.NewInt(35_000_000_000), gas: 100000, pending: 9}
	auto := newTestAuto(client)

	path := []common.Address{testWrapped, testToken}
	tx, err := auto.BuildSwapExactETHForTokensTx(context.Background(), testSender, testRouter, path, big.NewInt(1000), big.NewInt(900), nil)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if tx.Type() != types.LegacyTxType {
		t.Fatalf("tx type = %d, want legacy", tx.Type())
	}
	if tx.Gas() != 150000 {
		t.Fatalf("gas = %d, want 150000", tx.Gas())
	}
	if tx.Nonce() != 9 {
		t.Fatalf("nonce = %d, want 9", tx.Nonce())
	}
	if client.lastMsg.GasPrice == nil || client.lastMsg.Value.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("estimate call missing gas price or value: %+v", client.lastMsg)
	}

	tx2, err := auto.BuildSwapExactETHForTokensTx(context.Background(), testSender, testRouter, path, big.NewInt(1000), big.NewInt(900), nil)
	if err != nil {
		t.Fatalf("second build error: %v", err)
	}
	if tx2.Nonce() != 10 {
		t.Fatalf("second nonce = %d, want 10", tx2.Nonce())
	}
	if client.nonceCalls != 1 {
		t.Fatalf("pending nonce fetched %d times, want 1", client.nonceCalls)
	}

	auto.ResetNonce(testSender)
	tx3, err := auto.BuildSwapExactETHForTokensTx(context.Background(), testSender, testRouter, path, big.NewInt(1000), big.NewInt(900), nil)
	if err != nil {
		t.Fatalf("third build error: %v", err)
	}
	if tx3.Nonce() != 9 {
		t.Fatalf("nonce after reset = %d, want 9", tx3.Nonce())
	}
}

func TestAutoBuilderDynamicFees(t *testing.T) {
	client := &fakeChainClient{baseFee: big.NewInt(100), tip: big.NewInt(5), gas: 21000}
	auto := newTestAuto(client)

	tx, err := auto.BuildSwapExactETHForTokensTx(context.Background(), testSender, testRouter, []common.Address{testWrapped, testToken}, big.NewInt(1), big.NewInt(1), nil)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("tx type = %d, want dynamic fee", tx.Type())
	}
	if tx.GasFeeCap().Cmp(big.NewInt(205)) != 0 {
		t.Fatalf("fee cap = %s, want 205", tx.GasFeeCap())
	}
	if tx.GasTipCap().Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("tip cap = %s, want 5", tx.GasTipCap())
	}
}

func TestAutoBuilderEstimateFailureSkipsNonce(t *testing.T) {
	client := &fakeChainClient{gasPrice: big.NewInt(1), gasErr: errors.New("execution reverted")}
	auto := newTestAuto(client)

	_, err := auto.BuildSwapExactETHForTokensTx(context.Background(), testSender, testRouter, []common.Address{testWrapped, testToken}, big.NewInt(1), big.NewInt(1), nil)
	var estErr *EstimateGasError
	if !errors.As(err, &estErr) {
		t.Fatalf("expected EstimateGasError, got %v", err)
	}
	if client.nonceCalls != 0 {
		t.Fatalf("nonce consumed on failed estimate")
	}
}

func TestGweiToWei(t *testing.T) {
	v, err := GweiToWei(1.5)
	if err != nil {
		t.Fatalf("GweiToWei error: %v", err)
	}
	if v.String() != "1500000000" {
		t.Fatalf("GweiToWei(1.5) = %s", v)
	}
	if _, err := GweiToWei(-1); err == nil {
		t.Fatalf("expected error for negative gwei")
	}
}

func hex32(v *big.Int) string {
	b := common.LeftPadBytes(v.Bytes(), 32)
	return hexutil.Encode(b)[2:]
}

func hexAddress(addr common.Address) string {
	b := common.LeftPadBytes(addr.Bytes(), 32)
	return hexutil.Encode(b)[2:]
}

type revertErr struct {
	data interface{}
}

func (e revertErr) Error() string          { return "execution reverted" }
func (e revertErr) ErrorData() interface{} { return e.data }

func TestRevertReason(t *testing.T) {
	// Error(string) with "UniswapV2Router: EXPIRED"
	payload := "0x08c379a0" +
		hex32(big.NewInt(0x20)) +
		hex32(big.NewInt(24)) +
		"556e69737761705632526f757465723a20455850495245440000000000000000"

	err := &EstimateGasError{Err: revertErr{data: payload}}
	if got := RevertReason(err); got != "UniswapV2Router: EXPIRED" {
		t.Fatalf("RevertReason = %q", got)
	}
	if got := RevertReason(errors.New("plain")); got != "" {
		t.Fatalf("RevertReason(plain) = %q", got)
	}
}

func TestAutoBuilderExplicitDeadline(t *testing.T) {
	client := &fakeChainClient{gasPrice: big.NewInt(1), gas: 21000}
	auto := newTestAuto(client)

	deadline := big.NewInt(1800000000)
	tx, err := auto.BuildSwapExactETHForTokensTx(context.Background(), testSender, testRouter, []common.Address{testWrapped, testToken}, big.NewInt(1), big.NewInt(1), deadline)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	data := hexutil.Encode(tx.Data())
	// deadline is the fourth head word after the selector
	word := data[10+3*64 : 10+4*64]
	if word != hex32(deadline) {
		t.Fatalf("deadline word = %s, want %s", word, hex32(deadline))
	}
}

func TestFeeOracleLegacyPriceIgnoresTipFloor(t *testing.T) {
	client := &fakeChainClient{gasPrice: big.NewInt(1_000_000_000)}
	oracle := NewFeeOracle(client, FeeOracleConfig{MinPriorityFeeWei: big.NewInt(30_000_000_000)})

	fees, err := oracle.Fees(context.Background())
	if err != nil {
		t.Fatalf("fees error: %v", err)
	}
	if fees.GasPrice.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("gas price = %s, want node suggestion 1000000000", fees.GasPrice)
	}
}

func TestFeeOracleTipFloorOnDynamicChain(t *testing.T) {
	client := &fakeChainClient{baseFee: big.NewInt(100), tip: big.NewInt(1)}
	oracle := NewFeeOracle(client, FeeOracleConfig{MaxFeeMultiplier: 2, MinPriorityFeeWei: big.NewInt(10)})

	fees, err := oracle.Fees(context.Background())
	if err != nil {
		t.Fatalf("fees error: %v", err)
	}
	if fees.MaxPriorityFeePerGas.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("tip = %s, want floor 10", fees.MaxPriorityFeePerGas)
	}
	if fees.MaxFeePerGas.Cmp(big.NewInt(210)) != 0 {
		t.Fatalf("fee cap = %s, want 210", fees.MaxFeePerGas)
	}
}

func TestFeeOracleNonFiniteMultiplierFallsBack(t *testing.T) {
	for _, mult := range []float64{math.Inf(1), math.NaN()} {
		client := &fakeChainClient{baseFee: big.NewInt(100), tip: big.NewInt(5)}
		oracle := NewFeeOracle(client, FeeOracleConfig{MaxFeeMultiplier: mult})

		fees, err := oracle.Fees(context.Background())
		if err != nil {
			t.Fatalf("multiplier %v: fees error: %v", mult, err)
		}
		if fees.MaxFeePerGas.Cmp(big.NewInt(205)) != 0 {
			t.Fatalf("multiplier %v: fee cap = %s, want 205", mult, fees.MaxFeePerGas)
		}
	}
}
