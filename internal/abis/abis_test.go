package abis

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selectors and topics must match deployed Uniswap-V2 style contracts.
func TestSelectors(t *testing.T) {
	cases := []struct {
		name string
		got  []byte
		want string
	}{
		{"getPair", Factory.Methods["getPair"].ID, "0xe6a43905"},
		{"token0", Pair.Methods["token0"].ID, "0x0dfe1681"},
		{"token1", Pair.Methods["token1"].ID, "0xd21220a7"},
		{"getReserves", Pair.Methods["getReserves"].ID, "0x0902f1ac"},
		{"getAmountsOut", Router.Methods["getAmountsOut"].ID, "0xd06ca61f"},
		{"swapExactETHForTokens", Router.Methods["swapExactETHForTokens"].ID, "0x7ff36ab5"},
		{"swapExactTokensForTokens", Router.Methods["swapExactTokensForTokens"].ID, "0x38ed1739"},
		{"balanceOf", ERC20.Methods["balanceOf"].ID, "0x70a08231"},
		{"decimals", ERC20.Methods["decimals"].ID, "0x313ce567"},
		{"approve", ERC20.Methods["approve"].ID, "0x095ea7b3"},
	}
	for _, tc := range cases {
		if got := hexutil.Encode(tc.got); got != tc.want {
			t.Fatalf("%s selector: expected=%s actual=%s", tc.name, tc.want, got)
		}
	}
}

func TestEventTopics(t *testing.T) {
	swap := crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
	if Pair.Events["Swap"].ID != swap {
		t.Fatalf("unexpected Swap topic %s", Pair.Events["Swap"].ID.Hex())
	}
	transfer := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	if ERC20.Events["Transfer"].ID != transfer {
		t.Fatalf("unexpected Transfer topic %s", ERC20.Events["Transfer"].ID.Hex())
	}
}
