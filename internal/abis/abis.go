// Package abis holds the minimal contract interfaces used by the swap engine:
// the Uniswap-V2 factory, pair and router02 functions and the ERC20 subset.
package abis

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const factoryJSON = `[
	{"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],
	 "name":"getPair","outputs":[{"name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

const pairJSON = `[
	{"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getReserves","outputs":[
		{"name":"reserve0","type":"uint112"},
		{"name":"reserve1","type":"uint112"},
		{"name":"blockTimestampLast","type":"uint32"}],
	 "stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":false,"name":"amount0In","type":"uint256"},
		{"indexed":false,"name":"amount1In","type":"uint256"},
		{"indexed":false,"name":"amount0Out","type":"uint256"},
		{"indexed":false,"name":"amount1Out","type":"uint256"},
		{"indexed":true,"name":"to","type":"address"}],
	 "name":"Swap","type":"event"}
]`

const routerJSON = `[
	{"inputs":[
		{"name":"amountIn","type":"uint256"},
		{"name":"path","type":"address[]"}],
	 "name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[
		{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},
		{"name":"to","type":"address"},
		{"name":"deadline","type":"uint256"}],
	 "name":"swapExactETHForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
	{"inputs":[
		{"name":"amountIn","type":"uint256"},
		{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},
		{"name":"to","type":"address"},
		{"name":"deadline","type":"uint256"}],
	 "name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

const erc20JSON = `[
	{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[
		{"name":"spender","type":"address"},
		{"name":"amount","type":"uint256"}],
	 "name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}],
	 "name":"Transfer","type":"event"}
]`

var (
	Factory = mustParse(factoryJSON)
	Pair    = mustParse(pairJSON)
	Router  = mustParse(routerJSON)
	ERC20   = mustParse(erc20JSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
