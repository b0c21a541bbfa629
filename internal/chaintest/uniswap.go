package chaintest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexbuy/internal/abis"
)

// Pool describes one Uniswap-V2 pair served by a factory.
type Pool struct {
	Factory  common.Address
	Pair     common.Address
	Token0   common.Address
	Token1   common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// InstallPool answers getPair on the factory (either token order) and the
// pair's token0, token1 and getReserves.
func (b *Backend) InstallPool(p Pool) {
	b.Handle(p.Factory, abis.Factory, "getPair", func(args []interface{}) ([]interface{}, error) {
		a := args[0].(common.Address)
		c := args[1].(common.Address)
		if (a == p.Token0 && c == p.Token1) || (a == p.Token1 && c == p.Token0) {
			return []interface{}{p.Pair}, nil
		}
		return []interface{}{common.Address{}}, nil
	})
	b.Returns(p.Pair, abis.Pair, "token0", p.Token0)
	b.Returns(p.Pair, abis.Pair, "token1", p.Token1)
	b.Returns(p.Pair, abis.Pair, "getReserves", p.Reserve0, p.Reserve1, uint32(1700000000))
}

// EmptyFactory answers getPair with the zero address for any tokens.
func (b *Backend) EmptyFactory(factory common.Address) {
	b.Returns(factory, abis.Factory, "getPair", common.Address{})
}

// Quote answers router getAmountsOut with amountIn*num/den as the final hop.
func (b *Backend) Quote(router common.Address, num, den int64) {
	b.Handle(router, abis.Router, "getAmountsOut", func(args []interface{}) ([]interface{}, error) {
		amountIn := args[0].(*big.Int)
		path := args[1].([]common.Address)
		amounts := make([]*big.Int, len(path))
		amounts[0] = new(big.Int).Set(amountIn)
		for i := 1; i < len(path); i++ {
			v := new(big.Int).Mul(amounts[i-1], big.NewInt(num))
			amounts[i] = v.Div(v, big.NewInt(den))
		}
		return []interface{}{amounts}, nil
	})
}

// InstallToken answers symbol, decimals and balanceOf for an ERC20.
func (b *Backend) InstallToken(token common.Address, symbol string, decimals uint8, balances map[common.Address]*big.Int) {
	b.Returns(token, abis.ERC20, "symbol", symbol)
	b.Returns(token, abis.ERC20, "decimals", decimals)
	b.Handle(token, abis.ERC20, "balanceOf", func(args []interface{}) ([]interface{}, error) {
		owner := args[0].(common.Address)
		if v, ok := balances[owner]; ok {
			return []interface{}{new(big.Int).Set(v)}, nil
		}
		return []interface{}{big.NewInt(0)}, nil
	})
}

// SwapLog builds a pair Swap event as a node would return it.
func SwapLog(pair, sender, to common.Address, amount0In, amount1In, amount0Out, amount1Out *big.Int) *types.Log {
	ev := abis.Pair.Events["Swap"]
	data, err := ev.Inputs.NonIndexed().Pack(amount0In, amount1In, amount0Out, amount1Out)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: pair,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(sender.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    data,
	}
}

// TransferLog builds an ERC20 Transfer event.
func TransferLog(token, from, to common.Address, value *big.Int) *types.Log {
	ev := abis.ERC20.Events["Transfer"]
	data, err := ev.Inputs.NonIndexed().Pack(value)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: token,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    data,
	}
}
