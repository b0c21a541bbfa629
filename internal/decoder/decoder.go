// Package decoder extracts swap results from transaction receipts by event
// name rather than log position.
package decoder

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexbuy/internal/abis"
	"dexbuy/internal/errs"
)

type Method struct {
	Name string
	Args map[string]interface{}
}

type Log struct {
	Event   string
	Address common.Address
	Index   uint
	Args    map[string]interface{}
}

// Expect describes the swap a receipt should contain. Token0 is the pair's
// token0 and decides which Swap amount belongs to Output.
type Expect struct {
	Pair      common.Address
	Token0    common.Address
	Output    common.Address
	Recipient common.Address
}

type Decoder struct {
	router abi.ABI
	events map[common.Hash]abi.Event
}

func New() *Decoder {
	swap := abis.Pair.Events["Swap"]
	transfer := abis.ERC20.Events["Transfer"]
	return &Decoder{
		router: abis.Router,
		events: map[common.Hash]abi.Event{
			swap.ID:     swap,
			transfer.ID: transfer,
		},
	}
}

// DecodeInput names a router call and its arguments. Unknown selectors
// return nil.
func (d *Decoder) DecodeInput(data []byte) (*Method, error) {
	if len(data) < 4 {
		return nil, nil
	}
	method, err := d.router.MethodById(data[:4])
	if err != nil {
		return nil, nil
	}
	args := map[string]interface{}{}
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, err
	}
	return &Method{Name: method.Name, Args: normalizeMap(args)}, nil
}

// DecodeLogs decodes every Swap and Transfer log. Logs that share a topic but
// not the layout (ERC721 Transfer, for one) are skipped.
func (d *Decoder) DecodeLogs(logs []*types.Log) []Log {
	decoded := make([]Log, 0, len(logs))
	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 {
			continue
		}
		ev, ok := d.events[l.Topics[0]]
		if !ok {
			continue
		}
		args := map[string]interface{}{}
		if err := ev.Inputs.UnpackIntoMap(args, l.Data); err != nil {
			continue
		}
		var indexed abi.Arguments
		for _, in := range ev.Inputs {
			if in.Indexed {
				indexed = append(indexed, in)
			}
		}
		if len(l.Topics)-1 != len(indexed) {
			continue
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, l.Topics[1:]); err != nil {
			continue
		}
		decoded = append(decoded, Log{Event: ev.Name, Address: l.Address, Index: l.Index, Args: args})
	}
	return decoded
}

// AmountOut returns the amount of want.Output delivered to want.Recipient.
// A Swap log from the pair wins; an ERC20 Transfer from the output token is
// the fallback for routers that forward through another contract.
func (d *Decoder) AmountOut(receipt *types.Receipt, want Expect) (*big.Int, error) {
	if receipt == nil {
		return nil, fmt.Errorf("%w: receipt is nil", errs.ErrReceiptParse)
	}
	logs := d.DecodeLogs(receipt.Logs)

	outField := "amount1Out"
	if want.Output == want.Token0 {
		outField = "amount0Out"
	}
	for _, l := range logs {
		if l.Event != "Swap" || l.Address != want.Pair {
			continue
		}
		if to, _ := l.Args["to"].(common.Address); to != want.Recipient {
			continue
		}
		if v, ok := l.Args[outField].(*big.Int); ok {
			return new(big.Int).Set(v), nil
		}
	}
	for _, l := range logs {
		if l.Event != "Transfer" || l.Address != want.Output {
			continue
		}
		if to, _ := l.Args["to"].(common.Address); to != want.Recipient {
			continue
		}
		if v, ok := l.Args["value"].(*big.Int); ok {
			return new(big.Int).Set(v), nil
		}
	}
	return nil, fmt.Errorf("%w: no Swap or Transfer of %s to %s in tx %s",
		errs.ErrReceiptParse, want.Output.Hex(), want.Recipient.Hex(), receipt.TxHash.Hex())
}

func normalizeMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case common.Address:
		return t.Hex()
	case *big.Int:
		if t == nil {
			return "0"
		}
		return t.String()
	case []byte:
		return "0x" + hex.EncodeToString(t)
	case []common.Address:
		out := make([]string, 0, len(t))
		for _, a := range t {
			out = append(out, a.Hex())
		}
		return out
	case []*big.Int:
		out := make([]string, 0, len(t))
		for _, n := range t {
			if n == nil {
				out = append(out, "0")
				continue
			}
			out = append(out, n.String())
		}
		return out
	default:
		return t
	}
}
