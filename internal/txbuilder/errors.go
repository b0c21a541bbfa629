package txbuilder

import (
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// EstimateGasError keeps the rejected call so callers can replay it with
// eth_call to surface the revert reason.
type EstimateGasError struct {
	Err     error
	CallMsg ethereum.CallMsg
}

func (e *EstimateGasError) Error() string {
	if e == nil || e.Err == nil {
		return "estimate gas failed"
	}
	msg := "estimate gas failed: " + e.Err.Error()
	if e.CallMsg.To != nil {
		msg = "estimate gas for call to " + e.CallMsg.To.Hex() + " failed: " + e.Err.Error()
	}
	if reason := RevertReason(e.Err); reason != "" {
		msg += " (revert: " + reason + ")"
	}
	return msg
}

func (e *EstimateGasError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RevertReason decodes the Error(string) payload a node attaches to a
// reverted call, or returns "".
func RevertReason(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		if b, derr := hexutil.Decode(v); derr == nil {
			if reason, rerr := abi.UnpackRevert(b); rerr == nil {
				return reason
			}
		}
	case []byte:
		if reason, rerr := abi.UnpackRevert(v); rerr == nil {
			return reason
		}
	}
	return ""
}
