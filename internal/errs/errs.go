// Package errs holds the failure kinds shared by every stage of a swap run.
// Callers wrap a kind with fmt.Errorf("%w: ...: %w", kind, cause) and test
// with errors.Is. No kind is retryable.
package errs

import "errors"

var (
	ErrConfig                   = errors.New("configuration error")
	ErrConnection               = errors.New("connection error")
	ErrContractCall             = errors.New("contract call error")
	ErrInsufficientGas          = errors.New("insufficient gas balance")
	ErrInsufficientInputBalance = errors.New("insufficient input balance")
	ErrData                     = errors.New("data error")
	ErrSubmission               = errors.New("submission error")
	ErrReverted                 = errors.New("transaction reverted")
	ErrTimeout                  = errors.New("confirmation timeout")
	ErrReceiptParse             = errors.New("receipt parse error")
)

var kinds = []error{
	ErrConfig,
	ErrConnection,
	ErrContractCall,
	ErrInsufficientGas,
	ErrInsufficientInputBalance,
	ErrData,
	ErrSubmission,
	ErrReverted,
	ErrTimeout,
	ErrReceiptParse,
}

// Kind returns the first known kind found in err's chain, or nil.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ExitCode maps an error to a process exit status. Unknown errors map to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Kind(err) {
	case ErrConfig:
		return 2
	case ErrConnection:
		return 3
	case ErrContractCall:
		return 4
	case ErrInsufficientGas, ErrInsufficientInputBalance:
		return 5
	case ErrData:
		return 6
	case ErrSubmission:
		return 7
	case ErrReverted:
		return 8
	case ErrTimeout:
		return 9
	case ErrReceiptParse:
		return 10
	default:
		return 1
	}
}

var labels = map[error]string{
	ErrConfig:                   "config",
	ErrConnection:               "connection",
	ErrContractCall:             "contract_call",
	ErrInsufficientGas:          "insufficient_gas",
	ErrInsufficientInputBalance: "insufficient_input_balance",
	ErrData:                     "data",
	ErrSubmission:               "submission",
	ErrReverted:                 "reverted",
	ErrTimeout:                  "timeout",
	ErrReceiptParse:             "receipt_parse",
}

// Label is a short metric label for err: "ok" for nil, "unknown" when no
// kind matches.
func Label(err error) string {
	if err == nil {
		return "ok"
	}
	if l, ok := labels[Kind(err)]; ok {
		return l
	}
	return "unknown"
}
