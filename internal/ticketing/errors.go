package ticketing

import (
	"fmt"

	"github.com/gatepass/ticket-gate/internal/model"
)

// ValidationError rejects a request before any side effect.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Msg
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MintTransactionError covers submission failure, a reverted receipt and a
// confirmation wait that timed out.  TxHash is empty when nothing was sent.
type MintTransactionError struct {
	TxHash string
	Err    error
}

func (e *MintTransactionError) Error() string {
	if e.TxHash == "" {
		return "mint transaction failed: " + e.Err.Error()
	}
	return fmt.Sprintf("mint transaction %s failed: %v", e.TxHash, e.Err)
}

func (e *MintTransactionError) Unwrap() error { return e.Err }

// TokenIDUnresolvedError means the mint confirmed but no strategy could
// name the token it produced.
type TokenIDUnresolvedError struct {
	TxHash string
	Err    error
}

func (e *TokenIDUnresolvedError) Error() string {
	msg := "token id unresolved for " + e.TxHash
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenIDUnresolvedError) Unwrap() error { return e.Err }

// ReconciliationError means a token exists on-chain but its record could
// not be written.  Ticket carries everything needed to replay the write.
type ReconciliationError struct {
	Ticket model.Ticket
	Queued bool
	Err    error
}

func (e *ReconciliationError) Error() string {
	state := "not queued"
	if e.Queued {
		state = "queued"
	}
	return fmt.Sprintf("ticket for tx %s pending reconciliation (%s): %v", derefString(e.Ticket.MintTxHash), state, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// StorageError wraps a failing store call.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
