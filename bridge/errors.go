/*
errors.go - Ledger failure classification

PURPOSE:
  Every bridge failure surfaces as a *LedgerError. Callers need exactly
  one distinction: a timeout (the ledger may or may not have applied the
  call; candidate for reconciliation, retryable after checking local
  state) versus an explicit rejection (the ledger refused the call, e.g.
  insufficient funds; terminal).

USAGE:
  if bridge.IsTimeout(err) {
      // outcome unknown: leave the support unbridged, reconcile later
  }
  if bridge.IsRejected(err) {
      // terminal: never retried
  }
*/
package bridge

import (
	"errors"
	"fmt"
)

// ErrLedger is the sentinel all bridge failures unwrap to.
var ErrLedger = errors.New("ledger call failed")

// LedgerError carries the failed operation and its classification.
type LedgerError struct {
	Op       Op
	Err      error // underlying ledger message
	Timeout  bool  // deadline exceeded; outcome on the ledger unknown
	Rejected bool  // explicit ledger rejection; terminal
}

func (e *LedgerError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("ledger %s timed out: %v", e.Op, e.Err)
	case e.Rejected:
		return fmt.Sprintf("ledger rejected %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
	}
}

func (e *LedgerError) Unwrap() error { return ErrLedger }

// IsLedger reports whether the error originated at the bridge.
func IsLedger(err error) bool { return errors.Is(err, ErrLedger) }

// IsTimeout reports whether the call timed out. The underlying
// operation may still complete; local state must be checked before any
// retry.
func IsTimeout(err error) bool {
	var le *LedgerError
	return errors.As(err, &le) && le.Timeout
}

// IsRejected reports whether the ledger explicitly refused the call.
// Rejections are terminal and never retried.
func IsRejected(err error) bool {
	var le *LedgerError
	return errors.As(err, &le) && le.Rejected
}
