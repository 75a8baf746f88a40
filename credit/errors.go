/*
errors.go - Centralized error taxonomy for the microcredit engine

PURPOSE:
  All domain error types in one place. Callers classify failures into
  four categories and react accordingly:

  1. Validation  - malformed input, terminal, no state change
  2. Conflict    - a lifecycle guard failed (window closed, cap hit,
                   insufficient tokens); terminal for this request
  3. Persistence - repository failure; transient, the whole request is
                   safe to retry since no partial write occurred
  4. Ledger      - bridge failure, defined in the bridge package; NOT
                   blindly retryable (see bridge.LedgerError)

USAGE:
  if errors.Is(err, credit.ErrStateConflict) { ... }

  var conflict *credit.StateConflictError
  if errors.As(err, &conflict) { log(conflict.Code) }

SEE ALSO:
  - types.go: Domain types raising these errors
  - ../bridge/errors.go: LedgerError (timeout vs rejection)
*/
package credit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input. No state changed.
	ErrValidation = errors.New("validation failed")

	// ErrStateConflict is returned when a lifecycle guard fails.
	ErrStateConflict = errors.New("state conflict")

	// ErrPersistence is returned when a repository operation fails.
	// Transient: the request performed no partial write and may be retried.
	ErrPersistence = errors.New("persistence failure")

	// ErrCampaignNotFound is returned when a referenced campaign doesn't exist.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrSupportNotFound is returned when a referenced support doesn't exist.
	ErrSupportNotFound = errors.New("support not found")

	// ErrCampaignNotPublished is returned when earning against a draft campaign.
	ErrCampaignNotPublished = errors.New("campaign not published")

	// ErrCampaignImmutable is returned when mutating a published campaign
	// outside the one-shot publication fields.
	ErrCampaignImmutable = errors.New("campaign is published and immutable")

	// ErrDuplicateSupport is returned when creating a support whose ID
	// already exists under the same campaign.
	ErrDuplicateSupport = errors.New("support already exists")

	// ErrDuplicateTransaction is returned when appending a transaction
	// record whose ID already exists. The log is append-only.
	ErrDuplicateTransaction = errors.New("transaction record already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StateConflictError describes a failed lifecycle guard.
type StateConflictError struct {
	Code    string // e.g. "outside_redeem_window", "insufficient_tokens"
	Message string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// InsufficientTokensError reports a redeem exceeding the remaining balance.
type InsufficientTokensError struct {
	SupportID SupportID
	Remaining Tokens
	Requested Tokens
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens on support %s: remaining %v, requested %v",
		e.SupportID, e.Remaining.Value, e.Requested.Value)
}

func (e *InsufficientTokensError) Unwrap() error { return ErrStateConflict }

// AmountOutOfRangeError reports an earn amount outside campaign bounds.
type AmountOutOfRangeError struct {
	CampaignID CampaignID
	Amount     Tokens
	Min        Tokens
	Max        Tokens
}

func (e *AmountOutOfRangeError) Error() string {
	return fmt.Sprintf("amount %v outside [%v, %v] for campaign %s",
		e.Amount.Value, e.Min.Value, e.Max.Value, e.CampaignID)
}

func (e *AmountOutOfRangeError) Unwrap() error { return ErrStateConflict }

// CampaignFullError reports the cumulative cap of a quantitative campaign.
type CampaignFullError struct {
	CampaignID CampaignID
	Issued     Tokens
	Cap        Tokens
	Requested  Tokens
}

func (e *CampaignFullError) Error() string {
	return fmt.Sprintf("campaign %s full: issued %v of %v, requested %v",
		e.CampaignID, e.Issued.Value, e.Cap.Value, e.Requested.Value)
}

func (e *CampaignFullError) Unwrap() error { return ErrStateConflict }

// PersistenceError wraps a repository failure with the failed operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict reports whether the error is a failed lifecycle guard.
func IsConflict(err error) bool { return errors.Is(err, ErrStateConflict) }

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound) || errors.Is(err, ErrSupportNotFound)
}

// IsRetryable reports whether the whole request may be safely replayed.
// Only persistence failures qualify: no partial write occurred. Ledger
// failures require the support-keyed retry path instead.
func IsRetryable(err error) bool { return errors.Is(err, ErrPersistence) }
