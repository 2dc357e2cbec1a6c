/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify outcomes with errors.Is/errors.As rather than string
  matching.

ERROR CATEGORIES:
  1. Rejections - Expected, recoverable by the caller. No state change.
  2. Duplicates - Same idempotency key seen again. Idempotent no-op.
  3. Storage errors - The unit of work could not be committed.
  4. Consistency violations - Fatal. Replay disagrees with live state.

SEE ALSO:
  - engine.go: Produces rejection errors
  - verify.go: Produces consistency violations
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when the cash portion of a debit
	// exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientBoots is returned when the boots portion of a purchase
	// exceeds the available boots count.
	ErrInsufficientBoots = errors.New("insufficient boots")

	// ErrMalformedTransaction is returned when a transaction fails shape
	// validation (bad split, negative amount, unknown type).
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrDuplicateIdempotencyKey is returned by stores when an append reuses
	// an idempotency key. The boundary turns this into a silent no-op; it is
	// expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrAccountNotFound is returned when no wallet exists for an account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when provisioning an already known account.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvariantViolated is returned when a wallet state breaks one of the
	// at-rest invariants. Seeing this outside tests means a bug.
	ErrInvariantViolated = errors.New("wallet invariant violated")

	// ErrStateMismatch is the fatal class: replay from checkpoint does not
	// reproduce the live state. Never auto-corrected.
	ErrStateMismatch = errors.New("wallet state does not match replay")

	// ErrTransactionFailed is returned when the storage unit of work cannot
	// be durably committed. The apply had no effect.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry rejection details
// =============================================================================

// InsufficientBalanceError reports a cash shortfall.
type InsufficientBalanceError struct {
	AccountID AccountID
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %d, requested %d",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InsufficientBootsError reports a boots shortfall.
type InsufficientBootsError struct {
	AccountID AccountID
	Available int64
	Requested int64
}

func (e *InsufficientBootsError) Error() string {
	return fmt.Sprintf("insufficient boots for %s: available %d, requested %d",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientBootsError) Unwrap() error { return ErrInsufficientBoots }

// MalformedTransactionError reports a shape violation.
type MalformedTransactionError struct {
	Tx     Transaction
	Reason string
}

func (e *MalformedTransactionError) Error() string {
	return fmt.Sprintf("malformed %s transaction: %s", e.Tx.Type, e.Reason)
}

func (e *MalformedTransactionError) Unwrap() error { return ErrMalformedTransaction }

// MismatchError carries the two states a failed verification compared.
type MismatchError struct {
	AccountID AccountID
	Live      WalletState
	Replayed  WalletState
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("state mismatch for %s: live %s, replayed %s",
		e.AccountID, e.Live, e.Replayed)
}

func (e *MismatchError) Unwrap() error { return ErrStateMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsReject returns true for expected, caller-recoverable rejections.
// The wallet and the log are unchanged when a rejection is returned.
func IsReject(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientBoots) ||
		errors.Is(err, ErrMalformedTransaction)
}

// IsDuplicate returns true when an idempotency key was seen before.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true when an account has no wallet.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsFatal returns true for consistency violations that must be surfaced
// loudly and never retried or swallowed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStateMismatch) || errors.Is(err, ErrInvariantViolated)
}
