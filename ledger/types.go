/*
Package ledger provides the wallet ledger engine.

PURPOSE:
  This package contains the types and algorithms that own each account's
  monetary state. Every deposit, gift, spend, and purchase flows through
  the same state-transition function, and every change is recorded in an
  append-only transaction log that the wallet state can always be rebuilt
  from.

KEY CONCEPTS IN THIS FILE (types.go):
  - WalletState: The three tracked fields (balance, earnings, boots)
  - Transaction: An immutable record of one financial event
  - AccountID/TransactionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Integer money: All amounts are int64 in the smallest unit. Fractional
     amounts are a format error at the boundary, never a wallet error.
  2. Immutability: Transactions are never modified after they are written.
  3. Single writer: Only Apply transitions WalletState. Nothing else is
     permitted to touch balance, earnings_balance, or boots_count.
  4. Auditability: Every transaction carries an idempotency key and an actor.

SEE ALSO:
  - engine.go: The Apply transition function
  - store.go: Persistence interfaces
  - verify.go: Replay-based audit verification
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string

// =============================================================================
// WALLET STATE - The three fields the engine owns
// =============================================================================

// WalletState is the per-account monetary state.
//
// INVARIANTS (hold after every successful Apply and at rest):
//   - Balance >= 0
//   - EarningsBalance >= 0
//   - EarningsBalance <= Balance
//   - BootsCount >= 0
type WalletState struct {
	// Balance is the total spendable funds: deposits + gifts - spends.
	Balance int64 `json:"balance"`

	// EarningsBalance is the portion of Balance that originated from gifts
	// rather than deposits. It governs withdrawal eligibility elsewhere in
	// the app and can never exceed Balance.
	EarningsBalance int64 `json:"earnings_balance"`

	// BootsCount is a secondary reward currency, only ever decremented by
	// purchases that explicitly spend boots.
	BootsCount int64 `json:"boots_count"`
}

// ZeroState is the state of a freshly provisioned account.
func ZeroState() WalletState { return WalletState{} }

// Equal reports bit-exact equality of all three fields.
func (s WalletState) Equal(o WalletState) bool { return s == o }

// CheckInvariants returns an error describing the first violated invariant,
// or nil when the state is well-formed.
func (s WalletState) CheckInvariants() error {
	switch {
	case s.Balance < 0:
		return fmt.Errorf("%w: balance %d < 0", ErrInvariantViolated, s.Balance)
	case s.EarningsBalance < 0:
		return fmt.Errorf("%w: earnings_balance %d < 0", ErrInvariantViolated, s.EarningsBalance)
	case s.EarningsBalance > s.Balance:
		return fmt.Errorf("%w: earnings_balance %d > balance %d", ErrInvariantViolated, s.EarningsBalance, s.Balance)
	case s.BootsCount < 0:
		return fmt.Errorf("%w: boots_count %d < 0", ErrInvariantViolated, s.BootsCount)
	}
	return nil
}

func (s WalletState) String() string {
	return fmt.Sprintf("{balance:%d earnings:%d boots:%d}", s.Balance, s.EarningsBalance, s.BootsCount)
}

// =============================================================================
// TRANSACTION - One financial event, append-only
// =============================================================================

type TransactionType string

const (
	TxDepositCredit TransactionType = "deposit_credit" // Verified deposit, never counts as earnings
	TxGiftCredit    TransactionType = "gift_credit"    // Gift received, counts as earnings
	TxCashSpend     TransactionType = "cash_spend"     // Cash-only debit (subscription share, fee)
	TxPurchase      TransactionType = "purchase"       // Debit split between cash and boots
	TxCheckpoint    TransactionType = "checkpoint"     // State snapshot, no monetary effect
)

// KnownType reports whether t is one of the five supported transaction types.
func KnownType(t TransactionType) bool {
	switch t {
	case TxDepositCredit, TxGiftCredit, TxCashSpend, TxPurchase, TxCheckpoint:
		return true
	}
	return false
}

// Transaction records one financial event submitted against an account.
// Once written it is immutable; the log of transactions is the source of
// truth from which WalletState is always reconstructible.
type Transaction struct {
	ID        TransactionID
	AccountID AccountID
	Type      TransactionType

	// Total is the full amount of the event. For purchases it splits into
	// CashUsed + BootsUsed; for every other monetary type CashUsed == Total
	// and BootsUsed == 0. A checkpoint carries all zeroes.
	Total     int64
	CashUsed  int64
	BootsUsed int64

	// IdempotencyKey is supplied by the caller, unique per logical event.
	// Resubmissions with the same key never mutate the wallet twice.
	IdempotencyKey string

	// Description is free text. For checkpoints it holds the JSON-encoded
	// state snapshot replay anchors to.
	Description string

	// Actor identifies who submitted the event ("webhook", "admin:alice", ...).
	Actor string

	// Seq is assigned by the store on append and is strictly increasing,
	// which gives replay its per-account ordering.
	Seq int64

	CreatedAt time.Time
}

// Validate checks the shape of a transaction: the amount split rule for its
// type and non-negativity of every component. It does not consult wallet
// state; insufficiency is the engine's concern, not a format concern.
func (tx Transaction) Validate() error {
	if tx.AccountID == "" {
		return &MalformedTransactionError{Tx: tx, Reason: "missing account id"}
	}
	if !KnownType(tx.Type) {
		return &MalformedTransactionError{Tx: tx, Reason: fmt.Sprintf("unknown type %q", tx.Type)}
	}
	if tx.Total < 0 || tx.CashUsed < 0 || tx.BootsUsed < 0 {
		return &MalformedTransactionError{Tx: tx, Reason: "negative amount"}
	}

	switch tx.Type {
	case TxPurchase:
		if tx.CashUsed+tx.BootsUsed != tx.Total {
			return &MalformedTransactionError{
				Tx:     tx,
				Reason: fmt.Sprintf("cash_used %d + boots_used %d != total %d", tx.CashUsed, tx.BootsUsed, tx.Total),
			}
		}
	case TxCheckpoint:
		if tx.Total != 0 || tx.CashUsed != 0 || tx.BootsUsed != 0 {
			return &MalformedTransactionError{Tx: tx, Reason: "checkpoint must carry no amounts"}
		}
	default:
		if tx.CashUsed != tx.Total || tx.BootsUsed != 0 {
			return &MalformedTransactionError{
				Tx:     tx,
				Reason: fmt.Sprintf("%s requires cash_used == total and boots_used == 0", tx.Type),
			}
		}
	}
	return nil
}

// IsCheckpoint reports whether the transaction is a snapshot marker.
func (tx Transaction) IsCheckpoint() bool { return tx.Type == TxCheckpoint }
