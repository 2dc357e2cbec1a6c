/*
store.go - Persistence interfaces for wallet state and the transaction log

PURPOSE:
  Defines the contract between the engine and the database. One Store owns
  both the wallet rows and the transaction log because the two are always
  written inside the same atomic unit: a transaction is recorded if and
  only if the wallet it produced is saved.

APPEND-ONLY CONTRACT:
  The transaction log has Append and reads. No Update, no Delete, ever.
  Wallet rows are the only mutable records, and only the engine's output
  is ever written to them.

IDEMPOTENCY:
  Append fails with ErrDuplicateIdempotencyKey when the key was seen
  before. Implementations back this with a unique index so that the
  storage layer catches what a racing pre-check might miss.

IMPLEMENTATIONS:
  - ledger/store:   In-memory, for tests and development
  - store/sqlite:   SQLite with WAL, for production

SEE ALSO:
  - log.go: Higher-level log access built on Store
*/
package ledger

import "context"

// =============================================================================
// STORE - Wallet rows + append-only transaction log
// =============================================================================

// Store persists wallet state and transactions.
//
// The transaction log is APPEND-ONLY. Seq is assigned by the store on append
// and is strictly increasing, which fixes the replay order per account.
type Store interface {
	// CreateAccount provisions a zero wallet. ErrAccountExists if known.
	CreateAccount(ctx context.Context, accountID AccountID) error

	// GetState returns the live wallet. ErrAccountNotFound if unknown.
	GetState(ctx context.Context, accountID AccountID) (WalletState, error)

	// PutState overwrites the live wallet for a known account.
	// Only the transactional boundary may call this, with engine output.
	PutState(ctx context.Context, accountID AccountID, state WalletState) error

	// Accounts lists every provisioned account.
	Accounts(ctx context.Context) ([]AccountID, error)

	// Append records a transaction and writes the assigned Seq back into tx.
	// ErrDuplicateIdempotencyKey if the key was seen before.
	Append(ctx context.Context, tx *Transaction) error

	// Transactions returns the full log for an account in Seq order.
	Transactions(ctx context.Context, accountID AccountID) ([]Transaction, error)

	// TransactionsAfter returns transactions with Seq > after, in Seq order.
	TransactionsAfter(ctx context.Context, accountID AccountID, after int64) ([]Transaction, error)

	// LatestCheckpoint returns the newest checkpoint transaction for the
	// account, or nil when none exists yet.
	LatestCheckpoint(ctx context.Context, accountID AccountID) (*Transaction, error)

	// FindByIdempotencyKey returns the transaction recorded under key,
	// or nil when the key is unseen.
	FindByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic "log + wallet" writes
// =============================================================================

// TxStore wraps Store with a unit of work.
//
// WithTx executes fn against a transactional view. If fn returns an error the
// unit of work is rolled back and nothing fn wrote is observable; otherwise
// everything commits together. This is what makes "append transaction and
// update wallet" all-or-nothing.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
