/*
log.go - Append access to the transaction log

PURPOSE:
  Log is the write path to the append-only transaction log. It makes
  duplicate detection an explicit first-class step (find-before-append)
  instead of an accident of the storage engine's unique index; the index
  remains as the backstop for races the pre-check cannot see.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No update, no delete. Ever.
  2. IMMUTABLE: Once written, transactions cannot be modified.
  3. IDEMPOTENT: Same idempotency key = same recorded transaction.

SEE ALSO:
  - store.go: Persistence interfaces
  - wallet package: Wraps Log in the per-account unit of work
*/
package ledger

import "context"

// Log provides append and duplicate lookup over a Store. Construct one per
// unit of work: NewLog(view) inside a TxStore.WithTx closure participates in
// that unit's atomicity.
type Log struct {
	store Store
}

func NewLog(store Store) *Log {
	return &Log{store: store}
}

// Find returns the transaction previously recorded under key, or nil.
func (l *Log) Find(ctx context.Context, key string) (*Transaction, error) {
	if key == "" {
		return nil, nil
	}
	return l.store.FindByIdempotencyKey(ctx, key)
}

// Append records tx and writes its assigned Seq back. Returns
// ErrDuplicateIdempotencyKey when the key was seen before, whether by the
// explicit pre-check or by the store's unique index.
func (l *Log) Append(ctx context.Context, tx *Transaction) error {
	if tx.IdempotencyKey != "" {
		prior, err := l.store.FindByIdempotencyKey(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if prior != nil {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.store.Append(ctx, tx)
}

// History returns the full log for an account in Seq order. Read-only.
func (l *Log) History(ctx context.Context, accountID AccountID) ([]Transaction, error) {
	return l.store.Transactions(ctx, accountID)
}
