package wallet

import (
	"context"
	"sync"

	"github.com/k3lvincodes/Q-app-sub000/ledger"
)

// =============================================================================
// PER-ACCOUNT LOCKS - Serialization for the application boundary
// =============================================================================

// accountLocks hands out one semaphore per account so that applies for the
// same account serialize while applies for different accounts run in
// parallel. Acquisition honors context cancellation, so a caller whose
// deadline expires while queued behind another apply fails cleanly instead
// of blocking forever.
//
// Entries are never removed; the map is bounded by the number of accounts
// ever touched by this process.
type accountLocks struct {
	mu   sync.Mutex
	sems map[ledger.AccountID]chan struct{}
}

func newAccountLocks() *accountLocks {
	return &accountLocks{sems: make(map[ledger.AccountID]chan struct{})}
}

func (l *accountLocks) sem(accountID ledger.AccountID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[accountID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[accountID] = sem
	}
	return sem
}

// acquire blocks until the account's lock is held or ctx is done.
// The returned release must be called exactly once.
func (l *accountLocks) acquire(ctx context.Context, accountID ledger.AccountID) (release func(), err error) {
	sem := l.sem(accountID)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
