// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/k3lvincodes/Q-app-sub000/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	states       map[ledger.AccountID]ledger.WalletState
	transactions map[ledger.AccountID][]ledger.Transaction
	byKey        map[string]ledger.Transaction
	nextSeq      int64
}

var (
	_ ledger.Store   = (*Memory)(nil)
	_ ledger.TxStore = (*TxMemory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		states:       make(map[ledger.AccountID]ledger.WalletState),
		transactions: make(map[ledger.AccountID][]ledger.Transaction),
		byKey:        make(map[string]ledger.Transaction),
	}
}

func (m *Memory) CreateAccount(_ context.Context, accountID ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[accountID]; ok {
		return ledger.ErrAccountExists
	}
	m.states[accountID] = ledger.ZeroState()
	return nil
}

func (m *Memory) GetState(_ context.Context, accountID ledger.AccountID) (ledger.WalletState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[accountID]
	if !ok {
		return ledger.WalletState{}, ledger.ErrAccountNotFound
	}
	return state, nil
}

func (m *Memory) PutState(_ context.Context, accountID ledger.AccountID, state ledger.WalletState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putStateLocked(accountID, state)
}

func (m *Memory) putStateLocked(accountID ledger.AccountID, state ledger.WalletState) error {
	if _, ok := m.states[accountID]; !ok {
		return ledger.ErrAccountNotFound
	}
	m.states[accountID] = state
	return nil
}

func (m *Memory) Accounts(_ context.Context) ([]ledger.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]ledger.AccountID, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	return ids, nil
}

// Append records tx with the next sequence number, writing the assigned Seq
// back into tx. Append-only.
func (m *Memory) Append(_ context.Context, tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

func (m *Memory) appendLocked(tx *ledger.Transaction) error {
	if tx.IdempotencyKey != "" {
		if _, ok := m.byKey[tx.IdempotencyKey]; ok {
			return ledger.ErrDuplicateIdempotencyKey
		}
	}

	m.nextSeq++
	tx.Seq = m.nextSeq
	m.transactions[tx.AccountID] = append(m.transactions[tx.AccountID], *tx)
	if tx.IdempotencyKey != "" {
		m.byKey[tx.IdempotencyKey] = *tx
	}
	return nil
}

func (m *Memory) Transactions(_ context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Transaction, len(m.transactions[accountID]))
	copy(result, m.transactions[accountID])
	return result, nil
}

func (m *Memory) TransactionsAfter(_ context.Context, accountID ledger.AccountID, after int64) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, tx := range m.transactions[accountID] {
		if tx.Seq > after {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) LatestCheckpoint(_ context.Context, accountID ledger.AccountID) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := m.transactions[accountID]
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].IsCheckpoint() {
			cp := txs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindByIdempotencyKey(_ context.Context, key string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if tx, ok := m.byKey[key]; ok {
		found := tx
		return &found, nil
	}
	return nil, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with a unit of work.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a snapshot of the
// whole store and a restore on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	states       map[ledger.AccountID]ledger.WalletState
	transactions map[ledger.AccountID][]ledger.Transaction
	byKey        map[string]ledger.Transaction
	nextSeq      int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	statesCopy := make(map[ledger.AccountID]ledger.WalletState, len(tm.states))
	for k, v := range tm.states {
		statesCopy[k] = v
	}
	txsCopy := make(map[ledger.AccountID][]ledger.Transaction, len(tm.transactions))
	for k, v := range tm.transactions {
		txsCopy[k] = append([]ledger.Transaction{}, v...)
	}
	keyCopy := make(map[string]ledger.Transaction, len(tm.byKey))
	for k, v := range tm.byKey {
		keyCopy[k] = v
	}
	return memorySnapshot{states: statesCopy, transactions: txsCopy, byKey: keyCopy, nextSeq: tm.nextSeq}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.states = s.states
	tm.transactions = s.transactions
	tm.byKey = s.byKey
	tm.nextSeq = s.nextSeq
}

// txMemoryView operates on the parent's maps directly; the parent's mutex is
// already held for the duration of WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) CreateAccount(_ context.Context, accountID ledger.AccountID) error {
	if _, ok := tv.parent.states[accountID]; ok {
		return ledger.ErrAccountExists
	}
	tv.parent.states[accountID] = ledger.ZeroState()
	return nil
}

func (tv *txMemoryView) GetState(_ context.Context, accountID ledger.AccountID) (ledger.WalletState, error) {
	state, ok := tv.parent.states[accountID]
	if !ok {
		return ledger.WalletState{}, ledger.ErrAccountNotFound
	}
	return state, nil
}

func (tv *txMemoryView) PutState(_ context.Context, accountID ledger.AccountID, state ledger.WalletState) error {
	return tv.parent.putStateLocked(accountID, state)
}

func (tv *txMemoryView) Accounts(_ context.Context) ([]ledger.AccountID, error) {
	ids := make([]ledger.AccountID, 0, len(tv.parent.states))
	for id := range tv.parent.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func (tv *txMemoryView) Append(_ context.Context, tx *ledger.Transaction) error {
	return tv.parent.appendLocked(tx)
}

func (tv *txMemoryView) Transactions(_ context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	result := make([]ledger.Transaction, len(tv.parent.transactions[accountID]))
	copy(result, tv.parent.transactions[accountID])
	return result, nil
}

func (tv *txMemoryView) TransactionsAfter(_ context.Context, accountID ledger.AccountID, after int64) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for _, tx := range tv.parent.transactions[accountID] {
		if tx.Seq > after {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (tv *txMemoryView) LatestCheckpoint(_ context.Context, accountID ledger.AccountID) (*ledger.Transaction, error) {
	txs := tv.parent.transactions[accountID]
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].IsCheckpoint() {
			cp := txs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (tv *txMemoryView) FindByIdempotencyKey(_ context.Context, key string) (*ledger.Transaction, error) {
	if tx, ok := tv.parent.byKey[key]; ok {
		found := tx
		return &found, nil
	}
	return nil, nil
}
