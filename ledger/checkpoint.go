package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// CHECKPOINT - Snapshot transaction anchoring replay
// =============================================================================

// Snapshot is the state image a checkpoint transaction carries in its
// description. Replay anchors to the newest snapshot instead of walking the
// full history.
type Snapshot struct {
	Balance         int64 `json:"balance"`
	EarningsBalance int64 `json:"earnings_balance"`
	BootsCount      int64 `json:"boots_count"`
}

// SnapshotOf freezes a wallet state into a snapshot.
func SnapshotOf(state WalletState) Snapshot {
	return Snapshot{
		Balance:         state.Balance,
		EarningsBalance: state.EarningsBalance,
		BootsCount:      state.BootsCount,
	}
}

// State thaws the snapshot back into a wallet state.
func (s Snapshot) State() WalletState {
	return WalletState{
		Balance:         s.Balance,
		EarningsBalance: s.EarningsBalance,
		BootsCount:      s.BootsCount,
	}
}

// NewCheckpoint builds the synthetic transaction that records state for
// account. The snapshot is JSON in the description; the monetary fields are
// all zero so replay treats it as a no-op.
func NewCheckpoint(accountID AccountID, state WalletState, idempotencyKey, actor string) (Transaction, error) {
	desc, err := json.Marshal(SnapshotOf(state))
	if err != nil {
		return Transaction{}, fmt.Errorf("encode checkpoint snapshot: %w", err)
	}
	return Transaction{
		AccountID:      accountID,
		Type:           TxCheckpoint,
		IdempotencyKey: idempotencyKey,
		Description:    string(desc),
		Actor:          actor,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// DecodeSnapshot parses the state image out of a checkpoint transaction.
func DecodeSnapshot(tx Transaction) (WalletState, error) {
	if !tx.IsCheckpoint() {
		return WalletState{}, fmt.Errorf("transaction %s is %s, not a checkpoint", tx.ID, tx.Type)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(tx.Description), &snap); err != nil {
		return WalletState{}, fmt.Errorf("decode checkpoint snapshot %s: %w", tx.ID, err)
	}
	return snap.State(), nil
}
