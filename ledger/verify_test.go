package ledger_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3lvincodes/Q-app-sub000/ledger"
	"github.com/k3lvincodes/Q-app-sub000/ledger/store"
)

// seedAccount creates an account and appends txs through the log, applying
// each one to keep the live state consistent with the log.
func seedAccount(t *testing.T, mem *store.Memory, accountID ledger.AccountID, txs ...ledger.Transaction) ledger.WalletState {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, mem.CreateAccount(ctx, accountID))
	current := ledger.ZeroState()

	for i, tx := range txs {
		tx.AccountID = accountID
		tx.IdempotencyKey = fmt.Sprintf("seed-%s-%d", accountID, i)
		next, err := ledger.Apply(current, tx)
		require.NoError(t, err)
		require.NoError(t, mem.Append(ctx, &tx))
		require.NoError(t, mem.PutState(ctx, accountID, next))
		current = next
	}
	return current
}

func TestVerify_CleanLogMatches(t *testing.T) {
	// GIVEN: A log whose live state was produced by the engine
	// WHEN: Replaying from zero
	// THEN: Live and replayed states are identical

	mem := store.NewMemory()
	live := seedAccount(t, mem, "acct-1",
		tx(ledger.TxGiftCredit, 500, 500, 0),
		tx(ledger.TxDepositCredit, 700, 700, 0),
		tx(ledger.TxCashSpend, 300, 300, 0),
	)

	res, err := ledger.NewVerifier(mem).Verify(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, live, res.Replayed)
	assert.Equal(t, 3, res.ReplayedCount)
	assert.NoError(t, res.Err())
}

func TestVerify_AnchorsAtLatestCheckpoint(t *testing.T) {
	// GIVEN: A log with a checkpoint in the middle
	// WHEN: Verifying
	// THEN: Replay starts from the checkpoint snapshot, not from zero

	ctx := context.Background()
	mem := store.NewMemory()
	mid := seedAccount(t, mem, "acct-1",
		tx(ledger.TxDepositCredit, 1000, 1000, 0),
		tx(ledger.TxGiftCredit, 200, 200, 0),
	)

	cp, err := ledger.NewCheckpoint("acct-1", mid, "cp-1", "test")
	require.NoError(t, err)
	require.NoError(t, mem.Append(ctx, &cp))

	// More activity after the checkpoint.
	spend := tx(ledger.TxCashSpend, 400, 400, 0)
	spend.AccountID = "acct-1"
	spend.IdempotencyKey = "post-cp-1"
	next, err := ledger.Apply(mid, spend)
	require.NoError(t, err)
	require.NoError(t, mem.Append(ctx, &spend))
	require.NoError(t, mem.PutState(ctx, "acct-1", next))

	res, err := ledger.NewVerifier(mem).Verify(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, next, res.Replayed)
	assert.Equal(t, cp.Seq, res.CheckpointSeq)
	assert.Equal(t, 1, res.ReplayedCount, "only post-checkpoint transactions replay")
}

func TestVerify_TamperedLiveStateIsFatal(t *testing.T) {
	// GIVEN: A live state that was mutated outside the engine
	// WHEN: Verifying
	// THEN: Mismatch is reported with both states; nothing is repaired

	ctx := context.Background()
	mem := store.NewMemory()
	seedAccount(t, mem, "acct-1",
		tx(ledger.TxDepositCredit, 1000, 1000, 0),
	)

	// Tamper: bump the balance behind the log's back.
	require.NoError(t, mem.PutState(ctx, "acct-1", ledger.WalletState{Balance: 9999}))

	res, err := ledger.NewVerifier(mem).Verify(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Equal(t, int64(9999), res.Live.Balance)
	assert.Equal(t, int64(1000), res.Replayed.Balance)

	var mismatch *ledger.MismatchError
	require.ErrorAs(t, res.Err(), &mismatch)
	assert.ErrorIs(t, res.Err(), ledger.ErrStateMismatch)
	assert.True(t, ledger.IsFatal(res.Err()))

	// The store is untouched: live state still the tampered value.
	live, err := mem.GetState(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9999), live.Balance)
}

func TestVerify_UnknownAccount(t *testing.T) {
	_, err := ledger.NewVerifier(store.NewMemory()).Verify(context.Background(), "nope")
	assert.True(t, ledger.IsNotFound(err))
}

func TestVerifyAll_SweepsEveryAccount(t *testing.T) {
	mem := store.NewMemory()
	seedAccount(t, mem, "acct-1", tx(ledger.TxDepositCredit, 100, 100, 0))
	seedAccount(t, mem, "acct-2", tx(ledger.TxGiftCredit, 50, 50, 0))

	results, err := ledger.NewVerifier(mem).VerifyAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Match, "account %s", res.AccountID)
	}
}

func TestCheckpoint_SnapshotRoundTrip(t *testing.T) {
	st := ledger.WalletState{Balance: 3500, EarningsBalance: 1500, BootsCount: 300}
	cp, err := ledger.NewCheckpoint("acct-1", st, "cp-key", "admin")
	require.NoError(t, err)
	assert.True(t, cp.IsCheckpoint())
	assert.NoError(t, cp.Validate())

	decoded, err := ledger.DecodeSnapshot(cp)
	require.NoError(t, err)
	assert.Equal(t, st, decoded)
}

func TestLog_DuplicateKeyRejected(t *testing.T) {
	// GIVEN: A transaction already in the log
	// WHEN: Appending another with the same idempotency key
	// THEN: ErrDuplicateIdempotencyKey

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.CreateAccount(ctx, "acct-1"))
	wlog := ledger.NewLog(mem)

	first := tx(ledger.TxDepositCredit, 100, 100, 0)
	first.AccountID = "acct-1"
	first.IdempotencyKey = "dup-key"
	require.NoError(t, wlog.Append(ctx, &first))

	second := tx(ledger.TxDepositCredit, 200, 200, 0)
	second.AccountID = "acct-1"
	second.IdempotencyKey = "dup-key"
	err := wlog.Append(ctx, &second)
	require.Error(t, err)
	assert.True(t, ledger.IsDuplicate(err))

	found, err := wlog.Find(ctx, "dup-key")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(100), found.Total, "original transaction wins")
}
