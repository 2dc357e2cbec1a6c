/*
verify.go - Replay/audit verification

PURPOSE:
  Reconstructs a wallet by replaying the transaction log from the newest
  checkpoint and asserts bit-exact equality with the live state. Run by
  audit tooling and tests, never by production request paths.

WHAT A MISMATCH MEANS:
  Either the engine has a bug, or something mutated a wallet row without
  going through Apply. Both are fatal. The verifier reports; it never
  "fixes" a wallet, because auto-correcting a ledger erases the evidence
  of a bug or an attack.

READ-ONLY:
  Verify performs no writes of any kind.

SEE ALSO:
  - engine.go: Replay uses the same transition table as live applies
  - checkpoint.go: Snapshot encoding
*/
package ledger

import (
	"context"
	"fmt"
)

// =============================================================================
// VERIFIER
// =============================================================================

// Verifier replays transaction logs against live wallet state.
type Verifier struct {
	Store Store
}

func NewVerifier(store Store) *Verifier {
	return &Verifier{Store: store}
}

// VerifyResult describes one account's verification outcome.
type VerifyResult struct {
	AccountID AccountID   `json:"account_id"`
	Match     bool        `json:"match"`
	Live      WalletState `json:"live"`
	Replayed  WalletState `json:"replayed"`

	// CheckpointSeq is the Seq of the checkpoint replay anchored to,
	// or 0 when the full history was replayed from a zero wallet.
	CheckpointSeq int64 `json:"checkpoint_seq"`

	// ReplayedCount is how many non-checkpoint transactions were applied.
	ReplayedCount int `json:"replayed_count"`
}

// Err returns the fatal mismatch error for a failed verification, nil for a
// match. Split out so callers can log the full result and still errors.Is
// against ErrStateMismatch.
func (r *VerifyResult) Err() error {
	if r.Match {
		return nil
	}
	return &MismatchError{AccountID: r.AccountID, Live: r.Live, Replayed: r.Replayed}
}

// Verify replays account's log from its newest checkpoint (or from zero when
// none exists) and compares against the live state.
//
// The live state, the checkpoint, and the log are read in separate store
// calls. The caller must keep applies for the account from committing in
// between (the wallet service holds the account lock), or a ledger that was
// consistent at every instant can be reported as a mismatch.
//
// A non-nil result with Match == false is not returned as an error; callers
// decide how loudly to surface it via VerifyResult.Err.
func (v *Verifier) Verify(ctx context.Context, accountID AccountID) (*VerifyResult, error) {
	live, err := v.Store.GetState(ctx, accountID)
	if err != nil {
		return nil, err
	}

	start := ZeroState()
	var anchorSeq int64
	cp, err := v.Store.LatestCheckpoint(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if cp != nil {
		start, err = DecodeSnapshot(*cp)
		if err != nil {
			return nil, err
		}
		anchorSeq = cp.Seq
	}

	txs, err := v.Store.TransactionsAfter(ctx, accountID, anchorSeq)
	if err != nil {
		return nil, err
	}

	replayed := start
	count := 0
	for _, tx := range txs {
		if tx.IsCheckpoint() {
			continue
		}
		next, err := Apply(replayed, tx)
		if err != nil {
			return nil, fmt.Errorf("replay of %s rejected tx %s (seq %d): %w",
				accountID, tx.ID, tx.Seq, err)
		}
		replayed = next
		count++
	}

	return &VerifyResult{
		AccountID:     accountID,
		Match:         live.Equal(replayed),
		Live:          live,
		Replayed:      replayed,
		CheckpointSeq: anchorSeq,
		ReplayedCount: count,
	}, nil
}

// VerifyAll sweeps every provisioned account. It keeps going past mismatches
// so a drift-detection job reports all of them in one run.
func (v *Verifier) VerifyAll(ctx context.Context) ([]*VerifyResult, error) {
	accounts, err := v.Store.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*VerifyResult, 0, len(accounts))
	for _, id := range accounts {
		res, err := v.Verify(ctx, id)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
