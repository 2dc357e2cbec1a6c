/*
Package wallet provides the atomic application boundary around the ledger
engine.

PURPOSE:
  The Service is the only entry point collaborators use to mutate or read
  wallet state: deposit-verification callbacks, gift-claim handlers,
  subscription-purchase handlers, and admin tooling all call Apply. It
  makes "guard duplicates, validate, record transaction, update wallet"
  indivisible per account.

CONCURRENCY MODEL (pessimistic, per-account):
  Each account has its own lock. An apply holds the account's lock across
  the whole storage unit of work, so two submissions for one account
  serialize: the second is evaluated against the first one's post-state
  and, if the funds are gone, is rejected with an insufficiency reason.
  Submissions for different accounts never contend. Lock acquisition
  honors context cancellation.

IDEMPOTENCY GUARD:
  Every submission must carry a caller-supplied idempotency key. The first
  application records it; any later submission with the same key returns
  the live state with Duplicate set and mutates nothing, no matter how
  many duplicates arrive or how concurrently.

EXACTLY-ONCE CONTRACT:
  Every successful Apply corresponds to exactly one recorded transaction
  and exactly one wallet mutation, committed together. There is no
  "probably applied": if the unit of work cannot commit, the caller gets
  an error and nothing changed.

SEE ALSO:
  - ledger/engine.go: The pure transition function this wraps
  - ledger/verify.go: Audit verification exposed via Verify
*/
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/k3lvincodes/Q-app-sub000/ledger"
	"github.com/k3lvincodes/Q-app-sub000/metrics"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service owns all wallet mutations.
type Service struct {
	store ledger.TxStore
	locks *accountLocks
	log   *logrus.Logger
}

func NewService(store ledger.TxStore, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		store: store,
		locks: newAccountLocks(),
		log:   log,
	}
}

// ApplyResult is what a collaborator observes after submitting a transaction.
type ApplyResult struct {
	// State is the wallet after this submission: the new post-state for a
	// first application, the live state for a duplicate.
	State ledger.WalletState

	// Duplicate is true when the idempotency key was seen before. The
	// original application's effect is already in State; nothing was
	// mutated by this call.
	Duplicate bool

	// Transaction is the recorded transaction: the one written by this
	// call, or the original one for a duplicate.
	Transaction ledger.Transaction
}

// =============================================================================
// APPLY - The single mutation path
// =============================================================================

// Apply submits one transaction. On success the transaction is recorded and
// the wallet updated, atomically. On rejection (insufficient funds or boots,
// malformed shape) nothing is recorded and nothing changes, and the error
// satisfies ledger.IsReject.
func (s *Service) Apply(ctx context.Context, tx ledger.Transaction) (*ApplyResult, error) {
	start := time.Now()
	result, err := s.apply(ctx, tx)
	metrics.ApplyDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil && result.Duplicate:
		metrics.AppliesTotal.WithLabelValues(string(tx.Type), metrics.OutcomeDuplicate).Inc()
	case err == nil:
		metrics.AppliesTotal.WithLabelValues(string(tx.Type), metrics.OutcomeApplied).Inc()
	case ledger.IsReject(err):
		metrics.AppliesTotal.WithLabelValues(string(tx.Type), metrics.OutcomeRejected).Inc()
	default:
		metrics.AppliesTotal.WithLabelValues(string(tx.Type), metrics.OutcomeError).Inc()
	}
	return result, err
}

func (s *Service) apply(ctx context.Context, tx ledger.Transaction) (*ApplyResult, error) {
	if tx.IdempotencyKey == "" {
		return nil, &ledger.MalformedTransactionError{Tx: tx, Reason: "missing idempotency key"}
	}
	// Shape problems fail before any locking or storage work.
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	release, err := s.locks.acquire(ctx, tx.AccountID)
	if err != nil {
		return nil, err
	}
	defer release()

	fields := logrus.Fields{
		"account_id":      tx.AccountID,
		"tx_type":         tx.Type,
		"idempotency_key": tx.IdempotencyKey,
	}

	var result *ApplyResult
	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		wlog := ledger.NewLog(st)

		prior, err := wlog.Find(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if prior != nil {
			// A key is only a duplicate of the event it was issued for. The
			// same key on a different account is caller misuse, not a retry.
			if prior.AccountID != tx.AccountID {
				return &ledger.MalformedTransactionError{
					Tx:     tx,
					Reason: fmt.Sprintf("idempotency key already used by account %s", prior.AccountID),
				}
			}
			state, err := st.GetState(ctx, tx.AccountID)
			if err != nil {
				return err
			}
			result = &ApplyResult{State: state, Duplicate: true, Transaction: *prior}
			return nil
		}

		state, err := st.GetState(ctx, tx.AccountID)
		if err != nil {
			return err
		}

		next, err := ledger.Apply(state, tx)
		if err != nil {
			// Rejection: roll back with nothing written.
			return err
		}

		if tx.ID == "" {
			tx.ID = ledger.TransactionID(uuid.NewString())
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}

		if err := wlog.Append(ctx, &tx); err != nil {
			return err
		}
		if err := st.PutState(ctx, tx.AccountID, next); err != nil {
			return err
		}

		result = &ApplyResult{State: next, Transaction: tx}
		return nil
	})

	if ledger.IsDuplicate(err) {
		// Same-account submissions serialize under the account lock and are
		// caught by the pre-check, so the unique index only fires here when
		// another account raced the same key in. Key misuse, not a retry.
		s.log.WithFields(fields).Warn("idempotency key raced in from another account")
		return nil, &ledger.MalformedTransactionError{
			Tx:     tx,
			Reason: "idempotency key already used by another account",
		}
	}
	if err != nil {
		if ledger.IsReject(err) {
			s.log.WithFields(fields).WithError(err).Info("transaction rejected")
		} else {
			s.log.WithFields(fields).WithError(err).Error("apply failed")
		}
		return nil, err
	}

	if result.Duplicate {
		s.log.WithFields(fields).Debug("duplicate submission, original application stands")
	} else {
		s.log.WithFields(fields).WithField("balance", result.State.Balance).Info("transaction applied")
	}
	return result, nil
}

// =============================================================================
// READS
// =============================================================================

// GetState returns the live wallet. Read-only, never blocks behind applies
// for other accounts.
func (s *Service) GetState(ctx context.Context, accountID ledger.AccountID) (ledger.WalletState, error) {
	return s.store.GetState(ctx, accountID)
}

// Transactions returns an account's full log in replay order.
func (s *Service) Transactions(ctx context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	return s.store.Transactions(ctx, accountID)
}

// =============================================================================
// PROVISIONING
// =============================================================================

// Provision creates a zero wallet for a new account.
func (s *Service) Provision(ctx context.Context, accountID ledger.AccountID) error {
	if accountID == "" {
		return ledger.ErrAccountNotFound
	}
	if err := s.store.CreateAccount(ctx, accountID); err != nil {
		return err
	}
	s.log.WithField("account_id", accountID).Info("account provisioned")
	return nil
}

// =============================================================================
// CHECKPOINT - Operator action bounding replay cost
// =============================================================================

// Checkpoint snapshots the account's live state into the log. The snapshot
// and the state it captures are read and written under the account lock in
// one unit of work, so no apply can slip between them.
func (s *Service) Checkpoint(ctx context.Context, accountID ledger.AccountID, idempotencyKey, actor string) (*ApplyResult, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	release, err := s.locks.acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *ApplyResult
	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		wlog := ledger.NewLog(st)

		prior, err := wlog.Find(ctx, idempotencyKey)
		if err != nil {
			return err
		}
		state, err := st.GetState(ctx, accountID)
		if err != nil {
			return err
		}
		if prior != nil {
			// Only this account's own checkpoint counts as a duplicate.
			if prior.AccountID != accountID || !prior.IsCheckpoint() {
				return &ledger.MalformedTransactionError{
					Tx:     ledger.Transaction{AccountID: accountID, Type: ledger.TxCheckpoint, IdempotencyKey: idempotencyKey},
					Reason: "idempotency key already used by a different event",
				}
			}
			result = &ApplyResult{State: state, Duplicate: true, Transaction: *prior}
			return nil
		}

		cp, err := ledger.NewCheckpoint(accountID, state, idempotencyKey, actor)
		if err != nil {
			return err
		}
		cp.ID = ledger.TransactionID(uuid.NewString())

		if err := wlog.Append(ctx, &cp); err != nil {
			return err
		}
		result = &ApplyResult{State: state, Transaction: cp}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		metrics.CheckpointsTotal.Inc()
		s.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"actor":      actor,
		}).Info("checkpoint written")
	}
	return result, nil
}

// =============================================================================
// VERIFY - Audit hook
// =============================================================================

// Verify replays the account from its newest checkpoint and compares with
// the live state. Read-only. A mismatch is reported, never repaired.
//
// The account lock is held across the verifier's reads: an apply committing
// between the live-state read and the log read would make a consistent
// ledger look like a mismatch.
func (s *Service) Verify(ctx context.Context, accountID ledger.AccountID) (*ledger.VerifyResult, error) {
	release, err := s.locks.acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := ledger.NewVerifier(s.store).Verify(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if res.Match {
		metrics.VerifyTotal.WithLabelValues("match").Inc()
	} else {
		metrics.VerifyTotal.WithLabelValues("mismatch").Inc()
		s.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"live":       res.Live.String(),
			"replayed":   res.Replayed.String(),
		}).Error("wallet state mismatch detected")
	}
	return res, nil
}

// VerifyAll audits every known account. Used by the CLI sweep; mismatched
// accounts are included in the result set, not returned as errors.
func (s *Service) VerifyAll(ctx context.Context) ([]*ledger.VerifyResult, error) {
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*ledger.VerifyResult, 0, len(accounts))
	for _, accountID := range accounts {
		res, err := s.Verify(ctx, accountID)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
