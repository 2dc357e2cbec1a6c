/*
engine.go - The wallet state-transition function

PURPOSE:
  Apply is the single function permitted to compute a new WalletState.
  It is pure: given the current state and a transaction it returns the
  next state or a rejection, touching nothing else. The transactional
  boundary in the wallet package wraps it with storage and locking.

TRANSITION TABLE:
  deposit_credit  balance += total
  gift_credit     balance += total, earnings += total
  cash_spend      balance -= total, earnings = min(earnings, balance)
  purchase        balance -= cash_used, boots -= boots_used,
                  earnings = min(earnings, balance)
  checkpoint      no effect

EARNINGS POLICY (deposit-first):
  Deposits are capital the user put in and must never count as withdrawable
  earnings; gifts are earnings. A spend conceptually consumes deposit-origin
  funds first: it never raises earnings, only clamps them down so that
  earnings can never exceed balance.

REJECTIONS:
  A rejection means no partial effect. Insufficient balance, insufficient
  boots, and malformed shape each produce a typed error and the unchanged
  input state. Duplicate suppression is a separate concern handled by the
  boundary, not here.

SEE ALSO:
  - types.go: Transaction.Validate shape rules
  - verify.go: Replays this same table for auditing
*/
package ledger

// Apply computes the next wallet state for tx, or rejects it.
//
// On rejection the returned state is the input state, unchanged. Apply never
// records anything; persistence belongs to the caller's unit of work.
func Apply(state WalletState, tx Transaction) (WalletState, error) {
	if err := tx.Validate(); err != nil {
		return state, err
	}

	next := state
	switch tx.Type {
	case TxDepositCredit:
		next.Balance += tx.Total

	case TxGiftCredit:
		next.Balance += tx.Total
		next.EarningsBalance += tx.Total

	case TxCashSpend:
		if state.Balance < tx.Total {
			return state, &InsufficientBalanceError{
				AccountID: tx.AccountID,
				Available: state.Balance,
				Requested: tx.Total,
			}
		}
		next.Balance -= tx.Total
		next.EarningsBalance = min64(state.EarningsBalance, next.Balance)

	case TxPurchase:
		if state.Balance < tx.CashUsed {
			return state, &InsufficientBalanceError{
				AccountID: tx.AccountID,
				Available: state.Balance,
				Requested: tx.CashUsed,
			}
		}
		if state.BootsCount < tx.BootsUsed {
			return state, &InsufficientBootsError{
				AccountID: tx.AccountID,
				Available: state.BootsCount,
				Requested: tx.BootsUsed,
			}
		}
		next.Balance -= tx.CashUsed
		next.BootsCount -= tx.BootsUsed
		next.EarningsBalance = min64(state.EarningsBalance, next.Balance)

	case TxCheckpoint:
		// Informational only.
	}

	if err := next.CheckInvariants(); err != nil {
		// Unreachable when the input state was well-formed; kept as a guard
		// so a corrupted input state cannot silently propagate.
		return state, err
	}
	return next, nil
}

// Replay folds txs over start in order, skipping checkpoints, and returns the
// resulting state. Replay fails if any transaction would be rejected: a log
// that rejects during replay was corrupted or was written by something other
// than the engine.
func Replay(start WalletState, txs []Transaction) (WalletState, error) {
	state := start
	for _, tx := range txs {
		if tx.IsCheckpoint() {
			continue
		}
		next, err := Apply(state, tx)
		if err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
