/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal ledger model from the external contract.

AMOUNT VALIDATION:
  Monetary fields are decoded as decimals and rejected when fractional.
  The wallet engine works purely in integer units; a non-integer amount
  is a format error at this boundary, never a wallet rejection.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types returned to clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/k3lvincodes/Q-app-sub000/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateAccountRequest provisions a wallet for an account.
type CreateAccountRequest struct {
	AccountID string `json:"account_id"`
}

// SubmitTransactionRequest is the body of a transaction submission.
type SubmitTransactionRequest struct {
	Type           string          `json:"type"`
	Total          decimal.Decimal `json:"total"`
	CashUsed       decimal.Decimal `json:"cash_used"`
	BootsUsed      decimal.Decimal `json:"boots_used"`
	IdempotencyKey string          `json:"idempotency_key"`
	Description    string          `json:"description,omitempty"`
	Actor          string          `json:"actor,omitempty"`
}

// ToTransaction converts the request into a ledger transaction, enforcing
// integral amounts. For non-purchase monetary types cash_used may be left
// zero; it defaults to total per the split rule.
func (r SubmitTransactionRequest) ToTransaction(accountID ledger.AccountID) (ledger.Transaction, error) {
	total, err := intAmount(r.Total, "total")
	if err != nil {
		return ledger.Transaction{}, err
	}
	cashUsed, err := intAmount(r.CashUsed, "cash_used")
	if err != nil {
		return ledger.Transaction{}, err
	}
	bootsUsed, err := intAmount(r.BootsUsed, "boots_used")
	if err != nil {
		return ledger.Transaction{}, err
	}

	txType := ledger.TransactionType(r.Type)
	if cashUsed == 0 && bootsUsed == 0 && txType != ledger.TxPurchase && txType != ledger.TxCheckpoint {
		cashUsed = total
	}

	return ledger.Transaction{
		AccountID:      accountID,
		Type:           txType,
		Total:          total,
		CashUsed:       cashUsed,
		BootsUsed:      bootsUsed,
		IdempotencyKey: r.IdempotencyKey,
		Description:    r.Description,
		Actor:          r.Actor,
	}, nil
}

// intAmount rejects fractional and out-of-range values.
func intAmount(d decimal.Decimal, field string) (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s must be an integer amount, got %s", field, d)
	}
	i := d.IntPart()
	if !decimal.NewFromInt(i).Equal(d) {
		return 0, fmt.Errorf("%s out of range: %s", field, d)
	}
	return i, nil
}

// CheckpointRequest triggers an operator checkpoint.
type CheckpointRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Actor          string `json:"actor,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// WalletDTO is the wallet state in API responses.
type WalletDTO struct {
	AccountID       string `json:"account_id"`
	Balance         int64  `json:"balance"`
	EarningsBalance int64  `json:"earnings_balance"`
	BootsCount      int64  `json:"boots_count"`
}

func walletDTO(accountID ledger.AccountID, state ledger.WalletState) WalletDTO {
	return WalletDTO{
		AccountID:       string(accountID),
		Balance:         state.Balance,
		EarningsBalance: state.EarningsBalance,
		BootsCount:      state.BootsCount,
	}
}

// TransactionDTO is one log entry in API responses.
type TransactionDTO struct {
	Seq            int64  `json:"seq,omitempty"`
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	Type           string `json:"type"`
	Total          int64  `json:"total"`
	CashUsed       int64  `json:"cash_used"`
	BootsUsed      int64  `json:"boots_used"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Description    string `json:"description,omitempty"`
	Actor          string `json:"actor,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func transactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		Seq:            tx.Seq,
		ID:             string(tx.ID),
		AccountID:      string(tx.AccountID),
		Type:           string(tx.Type),
		Total:          tx.Total,
		CashUsed:       tx.CashUsed,
		BootsUsed:      tx.BootsUsed,
		IdempotencyKey: tx.IdempotencyKey,
		Description:    tx.Description,
		Actor:          tx.Actor,
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00")
	}
	return dto
}

// ApplyResponseDTO wraps the outcome of a submission.
type ApplyResponseDTO struct {
	Wallet      WalletDTO      `json:"wallet"`
	Duplicate   bool           `json:"duplicate"`
	Transaction TransactionDTO `json:"transaction"`
}

// VerifyResultDTO reports a replay verification.
type VerifyResultDTO struct {
	AccountID     string    `json:"account_id"`
	Match         bool      `json:"match"`
	Live          WalletDTO `json:"live"`
	Replayed      WalletDTO `json:"replayed"`
	CheckpointSeq int64     `json:"checkpoint_seq"`
	ReplayedCount int       `json:"replayed_count"`
}

func verifyResultDTO(res *ledger.VerifyResult) VerifyResultDTO {
	return VerifyResultDTO{
		AccountID:     string(res.AccountID),
		Match:         res.Match,
		Live:          walletDTO(res.AccountID, res.Live),
		Replayed:      walletDTO(res.AccountID, res.Replayed),
		CheckpointSeq: res.CheckpointSeq,
		ReplayedCount: res.ReplayedCount,
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
