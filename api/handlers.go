/*
handlers.go - HTTP handlers for the wallet ledger engine

PURPOSE:
  Exposes the wallet service over REST. Handles HTTP request/response and
  JSON serialization, and delegates everything else to the wallet package.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                          Provision a wallet
    GET    /api/accounts/{id}/wallet              Read wallet state
    GET    /api/accounts/{id}/transactions        Transaction history
    POST   /api/accounts/{id}/transactions        Submit a transaction
    POST   /api/accounts/{id}/checkpoint          Snapshot state into the log
    GET    /api/accounts/{id}/verify              Replay audit

ERROR HANDLING:
  Errors are returned as JSON with the outcome class in the status code:
  - 400: Malformed transaction, fractional amount, bad JSON
  - 404: Unknown account
  - 409: Insufficient funds/boots, account already exists
  - 500: Storage failures, consistency violations

  Duplicates are NOT errors: a replayed idempotency key returns 200 with
  "duplicate": true and the state of the original application.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/k3lvincodes/Q-app-sub000/ledger"
	"github.com/k3lvincodes/Q-app-sub000/wallet"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *wallet.Service
	Log     *logrus.Logger
}

func NewHandler(service *wallet.Service, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{Service: service, Log: log}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount provisions a zero wallet.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.AccountID == "" {
		writeBadRequest(w, "account_id is required")
		return
	}

	if err := h.Service.Provision(r.Context(), ledger.AccountID(req.AccountID)); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, walletDTO(ledger.AccountID(req.AccountID), ledger.ZeroState()))
}

// GetWallet returns live wallet state. Read-only.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	state, err := h.Service.GetState(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletDTO(accountID, state))
}

// GetTransactions returns the account's log in replay order.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	txs, err := h.Service.Transactions(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, transactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// SubmitTransaction is the single mutation endpoint: deposits, gifts,
// spends, purchases all land here.
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	var req SubmitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.IdempotencyKey == "" {
		writeBadRequest(w, "idempotency_key is required")
		return
	}

	tx, err := req.ToTransaction(accountID)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := h.Service.Apply(r.Context(), tx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ApplyResponseDTO{
		Wallet:      walletDTO(accountID, result.State),
		Duplicate:   result.Duplicate,
		Transaction: transactionDTO(result.Transaction),
	})
}

// =============================================================================
// CHECKPOINT / VERIFY
// =============================================================================

// Checkpoint snapshots the wallet into the log.
func (h *Handler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	var req CheckpointRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	result, err := h.Service.Checkpoint(r.Context(), accountID, req.IdempotencyKey, req.Actor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ApplyResponseDTO{
		Wallet:      walletDTO(accountID, result.State),
		Duplicate:   result.Duplicate,
		Transaction: transactionDTO(result.Transaction),
	})
}

// Verify runs the replay audit for an account. Never called by production
// request paths; this is for test/audit tooling.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	res, err := h.Service.Verify(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResultDTO(res))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Reason: reason})
}

// writeError maps service errors onto the HTTP contract.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "account_not_found", Reason: err.Error()})
	case errors.Is(err, ledger.ErrAccountExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "account_exists", Reason: err.Error()})
	case errors.Is(err, ledger.ErrMalformedTransaction):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed_transaction", Reason: err.Error()})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "insufficient_balance", Reason: err.Error()})
	case errors.Is(err, ledger.ErrInsufficientBoots):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "insufficient_boots", Reason: err.Error()})
	default:
		h.Log.WithError(err).Error("internal error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
}
