package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k3lvincodes/Q-app-sub000/api"
	"github.com/k3lvincodes/Q-app-sub000/ledger"
	"github.com/k3lvincodes/Q-app-sub000/ledger/store"
	"github.com/k3lvincodes/Q-app-sub000/wallet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := wallet.NewService(store.NewTxMemory(), nil)
	server := httptest.NewServer(api.NewRouter(api.NewHandler(svc, nil)))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createAccount(t *testing.T, server *httptest.Server, accountID string) {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/accounts", map[string]string{"account_id": accountID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func deposit(t *testing.T, server *httptest.Server, accountID string, total int64, key string) api.ApplyResponseDTO {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/accounts/"+accountID+"/transactions", map[string]any{
		"type":            "deposit_credit",
		"total":           total,
		"idempotency_key": key,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[api.ApplyResponseDTO](t, resp)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestCreateAccount(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/accounts", map[string]string{"account_id": "acct-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[api.WalletDTO](t, resp)
	assert.Equal(t, "acct-1", created.AccountID)
	assert.Zero(t, created.Balance)

	// Provisioning the same account again conflicts.
	again := postJSON(t, server.URL+"/api/accounts", map[string]string{"account_id": "acct-1"})
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

func TestCreateAccount_MissingID(t *testing.T) {
	server := newTestServer(t)
	resp := postJSON(t, server.URL+"/api/accounts", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWallet(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "acct-1")
	deposit(t, server, "acct-1", 1000, "dep-1")

	resp := getJSON(t, server.URL+"/api/accounts/acct-1/wallet")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[api.WalletDTO](t, resp)
	assert.Equal(t, int64(1000), got.Balance)
}

func TestGetWallet_UnknownAccount(t *testing.T) {
	server := newTestServer(t)
	resp := getJSON(t, server.URL+"/api/accounts/ghost/wallet")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSubmitTransaction_GiftCredit(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "acct-1")

	resp := postJSON(t, server.URL+"/api/accounts/acct-1/transactions", map[string]any{
		"type":            "gift_credit",
		"total":           500,
		"idempotency_key": "gift-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[api.ApplyResponseDTO](t, resp)
	assert.False(t, got.Duplicate)
	assert.Equal(t, int64(500), got.Wallet.Balance)
	assert.Equal(t, int64(500), got.Wallet.EarningsBalance)
	assert.NotEmpty(t, got.Transaction.ID)
}

func TestSubmitTransaction_PurchaseSplit(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "acct-1")
	deposit(t, server, "acct-1", 300, "dep-1")

	// No boots available: the boots portion must reject the whole purchase.
	resp := postJSON(t, server.URL+"/api/accounts/acct-1/transactions", map[string]any{
		"type":            "purchase",
		"total":           400,
		"cash_used":       200,
		"boots_used":      200,
		"idempotency_key": "p-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	got := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "insufficient_boots", got.Error)
}

func TestSubmitTransaction_InsufficientBalance(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "acct-1")
	deposit(t, server, "acct-1", 100, "dep-1")

	resp := postJSON(t, server.URL+"/api/accounts/acct-1/transactions", map[string]any{
		"type":            "cash_spend",
		"total":           500,
		"idempotency_key": "spend-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	got := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "insufficient_balance", got.Error)

	// The wallet is untouched.
	after := decode[api.WalletDTO](t, getJSON(t, server.URL+"/api/accounts/acct-1/wallet"))
	assert.Equal(t, int64(100), after.Balance)
}

func TestSubmitTransaction_FractionalAmountRejected(t *testing.T) {
	// Amounts are integers; a fractional value is a format error, not a
	// rounding opportunity.
	server := newTestServer(t)
	createAccount(t, server, "acct-1")

	resp := postJSON(t, server.URL+"/api/accounts/acct-1/transactions", map[string]any{
		"type":            "deposit_credit",
		"total":           10.5,
		"idempotency_key": "dep-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTransaction_MalformedSplit(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "acct-1")

	resp := postJSON(t, server.URL+"/api/accounts/acct-1/transactions", map[string]any{
		"type":            "purchase",
		"total":           400,
		"cash_used":       100,
		"boots_used":      100,
		"idempotency_key": "p-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTransaction_MissingIdempotencyKey(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "acct-1")

	resp := postJSON(t, server.URL+"/api/accounts/acct-1/transactions", map[string]any{
		"type":  "deposit_credit",
		"total": 100,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTransaction_DuplicateReturnsOriginal(t *testing.T) {
	// GIVEN: A deposit applied under a key
	// WHEN: The same key is submitted again
	// THEN: 200 with duplicate=true and no second application

	server := newTestServer(t)
	createAccount(t, server, "acct-1")

	first := deposit(t, server, "acct-1", 1000, "dep-1")
	assert.False(t, first.Duplicate)

	second := deposit(t, server, "acct-1", 1000, "dep-1")
	assert.True(t, second.Duplicate)
	assert.Equal(t, int64(1000), second.Wallet.Balance)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
}

func TestListTransactions(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "acct-1")
	for i := 0; i < 3; i++ {
		deposit(t, server, "acct-1", 100, fmt.Sprintf("dep-%d", i))
	}

	resp := getJSON(t, server.URL+"/api/accounts/acct-1/transactions")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	txs := decode[[]api.TransactionDTO](t, resp)
	require.Len(t, txs, 3)
	assert.Less(t, txs[0].Seq, txs[1].Seq, "history is in replay order")
}

// =============================================================================
// CHECKPOINT / VERIFY
// =============================================================================

func TestCheckpointAndVerify(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "acct-1")
	deposit(t, server, "acct-1", 1000, "dep-1")

	resp := postJSON(t, server.URL+"/api/accounts/acct-1/checkpoint", map[string]string{
		"idempotency_key": "cp-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cp := decode[api.ApplyResponseDTO](t, resp)
	assert.Equal(t, string(ledger.TxCheckpoint), cp.Transaction.Type)
	assert.Equal(t, int64(1000), cp.Wallet.Balance, "checkpoint must not move state")

	deposit(t, server, "acct-1", 500, "dep-2")

	verifyResp := getJSON(t, server.URL+"/api/accounts/acct-1/verify")
	require.Equal(t, http.StatusOK, verifyResp.StatusCode)

	res := decode[api.VerifyResultDTO](t, verifyResp)
	assert.True(t, res.Match)
	assert.Equal(t, cp.Transaction.Seq, res.CheckpointSeq)
	assert.Equal(t, 1, res.ReplayedCount)
	assert.Equal(t, int64(1500), res.Live.Balance)
}

func TestVerify_UnknownAccount(t *testing.T) {
	server := newTestServer(t)
	resp := getJSON(t, server.URL+"/api/accounts/ghost/verify")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// OBSERVABILITY
// =============================================================================

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	resp := getJSON(t, server.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)
	resp := getJSON(t, server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
