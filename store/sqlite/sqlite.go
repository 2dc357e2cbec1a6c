/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  wallets:      Live per-account state (balance, earnings_balance, boots_count)
  transactions: Immutable append-only log of every financial event

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch the transactions table. The only
  mutable rows are wallets, written exclusively with engine output inside
  the same database transaction that appends to the log.

IDEMPOTENCY:
  idempotency_key carries a UNIQUE index. The wallet service pre-checks
  explicitly, but the index is the backstop that makes a racing duplicate
  lose at commit time rather than double-apply.

SEQUENCING:
  transactions.seq is INTEGER PRIMARY KEY (rowid), so appends get a
  strictly increasing sequence. Per-account replay order is seq order.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging): readers don't
  block, a single writer at a time, better crash recovery.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/k3lvincodes/Q-app-sub000/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Live wallet state, one row per account. Written only by the engine.
	CREATE TABLE IF NOT EXISTS wallets (
		account_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		earnings_balance INTEGER NOT NULL DEFAULT 0
			CHECK (earnings_balance >= 0 AND earnings_balance <= balance),
		boots_count INTEGER NOT NULL DEFAULT 0 CHECK (boots_count >= 0),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Transactions (append-only ledger). seq is the rowid: strictly
	-- increasing, which fixes replay order.
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		total INTEGER NOT NULL,
		cash_used INTEGER NOT NULL,
		boots_used INTEGER NOT NULL,
		idempotency_key TEXT,
		description TEXT,
		actor TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idempotency
		ON transactions(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Hot path: per-account log reads in seq order.
	CREATE INDEX IF NOT EXISTS idx_transactions_account_seq
		ON transactions(account_id, seq);

	-- Checkpoint lookup.
	CREATE INDEX IF NOT EXISTS idx_transactions_account_type
		ON transactions(account_id, tx_type, seq DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer covers *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// WALLET STATE (ledger.Store interface)
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, accountID ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAccount(ctx, s.db, accountID)
}

func createAccount(ctx context.Context, db queryer, accountID ledger.AccountID) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.ExecContext(ctx,
		`INSERT INTO wallets (account_id, balance, earnings_balance, boots_count, created_at, updated_at)
		 VALUES (?, 0, 0, 0, ?, ?)`,
		accountID, now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) GetState(ctx context.Context, accountID ledger.AccountID) (ledger.WalletState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getState(ctx, s.db, accountID)
}

func getState(ctx context.Context, db queryer, accountID ledger.AccountID) (ledger.WalletState, error) {
	var state ledger.WalletState
	err := db.QueryRowContext(ctx,
		"SELECT balance, earnings_balance, boots_count FROM wallets WHERE account_id = ?",
		accountID,
	).Scan(&state.Balance, &state.EarningsBalance, &state.BootsCount)

	if err == sql.ErrNoRows {
		return ledger.WalletState{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.WalletState{}, fmt.Errorf("failed to read wallet: %w", err)
	}
	return state, nil
}

func (s *Store) PutState(ctx context.Context, accountID ledger.AccountID, state ledger.WalletState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putState(ctx, s.db, accountID, state)
}

func putState(ctx context.Context, db queryer, accountID ledger.AccountID, state ledger.WalletState) error {
	res, err := db.ExecContext(ctx,
		`UPDATE wallets
		 SET balance = ?, earnings_balance = ?, boots_count = ?, updated_at = ?
		 WHERE account_id = ?`,
		state.Balance, state.EarningsBalance, state.BootsCount,
		time.Now().UTC().Format(time.RFC3339Nano), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) Accounts(ctx context.Context) ([]ledger.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return accounts(ctx, s.db)
}

func accounts(ctx context.Context, db queryer) ([]ledger.AccountID, error) {
	rows, err := db.QueryContext(ctx, "SELECT account_id FROM wallets ORDER BY account_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []ledger.AccountID
	for rows.Next() {
		var id ledger.AccountID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// TRANSACTION LOG (ledger.Store interface)
// =============================================================================

const txColumns = "seq, id, account_id, tx_type, total, cash_used, boots_used, idempotency_key, description, actor, created_at"

func (s *Store) Append(ctx context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, db queryer, tx *ledger.Transaction) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, account_id, tx_type, total, cash_used, boots_used, idempotency_key, description, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.AccountID,
		tx.Type,
		tx.Total,
		tx.CashUsed,
		tx.BootsUsed,
		nullString(tx.IdempotencyKey),
		tx.Description,
		tx.Actor,
		tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	// seq is the rowid; surface it so callers see the log position.
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read assigned seq: %w", err)
	}
	tx.Seq = seq
	return nil
}

func (s *Store) Transactions(ctx context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + txColumns + " FROM transactions WHERE account_id = ? ORDER BY seq ASC"
	return queryTransactions(ctx, s.db, query, accountID)
}

func (s *Store) TransactionsAfter(ctx context.Context, accountID ledger.AccountID, after int64) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsAfter(ctx, s.db, accountID, after)
}

func transactionsAfter(ctx context.Context, db queryer, accountID ledger.AccountID, after int64) ([]ledger.Transaction, error) {
	query := "SELECT " + txColumns + " FROM transactions WHERE account_id = ? AND seq > ? ORDER BY seq ASC"
	return queryTransactions(ctx, db, query, accountID, after)
}

func (s *Store) LatestCheckpoint(ctx context.Context, accountID ledger.AccountID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestCheckpoint(ctx, s.db, accountID)
}

func latestCheckpoint(ctx context.Context, db queryer, accountID ledger.AccountID) (*ledger.Transaction, error) {
	query := "SELECT " + txColumns + ` FROM transactions
		WHERE account_id = ? AND tx_type = ? ORDER BY seq DESC LIMIT 1`

	txs, err := queryTransactions(ctx, db, query, accountID, ledger.TxCheckpoint)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByKey(ctx, s.db, key)
}

func findByKey(ctx context.Context, db queryer, key string) (*ledger.Transaction, error) {
	query := "SELECT " + txColumns + " FROM transactions WHERE idempotency_key = ?"
	txs, err := queryTransactions(ctx, db, query, key)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func queryTransactions(ctx context.Context, db queryer, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx             ledger.Transaction
		idempotencyKey sql.NullString
		description    sql.NullString
		actor          sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.Seq, &tx.ID, &tx.AccountID, &tx.Type,
		&tx.Total, &tx.CashUsed, &tx.BootsUsed,
		&idempotencyKey, &description, &actor, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.IdempotencyKey = idempotencyKey.String
	tx.Description = description.String
	tx.Actor = actor.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
//
// The store-global mutex serializes units of work across accounts at this
// layer. SQLite permits a single writer at a time regardless, so the
// per-account locks in the wallet package buy parallelism for everything up
// to the commit, and taking s.mu here trades that last bit of write
// concurrency for never seeing SQLITE_BUSY.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	return nil
}

// txStore is the transactional view handed to WithTx closures.
type txStore struct {
	tx *sql.Tx
}

var _ ledger.Store = (*txStore)(nil)

func (ts *txStore) CreateAccount(ctx context.Context, accountID ledger.AccountID) error {
	return createAccount(ctx, ts.tx, accountID)
}

func (ts *txStore) GetState(ctx context.Context, accountID ledger.AccountID) (ledger.WalletState, error) {
	return getState(ctx, ts.tx, accountID)
}

func (ts *txStore) PutState(ctx context.Context, accountID ledger.AccountID, state ledger.WalletState) error {
	return putState(ctx, ts.tx, accountID, state)
}

func (ts *txStore) Accounts(ctx context.Context) ([]ledger.AccountID, error) {
	return accounts(ctx, ts.tx)
}

func (ts *txStore) Append(ctx context.Context, tx *ledger.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) Transactions(ctx context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	query := "SELECT " + txColumns + " FROM transactions WHERE account_id = ? ORDER BY seq ASC"
	return queryTransactions(ctx, ts.tx, query, accountID)
}

func (ts *txStore) TransactionsAfter(ctx context.Context, accountID ledger.AccountID, after int64) ([]ledger.Transaction, error) {
	return transactionsAfter(ctx, ts.tx, accountID, after)
}

func (ts *txStore) LatestCheckpoint(ctx context.Context, accountID ledger.AccountID) (*ledger.Transaction, error) {
	return latestCheckpoint(ctx, ts.tx, accountID)
}

func (ts *txStore) FindByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	return findByKey(ctx, ts.tx, key)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
