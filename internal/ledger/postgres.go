package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists ledger entries in PostgreSQL. Balance reads and
// writes happen under a row lock on the balances table so concurrent
// mutations on one wallet serialize instead of losing updates.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger implementation.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Register guarantees a balance row exists for the provided wallet.
func (s *PostgresStore) Register(ctx context.Context, walletID string) error {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO balances (wallet_id, balance) VALUES ($1, 0)
        ON CONFLICT (wallet_id) DO NOTHING`, id)
	return err
}

// Balance returns the stored balance for the wallet.
func (s *PostgresStore) Balance(ctx context.Context, walletID string) (int64, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := s.db.QueryRow(ctx, `SELECT balance FROM balances WHERE wallet_id = $1`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Apply records a completed transaction and updates the balance atomically.
// A zero delta is accepted so fully discounted purchases still leave an
// auditable entry.
func (s *PostgresStore) Apply(ctx context.Context, in Input) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	walletID, balance, err := lockBalance(ctx, tx, in.WalletID)
	if err != nil {
		return Transaction{}, err
	}

	if prior, found, err := findByKey(ctx, tx, walletID, in.IdempotencyKey); err != nil {
		return Transaction{}, err
	} else if found {
		return prior, ErrDuplicateTransaction
	}

	if in.Amount < 0 && balance+in.Amount < 0 {
		return Transaction{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	rec := Transaction{
		ID:             uuid.NewString(),
		WalletID:       in.WalletID,
		Amount:         in.Amount,
		Kind:           in.Kind,
		Status:         StatusCompleted,
		IdempotencyKey: in.IdempotencyKey,
		Description:    in.Description,
		CreatedAt:      now,
		SettledAt:      now,
	}
	if err := insertTransaction(ctx, tx, rec); err != nil {
		return Transaction{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE balances SET balance = balance + $1 WHERE wallet_id = $2`, in.Amount, walletID); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

// Begin records a pending transaction. The idempotency key is reserved now so
// a retried request returns the original pending entry instead of opening a
// second settlement with the provider.
func (s *PostgresStore) Begin(ctx context.Context, in Input) (Transaction, error) {
	if in.Amount == 0 {
		return Transaction{}, fmt.Errorf("amount must be non-zero")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	walletID, _, err := lockBalance(ctx, tx, in.WalletID)
	if err != nil {
		return Transaction{}, err
	}

	if prior, found, err := findByKey(ctx, tx, walletID, in.IdempotencyKey); err != nil {
		return Transaction{}, err
	} else if found {
		return prior, ErrDuplicateTransaction
	}

	rec := Transaction{
		ID:             uuid.NewString(),
		WalletID:       in.WalletID,
		Amount:         in.Amount,
		Kind:           in.Kind,
		Status:         StatusPending,
		IdempotencyKey: in.IdempotencyKey,
		Description:    in.Description,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      in.ExpiresAt,
	}
	if err := insertTransaction(ctx, tx, rec); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

// Complete settles a pending transaction and applies its delta.
func (s *PostgresStore) Complete(ctx context.Context, txID string) (Transaction, error) {
	return s.settle(ctx, txID, StatusCompleted)
}

// Fail settles a pending transaction unsuccessfully; the balance is untouched.
func (s *PostgresStore) Fail(ctx context.Context, txID string) (Transaction, error) {
	return s.settle(ctx, txID, StatusFailed)
}

func (s *PostgresStore) settle(ctx context.Context, txID, target string) (Transaction, error) {
	id, err := uuid.Parse(txID)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := scanTransaction(tx.QueryRow(ctx, selectTransaction+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	if rec.Status != StatusPending {
		return rec, ErrTransactionFinal
	}

	now := time.Now().UTC()
	if target == StatusCompleted {
		walletID, balance, err := lockBalance(ctx, tx, rec.WalletID)
		if err != nil {
			return Transaction{}, err
		}
		if rec.Amount < 0 && balance+rec.Amount < 0 {
			return Transaction{}, ErrInsufficientFunds
		}
		if _, err := tx.Exec(ctx, `UPDATE balances SET balance = balance + $1 WHERE wallet_id = $2`, rec.Amount, walletID); err != nil {
			return Transaction{}, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE transactions SET status = $1, settled_at = $2 WHERE id = $3`, target, now, id); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	rec.Status = target
	rec.SettledAt = now
	return rec, nil
}

// Get fetches a transaction by id.
func (s *PostgresStore) Get(ctx context.Context, txID string) (Transaction, error) {
	id, err := uuid.Parse(txID)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	rec, err := scanTransaction(s.db.QueryRow(ctx, selectTransaction+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return rec, err
}

// FindByKey fetches the transaction holding the wallet's idempotency key.
func (s *PostgresStore) FindByKey(ctx context.Context, walletID, key string) (Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	rec, err := scanTransaction(s.db.QueryRow(ctx, selectTransaction+` WHERE wallet_id = $1 AND idempotency_key = $2`, id, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return rec, err
}

// ListByWallet returns the wallet's transactions, newest first.
func (s *PostgresStore) ListByWallet(ctx context.Context, walletID string) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, selectTransaction+` WHERE wallet_id = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectTransaction = `SELECT id, wallet_id, amount, kind, status, idempotency_key, description, created_at, settled_at, expires_at FROM transactions`

func lockBalance(ctx context.Context, tx pgx.Tx, walletID string) (uuid.UUID, int64, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return uuid.Nil, 0, ErrWalletNotFound
	}
	var balance int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM balances WHERE wallet_id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, 0, ErrWalletNotFound
		}
		return uuid.Nil, 0, err
	}
	return id, balance, nil
}

func findByKey(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, key string) (Transaction, bool, error) {
	rec, err := scanTransaction(tx.QueryRow(ctx, selectTransaction+` WHERE wallet_id = $1 AND idempotency_key = $2`, walletID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return rec, true, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		rec       Transaction
		id        uuid.UUID
		walletID  uuid.UUID
		settledAt *time.Time
		expiresAt *time.Time
	)
	if err := row.Scan(&id, &walletID, &rec.Amount, &rec.Kind, &rec.Status, &rec.IdempotencyKey, &rec.Description, &rec.CreatedAt, &settledAt, &expiresAt); err != nil {
		return Transaction{}, err
	}
	rec.ID = id.String()
	rec.WalletID = walletID.String()
	rec.CreatedAt = rec.CreatedAt.UTC()
	if settledAt != nil {
		rec.SettledAt = settledAt.UTC()
	}
	if expiresAt != nil {
		rec.ExpiresAt = expiresAt.UTC()
	}
	return rec, nil
}
