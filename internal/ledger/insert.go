package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func insertTransaction(ctx context.Context, tx pgx.Tx, rec Transaction) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return err
	}
	walletID, err := uuid.Parse(rec.WalletID)
	if err != nil {
		return err
	}
	var settledAt, expiresAt *time.Time
	if !rec.SettledAt.IsZero() {
		t := rec.SettledAt
		settledAt = &t
	}
	if !rec.ExpiresAt.IsZero() {
		t := rec.ExpiresAt
		expiresAt = &t
	}
	_, err = tx.Exec(ctx, `INSERT INTO transactions (id, wallet_id, amount, kind, status, idempotency_key, description, created_at, settled_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, walletID, rec.Amount, rec.Kind, rec.Status, rec.IdempotencyKey, rec.Description, rec.CreatedAt, settledAt, expiresAt)
	return err
}
