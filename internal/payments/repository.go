package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores payment records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectPayment = `SELECT id, transaction_id, wallet_id, method_id, provider, provider_tx_id, status, amount, currency, promotion_code, approval_url, refund_id, created_at, updated_at FROM payments`

// Create inserts a payment record.
func (r *PostgresRepository) Create(ctx context.Context, p Payment) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	txID, err := uuid.Parse(p.TransactionID)
	if err != nil {
		return err
	}
	walletID, err := uuid.Parse(p.WalletID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO payments (id, transaction_id, wallet_id, method_id, provider, provider_tx_id, status, amount, currency, promotion_code, approval_url, refund_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, txID, walletID, nullable(p.MethodID), p.Provider, nullable(p.ProviderTxID), p.Status, p.Amount, p.Currency, nullable(p.PromotionCode), nullable(p.ApprovalURL), nullable(p.RefundID), p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return err
}

// Get fetches a payment by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Payment, error) {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return Payment{}, ErrPaymentNotFound
	}
	return scanPayment(r.db.QueryRow(ctx, selectPayment+` WHERE id = $1`, paymentID))
}

// GetByTransaction fetches the payment mirroring a ledger transaction.
func (r *PostgresRepository) GetByTransaction(ctx context.Context, txID string) (Payment, error) {
	id, err := uuid.Parse(txID)
	if err != nil {
		return Payment{}, ErrPaymentNotFound
	}
	return scanPayment(r.db.QueryRow(ctx, selectPayment+` WHERE transaction_id = $1`, id))
}

// GetByProviderTx fetches the payment holding the external provider's id.
func (r *PostgresRepository) GetByProviderTx(ctx context.Context, providerTxID string) (Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, selectPayment+` WHERE provider_tx_id = $1`, providerTxID))
}

// Update rewrites the mutable fields of a payment record.
func (r *PostgresRepository) Update(ctx context.Context, p Payment) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return ErrPaymentNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE payments SET status = $1, provider_tx_id = $2, refund_id = $3, updated_at = $4 WHERE id = $5`,
		p.Status, nullable(p.ProviderTxID), nullable(p.RefundID), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p            Payment
		id           uuid.UUID
		txID         uuid.UUID
		walletID     uuid.UUID
		methodID     *string
		providerTxID *string
		promoCode    *string
		approvalURL  *string
		refundID     *string
	)
	if err := row.Scan(&id, &txID, &walletID, &methodID, &p.Provider, &providerTxID, &p.Status, &p.Amount, &p.Currency, &promoCode, &approvalURL, &refundID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	p.ID = id.String()
	p.TransactionID = txID.String()
	p.WalletID = walletID.String()
	p.MethodID = deref(methodID)
	p.ProviderTxID = deref(providerTxID)
	p.PromotionCode = deref(promoCode)
	p.ApprovalURL = deref(approvalURL)
	p.RefundID = deref(refundID)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
