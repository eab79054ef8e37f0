package promotion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no promotion matches the lookup.
var ErrNotFound = errors.New("promotion not found")

// Repository persists promotions.
type Repository interface {
	Create(ctx context.Context, p Promotion) error
	Get(ctx context.Context, id string) (Promotion, error)
	GetByCode(ctx context.Context, code string) (Promotion, error)
	ListActive(ctx context.Context, now time.Time) ([]Promotion, error)

	// IncrementUsage bumps usage_count by one iff the limit allows it. The
	// check and the increment are a single atomic statement so concurrent
	// redemptions can never exceed the cap.
	IncrementUsage(ctx context.Context, code string) error
}

// PostgresRepository stores promotions in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectPromotion = `SELECT id, business_id, code, name, type, value, min_purchase, max_discount, usage_limit, usage_count, start_date, end_date, status, created_at FROM promotions`

// Create inserts a promotion record.
func (r *PostgresRepository) Create(ctx context.Context, p Promotion) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	businessID, err := uuid.Parse(p.BusinessID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO promotions (id, business_id, code, name, type, value, min_purchase, max_discount, usage_limit, usage_count, start_date, end_date, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, businessID, p.Code, p.Name, p.Type, p.Value, p.MinPurchase, p.MaxDiscount, p.UsageLimit, p.UsageCount, p.StartDate.UTC(), p.EndDate.UTC(), p.Status, p.CreatedAt.UTC())
	return err
}

// Get fetches a promotion by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Promotion, error) {
	promoID, err := uuid.Parse(id)
	if err != nil {
		return Promotion{}, ErrNotFound
	}
	return scanPromotion(r.db.QueryRow(ctx, selectPromotion+` WHERE id = $1`, promoID))
}

// GetByCode fetches a promotion by its unique code.
func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (Promotion, error) {
	return scanPromotion(r.db.QueryRow(ctx, selectPromotion+` WHERE code = $1`, code))
}

// ListActive returns promotions currently inside their active window.
func (r *PostgresRepository) ListActive(ctx context.Context, now time.Time) ([]Promotion, error) {
	rows, err := r.db.Query(ctx, selectPromotion+` WHERE status = $1 AND start_date <= $2 AND end_date >= $2 ORDER BY created_at DESC`, StatusActive, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// IncrementUsage atomically bumps usage_count, honoring the limit.
func (r *PostgresRepository) IncrementUsage(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `UPDATE promotions SET usage_count = usage_count + 1
        WHERE code = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the code does not exist or the cap was reached.
		if _, err := r.GetByCode(ctx, code); err != nil {
			return err
		}
		return ErrUsageLimitExceeded
	}
	return nil
}

func scanPromotion(row pgx.Row) (Promotion, error) {
	var (
		p          Promotion
		id         uuid.UUID
		businessID uuid.UUID
	)
	if err := row.Scan(&id, &businessID, &p.Code, &p.Name, &p.Type, &p.Value, &p.MinPurchase, &p.MaxDiscount, &p.UsageLimit, &p.UsageCount, &p.StartDate, &p.EndDate, &p.Status, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Promotion{}, ErrNotFound
		}
		return Promotion{}, err
	}
	p.ID = id.String()
	p.BusinessID = businessID.String()
	p.StartDate = p.StartDate.UTC()
	p.EndDate = p.EndDate.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
