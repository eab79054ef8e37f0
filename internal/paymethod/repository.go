package paymethod

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores payment methods in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectMethod = `SELECT id, user_id, type, label, token, last4, is_default, created_at, updated_at FROM payment_methods`

func (r *PostgresRepository) Create(ctx context.Context, m Method) error {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO payment_methods (id, user_id, type, label, token, last4, is_default, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, userID, m.Type, m.Label, m.Token, m.Last4, m.IsDefault, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Method, error) {
	methodID, err := uuid.Parse(id)
	if err != nil {
		return Method{}, ErrNotFound
	}
	return scanMethod(r.db.QueryRow(ctx, selectMethod+` WHERE id = $1`, methodID))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Method, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx, selectMethod+` WHERE user_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Method
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, m Method) error {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE payment_methods SET label = $1, is_default = $2, updated_at = $3 WHERE id = $4`,
		m.Label, m.IsDefault, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	methodID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM payment_methods WHERE id = $1`, methodID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ClearDefault(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE payment_methods SET is_default = FALSE, updated_at = $1 WHERE user_id = $2 AND is_default`,
		time.Now().UTC(), id)
	return err
}

func scanMethod(row pgx.Row) (Method, error) {
	var (
		m      Method
		id     uuid.UUID
		userID uuid.UUID
	)
	if err := row.Scan(&id, &userID, &m.Type, &m.Label, &m.Token, &m.Last4, &m.IsDefault, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Method{}, ErrNotFound
		}
		return Method{}, err
	}
	m.ID = id.String()
	m.UserID = userID.String()
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}
