package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("customer not found")

type Repository interface {
	Get(ctx context.Context, id int64) (*Customer, error)
	Create(ctx context.Context, c Customer) (int64, error)
	SetOpeningBalance(ctx context.Context, id int64, value float64) error
	List(ctx context.Context, limit, offset int) ([]Customer, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, name, currency, opening_balance, created_at, updated_at FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Currency, &c.OpeningBalance, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) Create(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (name, currency, opening_balance, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id`, c.Name, c.Currency, c.OpeningBalance).Scan(&id)
	return id, err
}

func (r *repository) SetOpeningBalance(ctx context.Context, id int64, value float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customers SET opening_balance=$2, updated_at=NOW() WHERE id=$1`, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, currency, opening_balance, created_at, updated_at FROM customers ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Currency, &c.OpeningBalance, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
