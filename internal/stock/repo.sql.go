package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-retail/internal/platform/db"
	"github.com/meridian-retail/meridian-retail/internal/shared"
)

// Repository persists stock entries and the movement ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction with the stock mutation surface. Other
// modules use this to move stock inside their own unit of work.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
// Serialization failures surface as shared.ErrConflict so callers can retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
	if err != nil && db.IsSerializationFailure(err) {
		return shared.ErrConflict
	}
	return err
}

func (r *Repository) Get(ctx context.Context, productID, locationID int64) (int, error) {
	var qty int
	err := r.pool.QueryRow(ctx, `SELECT qty FROM stock_entries WHERE product_id=$1 AND location_id=$2`, productID, locationID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func (r *Repository) StockMap(ctx context.Context, locationID int64, productIDs []int64) (map[int64]int, error) {
	result := make(map[int64]int, len(productIDs))
	for _, id := range productIDs {
		result[id] = 0
	}
	rows, err := r.pool.Query(ctx, `SELECT product_id, qty FROM stock_entries WHERE location_id=$1 AND product_id = ANY($2)`, locationID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		result[id] = qty
	}
	return result, rows.Err()
}

func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, location_id, qty_change, kind, ref_module, ref_id, note, posted_at
FROM stock_movements
WHERE product_id=$1 AND location_id=$2
ORDER BY posted_at ASC, id ASC
LIMIT $3`, filter.ProductID, filter.LocationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.LocationID, &m.QtyChange, &m.Kind, &m.RefModule, &m.RefID, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *txStore) Get(ctx context.Context, productID, locationID int64) (int, error) {
	var qty int
	err := s.tx.QueryRow(ctx, `SELECT qty FROM stock_entries WHERE product_id=$1 AND location_id=$2`, productID, locationID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

// lock reads the entry under FOR UPDATE, creating it lazily at zero.
func (s *txStore) lock(ctx context.Context, productID, locationID int64) (int, error) {
	var qty int
	err := s.tx.QueryRow(ctx, `SELECT qty FROM stock_entries WHERE product_id=$1 AND location_id=$2 FOR UPDATE`, productID, locationID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.tx.Exec(ctx, `INSERT INTO stock_entries (product_id, location_id, qty, updated_at) VALUES ($1,$2,0,NOW()) ON CONFLICT (product_id, location_id) DO NOTHING`, productID, locationID); err != nil {
			return 0, err
		}
		err = s.tx.QueryRow(ctx, `SELECT qty FROM stock_entries WHERE product_id=$1 AND location_id=$2 FOR UPDATE`, productID, locationID).Scan(&qty)
	}
	return qty, err
}

func (s *txStore) apply(ctx context.Context, productID, locationID int64, newQty, change int, kind MovementKind, ref Ref) error {
	if _, err := s.tx.Exec(ctx, `UPDATE stock_entries SET qty=$3, updated_at=NOW() WHERE product_id=$1 AND location_id=$2`, productID, locationID, newQty); err != nil {
		return err
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_movements (product_id, location_id, qty_change, kind, ref_module, ref_id, note, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, productID, locationID, change, string(kind), ref.Module, ref.ID, ref.Note, time.Now().UTC())
	return err
}

func (s *txStore) Debit(ctx context.Context, productID, locationID int64, qty int, ref Ref) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	current, err := s.lock(ctx, productID, locationID)
	if err != nil {
		return err
	}
	if current-qty < 0 {
		return ErrInsufficientStock
	}
	return s.apply(ctx, productID, locationID, current-qty, -qty, MovementOut, ref)
}

func (s *txStore) Credit(ctx context.Context, productID, locationID int64, qty int, ref Ref) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	current, err := s.lock(ctx, productID, locationID)
	if err != nil {
		return err
	}
	return s.apply(ctx, productID, locationID, current+qty, qty, MovementIn, ref)
}

func (s *txStore) SetAbsolute(ctx context.Context, productID, locationID int64, qty int, ref Ref) error {
	if qty < 0 {
		qty = 0
	}
	current, err := s.lock(ctx, productID, locationID)
	if err != nil {
		return err
	}
	return s.apply(ctx, productID, locationID, qty, qty-current, MovementSet, ref)
}

func (s *txStore) KnownProductIDs(ctx context.Context, locationID int64) ([]int64, error) {
	rows, err := s.tx.Query(ctx, `SELECT product_id FROM stock_entries WHERE location_id=$1 ORDER BY product_id`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
