package stocktake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-retail/internal/platform/db"
	"github.com/meridian-retail/meridian-retail/internal/shared"
	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// PGRepository persists stocktake sessions in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type pgTx struct {
	tx    pgx.Tx
	stock stock.TxStore
}

func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, stock: stock.NewTxStore(tx)})
	})
	if db.IsSerializationFailure(err) {
		return shared.ErrConflict
	}
	return err
}

func (r *PGRepository) CreateSession(ctx context.Context, session Session) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO stocktake_sessions (id, location_id, status, started_at)
VALUES ($1,$2,$3,$4)`, session.ID, session.LocationID, string(session.Status), session.StartedAt)
	return err
}

func (r *PGRepository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT id, location_id, status, started_at, finished_at FROM stocktake_sessions WHERE id=$1`, id))
}

func (r *PGRepository) SetSessionStatus(ctx context.Context, id uuid.UUID, status SessionStatus, finishedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stocktake_sessions SET status=$2, finished_at=$3 WHERE id=$1`, id, string(status), finishedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) UpsertEntry(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO stocktake_entries (session_id, product_id, qty)
VALUES ($1,$2,$3)
ON CONFLICT (session_id, product_id) DO UPDATE SET qty = EXCLUDED.qty`, entry.SessionID, entry.ProductID, entry.Qty)
	return err
}

func (r *PGRepository) ListEntries(ctx context.Context, sessionID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT session_id, product_id, qty FROM stocktake_entries WHERE session_id=$1 ORDER BY product_id`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (t *pgTx) Stock() stock.TxStore { return t.stock }

func (t *pgTx) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(t.tx.QueryRow(ctx, `SELECT id, location_id, status, started_at, finished_at FROM stocktake_sessions WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) SetSessionStatus(ctx context.Context, id uuid.UUID, status SessionStatus, finishedAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE stocktake_sessions SET status=$2, finished_at=$3 WHERE id=$1`, id, string(status), finishedAt)
	return err
}

func (t *pgTx) ListEntries(ctx context.Context, sessionID uuid.UUID) ([]Entry, error) {
	rows, err := t.tx.Query(ctx, `SELECT session_id, product_id, qty FROM stocktake_entries WHERE session_id=$1 ORDER BY product_id`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var status string
	err := row.Scan(&s.ID, &s.LocationID, &status, &s.StartedAt, &s.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Status = SessionStatus(status)
	return &s, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SessionID, &e.ProductID, &e.Qty); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
