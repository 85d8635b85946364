package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-retail/internal/platform/db"
	"github.com/meridian-retail/meridian-retail/internal/sales/customers"
	"github.com/meridian-retail/meridian-retail/internal/shared"
	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// PGRepository persists sales in PostgreSQL.
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

// WithTx executes the callback inside a repeatable-read transaction.
// Serialization failures surface as shared.ErrConflict so callers can retry,
// and duplicate receipt numbers as ErrDuplicateReceipt.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, stock: stock.NewTxStore(tx)})
	})
	switch {
	case err == nil:
		return nil
	case db.IsSerializationFailure(err):
		return shared.ErrConflict
	case db.IsUniqueViolation(err):
		return ErrDuplicateReceipt
	default:
		return err
	}
}

func (r *PGRepository) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return scanSale(r.pool.QueryRow(ctx, `SELECT id, receipt_no, customer_id, location_id, currency, subtotal, discount, total, down_payment, status, created_at, updated_at
FROM sales WHERE id=$1`, id))
}

func (r *PGRepository) GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, display_name, qty, unit_price, currency FROM sale_lines WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	return scanSaleLines(rows)
}

func (r *PGRepository) GetLayby(ctx context.Context, id int64) (*Layby, error) {
	return scanLayby(r.pool.QueryRow(ctx, `SELECT id, sale_id, customer_id, total_amount, paid_amount, status, notes FROM laybys WHERE id=$1`, id))
}

func (r *PGRepository) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, amount, currency, paid_at, kind FROM payments WHERE sale_id=$1 ORDER BY paid_at, id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.Currency, &p.PaidAt, &p.Kind); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) Stock() stock.TxStore {
	return t.stock
}

func (t *pgTx) GetCustomerForUpdate(ctx context.Context, id int64) (*customers.Customer, error) {
	var c customers.Customer
	err := t.tx.QueryRow(ctx, `SELECT id, name, currency, opening_balance, created_at, updated_at FROM customers WHERE id=$1 FOR UPDATE`, id).
		Scan(&c.ID, &c.Name, &c.Currency, &c.OpeningBalance, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) SetCustomerOpeningBalance(ctx context.Context, id int64, value float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE customers SET opening_balance=$2, updated_at=NOW() WHERE id=$1`, id, value)
	return err
}

func (t *pgTx) DeleteCustomerRow(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	return err
}

func (t *pgTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO sales (receipt_no, customer_id, location_id, currency, subtotal, discount, total, down_payment, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		sale.ReceiptNo, sale.CustomerID, sale.LocationID, sale.Currency, sale.Subtotal, sale.Discount, sale.Total, sale.DownPayment, string(sale.Status)).Scan(&id)
	return id, err
}

func (t *pgTx) InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error {
	for _, line := range lines {
		if _, err := t.tx.Exec(ctx, `INSERT INTO sale_lines (sale_id, product_id, display_name, qty, unit_price, currency)
VALUES ($1,$2,$3,$4,$5,$6)`, saleID, line.ProductID, line.DisplayName, line.Qty, line.UnitPrice, line.Currency); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) InsertLayby(ctx context.Context, layby Layby) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO laybys (sale_id, customer_id, total_amount, paid_amount, status, notes)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		layby.SaleID, layby.CustomerID, layby.TotalAmount, layby.PaidAmount, string(layby.Status), layby.Notes).Scan(&id)
	return id, err
}

func (t *pgTx) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO payments (sale_id, amount, currency, paid_at, kind)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		payment.SaleID, payment.Amount, payment.Currency, payment.PaidAt, string(payment.Kind)).Scan(&id)
	return id, err
}

func (t *pgTx) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	return scanSale(t.tx.QueryRow(ctx, `SELECT id, receipt_no, customer_id, location_id, currency, subtotal, discount, total, down_payment, status, created_at, updated_at
FROM sales WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, sale_id, product_id, display_name, qty, unit_price, currency FROM sale_lines WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	return scanSaleLines(rows)
}

func (t *pgTx) GetLayby(ctx context.Context, id int64) (*Layby, error) {
	return scanLayby(t.tx.QueryRow(ctx, `SELECT id, sale_id, customer_id, total_amount, paid_amount, status, notes FROM laybys WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) GetLaybyBySale(ctx context.Context, saleID int64) (*Layby, error) {
	return scanLayby(t.tx.QueryRow(ctx, `SELECT id, sale_id, customer_id, total_amount, paid_amount, status, notes FROM laybys WHERE sale_id=$1 FOR UPDATE`, saleID))
}

func (t *pgTx) UpdateSaleStatus(ctx context.Context, id int64, status SaleStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE sales SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (t *pgTx) UpdateLaybyPaid(ctx context.Context, id int64, paid float64, status LaybyStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE laybys SET paid_amount=$2, status=$3 WHERE id=$1`, id, paid, string(status))
	return err
}

func (t *pgTx) ListLaybyIDsByCustomer(ctx context.Context, customerID int64) ([]int64, error) {
	return scanIDs(t.tx.Query(ctx, `SELECT id FROM laybys WHERE customer_id=$1 ORDER BY id`, customerID))
}

func (t *pgTx) ListSaleIDsByCustomer(ctx context.Context, customerID int64) ([]int64, error) {
	return scanIDs(t.tx.Query(ctx, `SELECT id FROM sales WHERE customer_id=$1 ORDER BY id`, customerID))
}

func (t *pgTx) DeletePayments(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM payments WHERE sale_id=$1`, saleID)
	return err
}

func (t *pgTx) DeleteSaleLines(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM sale_lines WHERE sale_id=$1`, saleID)
	return err
}

func (t *pgTx) DeleteLaybyBySale(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM laybys WHERE sale_id=$1`, saleID)
	return err
}

func (t *pgTx) DeleteSaleRow(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM sales WHERE id=$1`, saleID)
	return err
}

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	var status string
	err := row.Scan(&s.ID, &s.ReceiptNo, &s.CustomerID, &s.LocationID, &s.Currency, &s.Subtotal, &s.Discount, &s.Total, &s.DownPayment, &status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Status = SaleStatus(status)
	return &s, nil
}

func scanLayby(row pgx.Row) (*Layby, error) {
	var l Layby
	var status string
	err := row.Scan(&l.ID, &l.SaleID, &l.CustomerID, &l.TotalAmount, &l.PaidAmount, &status, &l.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	l.Status = LaybyStatus(status)
	return &l, nil
}

func scanSaleLines(rows pgx.Rows) ([]SaleLine, error) {
	defer rows.Close()
	var lines []SaleLine
	for rows.Next() {
		var line SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.DisplayName, &line.Qty, &line.UnitPrice, &line.Currency); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanIDs(rows pgx.Rows, err error) ([]int64, error) {
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
