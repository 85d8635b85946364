package sales

import (
	"context"

	"github.com/meridian-retail/meridian-retail/internal/sales/customers"
	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// Tx is the unit-of-work surface for checkout, settlement and reversal. All
// writes issued through one Tx commit or roll back together, including the
// stock mutations reached through Stock().
type Tx interface {
	Stock() stock.TxStore

	GetCustomerForUpdate(ctx context.Context, id int64) (*customers.Customer, error)
	SetCustomerOpeningBalance(ctx context.Context, id int64, value float64) error
	DeleteCustomerRow(ctx context.Context, id int64) error

	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error
	InsertLayby(ctx context.Context, layby Layby) (int64, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)

	GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error)
	GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error)
	GetLayby(ctx context.Context, id int64) (*Layby, error)
	GetLaybyBySale(ctx context.Context, saleID int64) (*Layby, error)
	UpdateSaleStatus(ctx context.Context, id int64, status SaleStatus) error
	UpdateLaybyPaid(ctx context.Context, id int64, paid float64, status LaybyStatus) error

	ListLaybyIDsByCustomer(ctx context.Context, customerID int64) ([]int64, error)
	ListSaleIDsByCustomer(ctx context.Context, customerID int64) ([]int64, error)

	DeletePayments(ctx context.Context, saleID int64) error
	DeleteSaleLines(ctx context.Context, saleID int64) error
	DeleteLaybyBySale(ctx context.Context, saleID int64) error
	DeleteSaleRow(ctx context.Context, saleID int64) error
}

// Repository persists sales and opens units of work.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetSale(ctx context.Context, id int64) (*Sale, error)
	GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error)
	GetLayby(ctx context.Context, id int64) (*Layby, error)
	ListPayments(ctx context.Context, saleID int64) ([]Payment, error)
}
