package sales

import (
	"errors"
	"time"
)

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	// StatusCompleted marks a fully paid sale whose stock has been released.
	StatusCompleted SaleStatus = "COMPLETED"
	// StatusLayby marks an under-paid sale. Stock stays undeducted until the
	// layby is settled in full.
	StatusLayby SaleStatus = "LAYBY"
	// StatusCancelled is terminal.
	StatusCancelled SaleStatus = "CANCELLED"
)

// LaybyStatus is the lifecycle state of a layby.
type LaybyStatus string

const (
	LaybyActive    LaybyStatus = "ACTIVE"
	LaybyCompleted LaybyStatus = "COMPLETED"
)

// PaymentKind distinguishes money applied at checkout from layby instalments.
type PaymentKind string

const (
	PaymentCash  PaymentKind = "CASH"
	PaymentLayby PaymentKind = "LAYBY"
)

// Sale is the checkout header. DownPayment records only the tender applied to
// this sale; any portion consumed by the customer's opening balance is not
// part of it.
type Sale struct {
	ID          int64      `json:"id" db:"id"`
	ReceiptNo   string     `json:"receipt_no" db:"receipt_no"`
	CustomerID  int64      `json:"customer_id" db:"customer_id"`
	LocationID  int64      `json:"location_id" db:"location_id"`
	Currency    string     `json:"currency" db:"currency"`
	Subtotal    float64    `json:"subtotal" db:"subtotal"`
	Discount    float64    `json:"discount" db:"discount"`
	Total       float64    `json:"total" db:"total"`
	DownPayment float64    `json:"down_payment" db:"down_payment"`
	Status      SaleStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// SaleLine is the audit trail for stock restoration. Kit purchases are
// expanded into one line per component at commit time; the kit's price lives
// on the sale header only, so component lines carry a zero unit price. A nil
// ProductID marks a free-text custom line that never touches stock.
type SaleLine struct {
	ID          int64   `json:"id" db:"id"`
	SaleID      int64   `json:"sale_id" db:"sale_id"`
	ProductID   *int64  `json:"product_id,omitempty" db:"product_id"`
	DisplayName string  `json:"display_name" db:"display_name"`
	Qty         int     `json:"qty" db:"qty"`
	UnitPrice   float64 `json:"unit_price" db:"unit_price"`
	Currency    string  `json:"currency" db:"currency"`
}

// Layby tracks an under-paid sale until it is settled. Exactly one layby
// exists per under-paid sale.
type Layby struct {
	ID          int64       `json:"id" db:"id"`
	SaleID      int64       `json:"sale_id" db:"sale_id"`
	CustomerID  int64       `json:"customer_id" db:"customer_id"`
	TotalAmount float64     `json:"total_amount" db:"total_amount"`
	PaidAmount  float64     `json:"paid_amount" db:"paid_amount"`
	Status      LaybyStatus `json:"status" db:"status"`
	Notes       string      `json:"notes" db:"notes"`
}

// Payment is one append-only row of money applied to a sale.
type Payment struct {
	ID       int64       `json:"id" db:"id"`
	SaleID   int64       `json:"sale_id" db:"sale_id"`
	Amount   float64     `json:"amount" db:"amount"`
	Currency string      `json:"currency" db:"currency"`
	PaidAt   time.Time   `json:"paid_at" db:"paid_at"`
	Kind     PaymentKind `json:"kind" db:"kind"`
}

var (
	// ErrNotFound indicates a missing sale, layby or customer.
	ErrNotFound = errors.New("sales: record not found")
	// ErrEmptyReceipt rejects a checkout without a receipt number.
	ErrEmptyReceipt = errors.New("sales: receipt number required")
	// ErrEmptyCart rejects a checkout without lines.
	ErrEmptyCart = errors.New("sales: cart is empty")
	// ErrInvalidQuantity rejects non-positive line quantities.
	ErrInvalidQuantity = errors.New("sales: line quantity must be positive")
	// ErrTenderOutOfRange rejects tender below zero or above the sale total.
	ErrTenderOutOfRange = errors.New("sales: tendered amount out of range")
	// ErrInvalidDiscount rejects a discount below zero or above the subtotal.
	ErrInvalidDiscount = errors.New("sales: discount out of range")
	// ErrNotOffered rejects lines for items not offered at the sale location.
	ErrNotOffered = errors.New("sales: item not offered at this location")
	// ErrDuplicateReceipt rejects a receipt number that was already committed.
	ErrDuplicateReceipt = errors.New("sales: receipt number already used")
	// ErrNotLayby rejects instalment payments against non-layby sales.
	ErrNotLayby = errors.New("sales: sale is not an open layby")
	// ErrPartialState aborts a reversal that found dependent rows partially
	// missing; the caller must not retry blindly.
	ErrPartialState = errors.New("sales: sale rows are partially missing")
)
