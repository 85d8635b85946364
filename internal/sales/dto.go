package sales

// LineKind identifies how a cart line resolves against the catalog.
type LineKind string

const (
	LineProduct LineKind = "PRODUCT"
	LineKit     LineKind = "KIT"
	LineCustom  LineKind = "CUSTOM"
)

// CartLine is one line as collected by the point of sale.
type CartLine struct {
	ItemID      int64    `json:"item_id" validate:"required_unless=Kind CUSTOM"`
	Kind        LineKind `json:"kind" validate:"required,oneof=PRODUCT KIT CUSTOM"`
	Qty         int      `json:"qty" validate:"required,gt=0"`
	UnitPrice   float64  `json:"unit_price" validate:"gte=0"`
	DisplayName string   `json:"display_name,omitempty"`
}

// CheckoutInput carries everything a checkout needs; the engine keeps no
// session state between calls.
type CheckoutInput struct {
	ReceiptNo      string     `json:"receipt_no" validate:"required"`
	CustomerID     int64      `json:"customer_id" validate:"required,gt=0"`
	LocationID     int64      `json:"location_id" validate:"required,gt=0"`
	Currency       string     `json:"currency" validate:"required,len=3"`
	Discount       float64    `json:"discount" validate:"gte=0"`
	AmountTendered float64    `json:"amount_tendered" validate:"gte=0"`
	Lines          []CartLine `json:"lines" validate:"required,min=1,dive"`
	ActorID        int64      `json:"-"`
}

// CheckoutResult reports the committed sale.
type CheckoutResult struct {
	SaleID      int64      `json:"sale_id"`
	LaybyID     *int64     `json:"layby_id,omitempty"`
	Status      SaleStatus `json:"status"`
	Total       float64    `json:"total"`
	DownPayment float64    `json:"down_payment"`
}

// PaymentInput records an instalment against an open layby sale.
type PaymentInput struct {
	SaleID  int64   `json:"sale_id" validate:"required,gt=0"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
	ActorID int64   `json:"-"`
}
