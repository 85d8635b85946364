package stock

import (
	"errors"
	"time"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementIn represents an inbound credit.
	MovementIn MovementKind = "IN"
	// MovementOut represents an outbound debit.
	MovementOut MovementKind = "OUT"
	// MovementSet records a stocktake overwrite.
	MovementSet MovementKind = "SET"
	// MovementTransfer is used for transfer legs between locations.
	MovementTransfer MovementKind = "TRANSFER"
)

// Entry is the authoritative on-hand quantity for one product at one location.
// Rows are created lazily on first mutation; a missing row reads as zero.
type Entry struct {
	ProductID  int64
	LocationID int64
	Qty        int
	UpdatedAt  time.Time
}

// Movement is one append-only ledger line describing a quantity change.
type Movement struct {
	ID         int64
	ProductID  int64
	LocationID int64
	QtyChange  int
	Kind       MovementKind
	RefModule  string
	RefID      string
	Note       string
	PostedAt   time.Time
}

// Ref identifies the business document that caused a movement.
type Ref struct {
	Module string
	ID     string
	Note   string
}

// ErrInsufficientStock is returned when a debit would drive quantity negative.
var ErrInsufficientStock = errors.New("stock: insufficient quantity on hand")

// ErrInvalidQuantity indicates a non-positive mutation quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be positive")
