package stock

import "context"

// TxStore is the row-locked mutation surface, valid inside one transaction.
// Every mutation locks the (product, location) entry so concurrent units of
// work serialize instead of overselling.
type TxStore interface {
	Get(ctx context.Context, productID, locationID int64) (int, error)
	Debit(ctx context.Context, productID, locationID int64, qty int, ref Ref) error
	Credit(ctx context.Context, productID, locationID int64, qty int, ref Ref) error
	SetAbsolute(ctx context.Context, productID, locationID int64, qty int, ref Ref) error
	KnownProductIDs(ctx context.Context, locationID int64) ([]int64, error)
}

// Store exposes stock reads and transactional mutation scopes.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	Get(ctx context.Context, productID, locationID int64) (int, error)
	StockMap(ctx context.Context, locationID int64, productIDs []int64) (map[int64]int, error)
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// MovementFilter narrows ledger queries.
type MovementFilter struct {
	ProductID  int64
	LocationID int64
	Limit      int
}
