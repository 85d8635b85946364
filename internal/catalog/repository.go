package catalog

import "context"

// Repository exposes read access to catalog records. Catalog authoring (names,
// prices, categories) happens outside this service; the engine only reads.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetKit(ctx context.Context, id int64) (*Kit, error)
	GetKitComponents(ctx context.Context, kitID int64) ([]KitComponent, error)
	IsOfferedAt(ctx context.Context, itemID int64, kind ItemKind, locationID int64) (bool, error)
	ListKitIDsAt(ctx context.Context, locationID int64) ([]int64, error)
	ListLocationIDs(ctx context.Context) ([]int64, error)
}
