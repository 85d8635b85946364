package catalog

import "errors"

// ItemKind distinguishes plain products from kits in the location catalog.
type ItemKind string

const (
	// ItemKindProduct marks a plain product.
	ItemKindProduct ItemKind = "PRODUCT"
	// ItemKindKit marks a composite kit.
	ItemKindKit ItemKind = "KIT"
)

// Product is a sellable item with its own stock.
type Product struct {
	ID            int64
	Name          string
	SKU           string
	StandardPrice float64
	PromoPrice    *float64
	Currency      string
}

// Kit is a virtual product assembled from fixed quantities of components.
// A kit carries no stock of its own; availability is always derived.
type Kit struct {
	ID            int64
	Name          string
	SKU           string
	StandardPrice float64
	PromoPrice    *float64
	Currency      string
}

// KitComponent ties a kit to one of its component products.
type KitComponent struct {
	KitID       int64
	ProductID   int64
	QtyRequired int
}

// Location is a stock-holding site.
type Location struct {
	ID   int64
	Name string
}

// ErrNotFound indicates a missing catalog record.
var ErrNotFound = errors.New("catalog: record not found")
