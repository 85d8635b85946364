package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads catalog data from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, sku, standard_price, promo_price, currency FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.SKU, &p.StandardPrice, &p.PromoPrice, &p.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) GetKit(ctx context.Context, id int64) (*Kit, error) {
	var k Kit
	err := r.pool.QueryRow(ctx, `SELECT id, name, sku, standard_price, promo_price, currency FROM kits WHERE id=$1`, id).
		Scan(&k.ID, &k.Name, &k.SKU, &k.StandardPrice, &k.PromoPrice, &k.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

func (r *PGRepository) GetKitComponents(ctx context.Context, kitID int64) ([]KitComponent, error) {
	rows, err := r.pool.Query(ctx, `SELECT kit_id, product_id, qty_required FROM kit_components WHERE kit_id=$1 ORDER BY product_id`, kitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var components []KitComponent
	for rows.Next() {
		var c KitComponent
		if err := rows.Scan(&c.KitID, &c.ProductID, &c.QtyRequired); err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

func (r *PGRepository) IsOfferedAt(ctx context.Context, itemID int64, kind ItemKind, locationID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM location_catalog WHERE item_id=$1 AND item_kind=$2 AND location_id=$3)`,
		itemID, string(kind), locationID).Scan(&exists)
	return exists, err
}

func (r *PGRepository) ListKitIDsAt(ctx context.Context, locationID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_id FROM location_catalog WHERE item_kind=$1 AND location_id=$2 ORDER BY item_id`,
		string(ItemKindKit), locationID)
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

func (r *PGRepository) ListLocationIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM locations ORDER BY id`)
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
