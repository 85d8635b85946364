package kits

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian-retail/internal/catalog"
	"github.com/meridian-retail/meridian-retail/internal/stock"
)

type memoryCatalog struct {
	components map[int64][]catalog.KitComponent
	kitsAt     map[int64][]int64
	locations  []int64
}

func (m *memoryCatalog) GetKitComponents(ctx context.Context, kitID int64) ([]catalog.KitComponent, error) {
	return m.components[kitID], nil
}

func (m *memoryCatalog) ListKitIDsAt(ctx context.Context, locationID int64) ([]int64, error) {
	return m.kitsAt[locationID], nil
}

func (m *memoryCatalog) ListLocationIDs(ctx context.Context) ([]int64, error) {
	return m.locations, nil
}

func newTestService(t *testing.T) (*Service, *memoryCatalog, *stock.MemoryStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cat := &memoryCatalog{
		components: make(map[int64][]catalog.KitComponent),
		kitsAt:     make(map[int64][]int64),
	}
	store := stock.NewMemoryStore()
	svc := NewService(cat, store, NewCache(client), nil)
	return svc, cat, store
}

func seedStock(t *testing.T, store *stock.MemoryStore, locationID int64, qty map[int64]int) {
	t.Helper()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx stock.TxStore) error {
		for productID, n := range qty {
			if err := tx.SetAbsolute(ctx, productID, locationID, n, stock.Ref{Module: "test"}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBuildableLive(t *testing.T) {
	svc, cat, store := newTestService(t)
	ctx := context.Background()

	cat.components[10] = []catalog.KitComponent{
		{KitID: 10, ProductID: 1, QtyRequired: 2},
		{KitID: 10, ProductID: 2, QtyRequired: 1},
	}
	seedStock(t, store, 1, map[int64]int{1: 5, 2: 3})

	qty, err := svc.Buildable(ctx, 10, 1)
	require.NoError(t, err)
	require.Equal(t, 2, qty)
}

func TestCachedBuildableBackfillsOnMiss(t *testing.T) {
	svc, cat, store := newTestService(t)
	ctx := context.Background()

	cat.components[10] = []catalog.KitComponent{{KitID: 10, ProductID: 1, QtyRequired: 1}}
	seedStock(t, store, 1, map[int64]int{1: 7})

	qty, err := svc.CachedBuildable(ctx, 10, 1)
	require.NoError(t, err)
	require.Equal(t, 7, qty)

	// Stock moves but the cache still serves the materialized value until the
	// next refresh.
	seedStock(t, store, 1, map[int64]int{1: 2})
	qty, err = svc.CachedBuildable(ctx, 10, 1)
	require.NoError(t, err)
	require.Equal(t, 7, qty)

	// A refresh drops the stale value; the next read recomputes from stock.
	require.NoError(t, svc.RefreshLocation(ctx, 1))
	qty, err = svc.CachedBuildable(ctx, 10, 1)
	require.NoError(t, err)
	require.Equal(t, 2, qty)
}

func TestRefreshLocationOverwritesView(t *testing.T) {
	svc, cat, store := newTestService(t)
	ctx := context.Background()

	cat.components[10] = []catalog.KitComponent{{KitID: 10, ProductID: 1, QtyRequired: 2}}
	cat.components[11] = []catalog.KitComponent{{KitID: 11, ProductID: 2, QtyRequired: 3}}
	cat.kitsAt[1] = []int64{10, 11}
	seedStock(t, store, 1, map[int64]int{1: 9, 2: 4})

	require.NoError(t, svc.RefreshLocation(ctx, 1))

	qty, err := svc.CachedBuildable(ctx, 10, 1)
	require.NoError(t, err)
	require.Equal(t, 4, qty)
	qty, err = svc.CachedBuildable(ctx, 11, 1)
	require.NoError(t, err)
	require.Equal(t, 1, qty)

	// A second refresh after a stocktake-style overwrite replaces stale values.
	seedStock(t, store, 1, map[int64]int{1: 0, 2: 0})
	require.NoError(t, svc.RefreshLocation(ctx, 1))
	qty, err = svc.CachedBuildable(ctx, 10, 1)
	require.NoError(t, err)
	require.Zero(t, qty)
}

func TestRefreshAllCoversEveryLocation(t *testing.T) {
	svc, cat, store := newTestService(t)
	ctx := context.Background()

	cat.components[10] = []catalog.KitComponent{{KitID: 10, ProductID: 1, QtyRequired: 1}}
	cat.kitsAt[1] = []int64{10}
	cat.kitsAt[2] = []int64{10}
	cat.locations = []int64{1, 2}
	seedStock(t, store, 1, map[int64]int{1: 3})
	seedStock(t, store, 2, map[int64]int{1: 8})

	require.NoError(t, svc.RefreshAll(ctx))

	qty, err := svc.CachedBuildable(ctx, 10, 1)
	require.NoError(t, err)
	require.Equal(t, 3, qty)
	qty, err = svc.CachedBuildable(ctx, 10, 2)
	require.NoError(t, err)
	require.Equal(t, 8, qty)
}
