package stock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and local tooling. A single
// mutex spans each WithTx scope, which gives the same serialization guarantee
// the SQL implementation gets from row locks.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[[2]int64]int
	movements []Movement
	nextID    int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[[2]int64]int)}
}

type memoryTx struct {
	store *MemoryStore
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[[2]int64]int, len(m.entries))
	for k, v := range m.entries {
		snapshot[k] = v
	}
	movementsLen := len(m.movements)
	if err := fn(ctx, &memoryTx{store: m}); err != nil {
		m.entries = snapshot
		m.movements = m.movements[:movementsLen]
		return err
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, productID, locationID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[[2]int64{productID, locationID}], nil
}

func (m *MemoryStore) StockMap(ctx context.Context, locationID int64, productIDs []int64) (map[int64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[int64]int, len(productIDs))
	for _, id := range productIDs {
		result[id] = m.entries[[2]int64{id, locationID}]
	}
	return result, nil
}

func (m *MemoryStore) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Movement
	for _, mv := range m.movements {
		if mv.ProductID == filter.ProductID && mv.LocationID == filter.LocationID {
			out = append(out, mv)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *memoryTx) Get(ctx context.Context, productID, locationID int64) (int, error) {
	return t.store.entries[[2]int64{productID, locationID}], nil
}

func (t *memoryTx) record(productID, locationID int64, change int, kind MovementKind, ref Ref) {
	t.store.nextID++
	t.store.movements = append(t.store.movements, Movement{
		ID:         t.store.nextID,
		ProductID:  productID,
		LocationID: locationID,
		QtyChange:  change,
		Kind:       kind,
		RefModule:  ref.Module,
		RefID:      ref.ID,
		Note:       ref.Note,
		PostedAt:   time.Now().UTC(),
	})
}

func (t *memoryTx) Debit(ctx context.Context, productID, locationID int64, qty int, ref Ref) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	key := [2]int64{productID, locationID}
	if t.store.entries[key]-qty < 0 {
		return ErrInsufficientStock
	}
	t.store.entries[key] -= qty
	t.record(productID, locationID, -qty, MovementOut, ref)
	return nil
}

func (t *memoryTx) Credit(ctx context.Context, productID, locationID int64, qty int, ref Ref) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	key := [2]int64{productID, locationID}
	t.store.entries[key] += qty
	t.record(productID, locationID, qty, MovementIn, ref)
	return nil
}

func (t *memoryTx) SetAbsolute(ctx context.Context, productID, locationID int64, qty int, ref Ref) error {
	if qty < 0 {
		qty = 0
	}
	key := [2]int64{productID, locationID}
	change := qty - t.store.entries[key]
	t.store.entries[key] = qty
	t.record(productID, locationID, change, MovementSet, ref)
	return nil
}

func (t *memoryTx) KnownProductIDs(ctx context.Context, locationID int64) ([]int64, error) {
	var ids []int64
	for key := range t.store.entries {
		if key[1] == locationID {
			ids = append(ids, key[0])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
