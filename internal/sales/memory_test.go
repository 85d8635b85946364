package sales

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meridian-retail/meridian-retail/internal/catalog"
	"github.com/meridian-retail/meridian-retail/internal/sales/customers"
	"github.com/meridian-retail/meridian-retail/internal/shared"
	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// memoryRepo backs the engine tests. Stock rides on stock.MemoryStore so a
// failed unit of work rolls back sales rows and stock together, matching the
// SQL repository's contract.
type memoryRepo struct {
	mu    sync.Mutex
	stock *stock.MemoryStore

	customers map[int64]customers.Customer
	sales     map[int64]Sale
	lines     map[int64][]SaleLine
	laybys    map[int64]Layby
	payments  map[int64][]Payment
	receipts  map[string]int64
	nextID    int64
}

func newMemoryRepo(stockStore *stock.MemoryStore) *memoryRepo {
	return &memoryRepo{
		stock:     stockStore,
		customers: make(map[int64]customers.Customer),
		sales:     make(map[int64]Sale),
		lines:     make(map[int64][]SaleLine),
		laybys:    make(map[int64]Layby),
		payments:  make(map[int64][]Payment),
		receipts:  make(map[string]int64),
	}
}

func (m *memoryRepo) addCustomer(id int64, openingBalance float64) {
	m.customers[id] = customers.Customer{ID: id, Name: "customer", Currency: "AUD", OpeningBalance: openingBalance}
}

type memTx struct {
	repo  *memoryRepo
	stock stock.TxStore
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapCustomers := cloneMap(m.customers)
	snapSales := cloneMap(m.sales)
	snapLaybys := cloneMap(m.laybys)
	snapLines := cloneSlices(m.lines)
	snapPayments := cloneSlices(m.payments)
	snapReceipts := cloneMap(m.receipts)
	snapNext := m.nextID
	err := m.stock.WithTx(ctx, func(ctx context.Context, st stock.TxStore) error {
		return fn(ctx, &memTx{repo: m, stock: st})
	})
	if err != nil {
		m.customers = snapCustomers
		m.sales = snapSales
		m.laybys = snapLaybys
		m.lines = snapLines
		m.payments = snapPayments
		m.receipts = snapReceipts
		m.nextID = snapNext
	}
	return err
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneSlices[K comparable, V any](in map[K][]V) map[K][]V {
	out := make(map[K][]V, len(in))
	for k, v := range in {
		out[k] = append([]V(nil), v...)
	}
	return out
}

func (m *memoryRepo) GetSale(ctx context.Context, id int64) (*Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale, ok := m.sales[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sale, nil
}

func (m *memoryRepo) GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SaleLine(nil), m.lines[saleID]...), nil
}

func (m *memoryRepo) GetLayby(ctx context.Context, id int64) (*Layby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	layby, ok := m.laybys[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &layby, nil
}

func (m *memoryRepo) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Payment(nil), m.payments[saleID]...), nil
}

func (t *memTx) Stock() stock.TxStore { return t.stock }

func (t *memTx) GetCustomerForUpdate(ctx context.Context, id int64) (*customers.Customer, error) {
	c, ok := t.repo.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (t *memTx) SetCustomerOpeningBalance(ctx context.Context, id int64, value float64) error {
	c := t.repo.customers[id]
	c.OpeningBalance = value
	t.repo.customers[id] = c
	return nil
}

func (t *memTx) DeleteCustomerRow(ctx context.Context, id int64) error {
	delete(t.repo.customers, id)
	return nil
}

func (t *memTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	if _, exists := t.repo.receipts[sale.ReceiptNo]; exists {
		return 0, ErrDuplicateReceipt
	}
	t.repo.nextID++
	sale.ID = t.repo.nextID
	sale.CreatedAt = time.Now()
	sale.UpdatedAt = sale.CreatedAt
	t.repo.sales[sale.ID] = sale
	t.repo.receipts[sale.ReceiptNo] = sale.ID
	return sale.ID, nil
}

func (t *memTx) InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error {
	for _, line := range lines {
		t.repo.nextID++
		line.ID = t.repo.nextID
		line.SaleID = saleID
		t.repo.lines[saleID] = append(t.repo.lines[saleID], line)
	}
	return nil
}

func (t *memTx) InsertLayby(ctx context.Context, layby Layby) (int64, error) {
	t.repo.nextID++
	layby.ID = t.repo.nextID
	t.repo.laybys[layby.ID] = layby
	return layby.ID, nil
}

func (t *memTx) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	t.repo.nextID++
	payment.ID = t.repo.nextID
	t.repo.payments[payment.SaleID] = append(t.repo.payments[payment.SaleID], payment)
	return payment.ID, nil
}

func (t *memTx) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	sale, ok := t.repo.sales[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sale, nil
}

func (t *memTx) GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	return append([]SaleLine(nil), t.repo.lines[saleID]...), nil
}

func (t *memTx) GetLayby(ctx context.Context, id int64) (*Layby, error) {
	layby, ok := t.repo.laybys[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &layby, nil
}

func (t *memTx) GetLaybyBySale(ctx context.Context, saleID int64) (*Layby, error) {
	for _, layby := range t.repo.laybys {
		if layby.SaleID == saleID {
			l := layby
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) UpdateSaleStatus(ctx context.Context, id int64, status SaleStatus) error {
	sale := t.repo.sales[id]
	sale.Status = status
	sale.UpdatedAt = time.Now()
	t.repo.sales[id] = sale
	return nil
}

func (t *memTx) UpdateLaybyPaid(ctx context.Context, id int64, paid float64, status LaybyStatus) error {
	layby := t.repo.laybys[id]
	layby.PaidAmount = paid
	layby.Status = status
	t.repo.laybys[id] = layby
	return nil
}

func (t *memTx) ListLaybyIDsByCustomer(ctx context.Context, customerID int64) ([]int64, error) {
	var ids []int64
	for id, layby := range t.repo.laybys {
		if layby.CustomerID == customerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *memTx) ListSaleIDsByCustomer(ctx context.Context, customerID int64) ([]int64, error) {
	var ids []int64
	for id, sale := range t.repo.sales {
		if sale.CustomerID == customerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *memTx) DeletePayments(ctx context.Context, saleID int64) error {
	delete(t.repo.payments, saleID)
	return nil
}

func (t *memTx) DeleteSaleLines(ctx context.Context, saleID int64) error {
	delete(t.repo.lines, saleID)
	return nil
}

func (t *memTx) DeleteLaybyBySale(ctx context.Context, saleID int64) error {
	for id, layby := range t.repo.laybys {
		if layby.SaleID == saleID {
			delete(t.repo.laybys, id)
		}
	}
	return nil
}

func (t *memTx) DeleteSaleRow(ctx context.Context, saleID int64) error {
	if sale, ok := t.repo.sales[saleID]; ok {
		delete(t.repo.receipts, sale.ReceiptNo)
	}
	delete(t.repo.sales, saleID)
	return nil
}

// memoryCatalog is a mutable catalog fixture. Tests redefine kit components
// through it to prove reversals never recompute from current definitions.
type memoryCatalog struct {
	products   map[int64]catalog.Product
	kitList    map[int64]catalog.Kit
	components map[int64][]catalog.KitComponent
	offered    map[string]bool
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		products:   make(map[int64]catalog.Product),
		kitList:    make(map[int64]catalog.Kit),
		components: make(map[int64][]catalog.KitComponent),
		offered:    make(map[string]bool),
	}
}

func offeredKey(itemID int64, kind catalog.ItemKind, locationID int64) string {
	return fmt.Sprintf("%s:%d@%d", kind, itemID, locationID)
}

func (c *memoryCatalog) addProduct(p catalog.Product, locations ...int64) {
	c.products[p.ID] = p
	for _, loc := range locations {
		c.offered[offeredKey(p.ID, catalog.ItemKindProduct, loc)] = true
	}
}

func (c *memoryCatalog) addKit(k catalog.Kit, components []catalog.KitComponent, locations ...int64) {
	c.kitList[k.ID] = k
	c.components[k.ID] = components
	for _, loc := range locations {
		c.offered[offeredKey(k.ID, catalog.ItemKindKit, loc)] = true
	}
}

func (c *memoryCatalog) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (c *memoryCatalog) GetKit(ctx context.Context, id int64) (*catalog.Kit, error) {
	k, ok := c.kitList[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &k, nil
}

func (c *memoryCatalog) GetKitComponents(ctx context.Context, kitID int64) ([]catalog.KitComponent, error) {
	return append([]catalog.KitComponent(nil), c.components[kitID]...), nil
}

func (c *memoryCatalog) IsOfferedAt(ctx context.Context, itemID int64, kind catalog.ItemKind, locationID int64) (bool, error) {
	return c.offered[offeredKey(itemID, kind, locationID)], nil
}

// memIdem mirrors shared.IdempotencyStore semantics for tests.
type memIdem struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemIdem() *memIdem { return &memIdem{keys: make(map[string]bool)} }

func (m *memIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memIdem) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
