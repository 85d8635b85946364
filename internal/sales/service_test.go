package sales

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian-retail/internal/catalog"
	"github.com/meridian-retail/meridian-retail/internal/stock"
)

const testLocation = int64(1)

type fixture struct {
	service *Service
	repo    *memoryRepo
	catalog *memoryCatalog
	stock   *stock.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stockStore := stock.NewMemoryStore()
	repo := newMemoryRepo(stockStore)
	cat := newMemoryCatalog()
	svc := NewService(repo, cat, newMemIdem(), nil, nil, nil, nil)
	return &fixture{service: svc, repo: repo, catalog: cat, stock: stockStore}
}

func (f *fixture) seedStock(t *testing.T, productID int64, qty int) {
	t.Helper()
	err := f.stock.WithTx(context.Background(), func(ctx context.Context, tx stock.TxStore) error {
		return tx.Credit(ctx, productID, testLocation, qty, stock.Ref{Module: "test"})
	})
	require.NoError(t, err)
}

func (f *fixture) onHand(t *testing.T, productID int64) int {
	t.Helper()
	qty, err := f.stock.Get(context.Background(), productID, testLocation)
	require.NoError(t, err)
	return qty
}

func productInput(receipt string, customerID, productID int64, qty int, price, discount, tendered float64) CheckoutInput {
	return CheckoutInput{
		ReceiptNo:      receipt,
		CustomerID:     customerID,
		LocationID:     testLocation,
		Currency:       "AUD",
		Discount:       discount,
		AmountTendered: tendered,
		Lines: []CartLine{
			{ItemID: productID, Kind: LineProduct, Qty: qty, UnitPrice: price},
		},
	}
}

func TestCheckoutPaymentWaterfall(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 100)
	f.catalog.addProduct(catalog.Product{ID: 10, Name: "espresso machine", StandardPrice: 60}, testLocation)
	f.seedStock(t, 10, 10)

	result, err := f.service.Checkout(context.Background(), productInput("R-001", 7, 10, 2, 60, 0, 150))
	require.NoError(t, err)

	require.Equal(t, StatusLayby, result.Status)
	require.Equal(t, 120.0, result.Total)
	require.Equal(t, 50.0, result.DownPayment)
	require.NotNil(t, result.LaybyID)

	layby, err := f.repo.GetLayby(context.Background(), *result.LaybyID)
	require.NoError(t, err)
	require.Equal(t, 120.0, layby.TotalAmount)
	require.Equal(t, 50.0, layby.PaidAmount)
	require.Equal(t, LaybyActive, layby.Status)

	require.Equal(t, 0.0, f.repo.customers[7].OpeningBalance)

	// Layby commits leave stock untouched.
	require.Equal(t, 10, f.onHand(t, 10))

	payments, err := f.repo.ListPayments(context.Background(), result.SaleID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, 50.0, payments[0].Amount)
	require.Equal(t, PaymentLayby, payments[0].Kind)
}

func TestCheckoutCompletedDebitsStock(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	f.catalog.addProduct(catalog.Product{ID: 10, Name: "grinder", StandardPrice: 40}, testLocation)
	f.seedStock(t, 10, 5)

	result, err := f.service.Checkout(context.Background(), productInput("R-002", 7, 10, 3, 40, 0, 120))
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)
	require.Nil(t, result.LaybyID)
	require.Equal(t, 2, f.onHand(t, 10))

	payments, err := f.repo.ListPayments(context.Background(), result.SaleID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, PaymentCash, payments[0].Kind)
}

func TestCheckoutKitExpansion(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	f.catalog.addProduct(catalog.Product{ID: 1, Name: "cup", StandardPrice: 5}, testLocation)
	f.catalog.addProduct(catalog.Product{ID: 2, Name: "saucer", StandardPrice: 4}, testLocation)
	f.catalog.addKit(catalog.Kit{ID: 100, Name: "tea set", StandardPrice: 20}, []catalog.KitComponent{
		{KitID: 100, ProductID: 1, QtyRequired: 2},
		{KitID: 100, ProductID: 2, QtyRequired: 1},
	}, testLocation)
	f.seedStock(t, 1, 5)
	f.seedStock(t, 2, 3)

	input := CheckoutInput{
		ReceiptNo:      "R-003",
		CustomerID:     7,
		LocationID:     testLocation,
		Currency:       "AUD",
		AmountTendered: 40,
		Lines: []CartLine{
			{ItemID: 100, Kind: LineKit, Qty: 2, UnitPrice: 20},
		},
	}
	result, err := f.service.Checkout(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)

	lines, err := f.repo.GetSaleLines(context.Background(), result.SaleID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	byProduct := map[int64]SaleLine{}
	for _, line := range lines {
		require.NotNil(t, line.ProductID)
		require.Equal(t, 0.0, line.UnitPrice)
		byProduct[*line.ProductID] = line
	}
	require.Equal(t, 4, byProduct[1].Qty)
	require.Equal(t, 2, byProduct[2].Qty)

	require.Equal(t, 1, f.onHand(t, 1))
	require.Equal(t, 1, f.onHand(t, 2))
}

func TestCheckoutRejectsUnbuildableKitQuantity(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	f.catalog.addProduct(catalog.Product{ID: 1, Name: "cup", StandardPrice: 5}, testLocation)
	f.catalog.addKit(catalog.Kit{ID: 100, Name: "set", StandardPrice: 20}, []catalog.KitComponent{
		{KitID: 100, ProductID: 1, QtyRequired: 2},
	}, testLocation)
	f.seedStock(t, 1, 5)

	input := CheckoutInput{
		ReceiptNo:      "R-004",
		CustomerID:     7,
		LocationID:     testLocation,
		Currency:       "AUD",
		AmountTendered: 60,
		Lines: []CartLine{
			{ItemID: 100, Kind: LineKit, Qty: 3, UnitPrice: 20},
		},
	}
	_, err := f.service.Checkout(context.Background(), input)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
	require.Equal(t, 5, f.onHand(t, 1))
	require.Empty(t, f.repo.sales)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	f.catalog.addProduct(catalog.Product{ID: 10, Name: "grinder", StandardPrice: 40}, testLocation)
	f.seedStock(t, 10, 5)

	_, err := f.service.Checkout(context.Background(), productInput("", 7, 10, 1, 40, 0, 40))
	require.ErrorIs(t, err, ErrEmptyReceipt)

	empty := productInput("R-005", 7, 10, 1, 40, 0, 40)
	empty.Lines = nil
	_, err = f.service.Checkout(context.Background(), empty)
	require.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.service.Checkout(context.Background(), productInput("R-005", 7, 10, 0, 40, 0, 0))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	// Tender above total is rejected before any mutation.
	_, err = f.service.Checkout(context.Background(), productInput("R-005", 7, 10, 1, 40, 0, 41))
	require.ErrorIs(t, err, ErrTenderOutOfRange)

	// Discount above subtotal.
	_, err = f.service.Checkout(context.Background(), productInput("R-005", 7, 10, 1, 40, 50, 0))
	require.ErrorIs(t, err, ErrInvalidDiscount)

	// Requested quantity above on-hand.
	_, err = f.service.Checkout(context.Background(), productInput("R-005", 7, 10, 6, 40, 0, 240))
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	// Item not in the location's catalog.
	other := productInput("R-005", 7, 99, 1, 40, 0, 40)
	f.catalog.products[99] = catalog.Product{ID: 99, Name: "unlisted", StandardPrice: 40}
	_, err = f.service.Checkout(context.Background(), other)
	require.ErrorIs(t, err, ErrNotOffered)

	require.Empty(t, f.repo.sales)
	require.Equal(t, 5, f.onHand(t, 10))
}

func TestCheckoutDuplicateReceipt(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	f.catalog.addProduct(catalog.Product{ID: 10, Name: "grinder", StandardPrice: 40}, testLocation)
	f.seedStock(t, 10, 5)

	_, err := f.service.Checkout(context.Background(), productInput("R-006", 7, 10, 1, 40, 0, 40))
	require.NoError(t, err)

	_, err = f.service.Checkout(context.Background(), productInput("R-006", 7, 10, 1, 40, 0, 40))
	require.ErrorIs(t, err, ErrDuplicateReceipt)
	require.Equal(t, 4, f.onHand(t, 10))
}

func TestCheckoutFailureReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	f.catalog.addProduct(catalog.Product{ID: 10, Name: "grinder", StandardPrice: 40}, testLocation)
	f.seedStock(t, 10, 1)

	// First attempt fails on stock; the receipt number must stay usable.
	_, err := f.service.Checkout(context.Background(), productInput("R-007", 7, 10, 2, 40, 0, 80))
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	_, err = f.service.Checkout(context.Background(), productInput("R-007", 7, 10, 1, 40, 0, 40))
	require.NoError(t, err)
}

func TestCheckoutUsesCatalogPriceWhenUnset(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	promo := 25.0
	f.catalog.addProduct(catalog.Product{ID: 10, Name: "kettle", StandardPrice: 30, PromoPrice: &promo}, testLocation)
	f.seedStock(t, 10, 5)

	result, err := f.service.Checkout(context.Background(), productInput("R-008", 7, 10, 2, 0, 0, 50))
	require.NoError(t, err)
	require.Equal(t, 50.0, result.Total)
	require.Equal(t, StatusCompleted, result.Status)
}

func TestRecordPaymentSettlesLaybyAndDebitsOnce(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	f.catalog.addProduct(catalog.Product{ID: 10, Name: "mixer", StandardPrice: 50}, testLocation)
	f.seedStock(t, 10, 10)

	result, err := f.service.Checkout(context.Background(), productInput("R-009", 7, 10, 2, 50, 0, 30))
	require.NoError(t, err)
	require.Equal(t, StatusLayby, result.Status)
	require.Equal(t, 10, f.onHand(t, 10))

	// A partial instalment keeps the layby open and the goods in stock.
	sale, err := f.service.RecordPayment(context.Background(), PaymentInput{SaleID: result.SaleID, Amount: 40})
	require.NoError(t, err)
	require.Equal(t, StatusLayby, sale.Status)
	require.Equal(t, 10, f.onHand(t, 10))

	// The final instalment settles and debits exactly once.
	sale, err = f.service.RecordPayment(context.Background(), PaymentInput{SaleID: result.SaleID, Amount: 30})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, sale.Status)
	require.Equal(t, 8, f.onHand(t, 10))

	layby, err := f.repo.GetLayby(context.Background(), *result.LaybyID)
	require.NoError(t, err)
	require.Equal(t, LaybyCompleted, layby.Status)
	require.Equal(t, 100.0, layby.PaidAmount)

	// A settled sale takes no further instalments.
	_, err = f.service.RecordPayment(context.Background(), PaymentInput{SaleID: result.SaleID, Amount: 10})
	require.ErrorIs(t, err, ErrNotLayby)
	require.Equal(t, 8, f.onHand(t, 10))
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	f := newFixture(t)
	f.repo.addCustomer(7, 0)
	f.catalog.addProduct(catalog.Product{ID: 10, Name: "mixer", StandardPrice: 50}, testLocation)
	f.seedStock(t, 10, 10)

	result, err := f.service.Checkout(context.Background(), productInput("R-010", 7, 10, 1, 50, 0, 10))
	require.NoError(t, err)

	_, err = f.service.RecordPayment(context.Background(), PaymentInput{SaleID: result.SaleID, Amount: 41})
	require.ErrorIs(t, err, ErrTenderOutOfRange)
}
