package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-retail/meridian-retail/internal/catalog"
	"github.com/meridian-retail/meridian-retail/internal/kits"
	"github.com/meridian-retail/meridian-retail/internal/shared"
	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// CatalogPort abstracts catalog reads used at checkout.
type CatalogPort interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
	GetKit(ctx context.Context, id int64) (*catalog.Kit, error)
	GetKitComponents(ctx context.Context, kitID int64) ([]catalog.KitComponent, error)
	IsOfferedAt(ctx context.Context, itemID int64, kind catalog.ItemKind, locationID int64) (bool, error)
}

// IdempotencyPort guards checkout against duplicate receipt submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts committed engine operations.
type MetricsPort interface {
	CheckoutCommitted(status string)
	PaymentRecorded()
	SaleReversed()
}

// Refresher requests a kit availability recomputation for a location after a
// commit changed its stock. Failures are logged, never returned to the caller.
type Refresher interface {
	EnqueueLocationRefresh(ctx context.Context, locationID int64) error
}

// Service is the transactional sale engine: checkout, layby settlement and
// reversal all run through it.
type Service struct {
	repo      Repository
	catalog   CatalogPort
	idem      IdempotencyPort
	audit     AuditPort
	metrics   MetricsPort
	refresher Refresher
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService builds Service. Audit, metrics and refresher may be nil.
func NewService(repo Repository, catalogPort CatalogPort, idem IdempotencyPort, audit AuditPort, metrics MetricsPort, refresher Refresher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		catalog:   catalogPort,
		idem:      idem,
		audit:     audit,
		metrics:   metrics,
		refresher: refresher,
		validate:  validator.New(),
		logger:    logger,
	}
}

// resolvedLine is a cart line after catalog resolution. Kit lines carry their
// component list as recorded at checkout time.
type resolvedLine struct {
	input      CartLine
	unitPrice  float64
	name       string
	productID  *int64
	components []catalog.KitComponent
}

// Checkout commits one sale as a single unit of work. Preconditions are
// checked against row-locked stock inside the same transaction that debits it,
// so two concurrent checkouts cannot both pass availability and oversell.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (CheckoutResult, error) {
	var result CheckoutResult
	if err := s.validateCheckout(input); err != nil {
		return result, err
	}

	idemKey := "checkout:" + input.ReceiptNo
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "sales"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return result, ErrDuplicateReceipt
			}
			return result, fmt.Errorf("sales: idempotency check: %w", err)
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		customer, err := tx.GetCustomerForUpdate(ctx, input.CustomerID)
		if err != nil {
			return err
		}

		resolved, err := s.resolveLines(ctx, tx, input)
		if err != nil {
			return err
		}

		var subtotal float64
		for _, line := range resolved {
			subtotal += line.unitPrice * float64(line.input.Qty)
		}
		if input.Discount > subtotal {
			return ErrInvalidDiscount
		}
		total := subtotal - input.Discount
		// Tender may exceed the sale total only by the outstanding opening
		// balance it is about to absorb.
		if input.AmountTendered > total+customer.OpeningBalance {
			return ErrTenderOutOfRange
		}

		// Waterfall step 1: tender pays old debt first.
		remaining := input.AmountTendered
		if customer.OpeningBalance > 0 && remaining > 0 {
			if remaining >= customer.OpeningBalance {
				remaining -= customer.OpeningBalance
				if err := tx.SetCustomerOpeningBalance(ctx, customer.ID, 0); err != nil {
					return err
				}
			} else {
				if err := tx.SetCustomerOpeningBalance(ctx, customer.ID, customer.OpeningBalance-remaining); err != nil {
					return err
				}
				remaining = 0
			}
		}

		// Waterfall step 2: what is left settles the sale, or opens a layby.
		status := StatusLayby
		if remaining >= total {
			status = StatusCompleted
		}

		saleID, err := tx.InsertSale(ctx, Sale{
			ReceiptNo:   input.ReceiptNo,
			CustomerID:  input.CustomerID,
			LocationID:  input.LocationID,
			Currency:    input.Currency,
			Subtotal:    subtotal,
			Discount:    input.Discount,
			Total:       total,
			DownPayment: remaining,
			Status:      status,
		})
		if err != nil {
			return err
		}

		if err := tx.InsertSaleLines(ctx, saleID, expandLines(resolved, input.Currency)); err != nil {
			return err
		}

		var laybyID *int64
		if status == StatusLayby {
			id, err := tx.InsertLayby(ctx, Layby{
				SaleID:      saleID,
				CustomerID:  input.CustomerID,
				TotalAmount: total,
				PaidAmount:  remaining,
				Status:      LaybyActive,
			})
			if err != nil {
				return err
			}
			laybyID = &id
		}

		if remaining > 0 {
			kind := PaymentCash
			if status == StatusLayby {
				kind = PaymentLayby
			}
			if _, err := tx.InsertPayment(ctx, Payment{
				SaleID:   saleID,
				Amount:   remaining,
				Currency: input.Currency,
				PaidAt:   time.Now(),
				Kind:     kind,
			}); err != nil {
				return err
			}
		}

		// Stock leaves the building only on a fully settled sale. A layby keeps
		// its goods undeducted until the last instalment lands.
		if status == StatusCompleted {
			if err := debitResolved(ctx, tx.Stock(), resolved, input.LocationID, stockRef(input.ReceiptNo)); err != nil {
				return err
			}
		}

		result = CheckoutResult{
			SaleID:      saleID,
			LaybyID:     laybyID,
			Status:      status,
			Total:       total,
			DownPayment: remaining,
		}
		return nil
	})
	if err != nil {
		if s.idem != nil {
			if delErr := s.idem.Delete(ctx, idemKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", idemKey), slog.Any("error", delErr))
			}
		}
		return CheckoutResult{}, err
	}

	if s.metrics != nil {
		s.metrics.CheckoutCommitted(string(result.Status))
	}
	s.recordAudit(ctx, input.ActorID, "sales:checkout", "sale", result.SaleID, map[string]any{
		"receipt_no":  input.ReceiptNo,
		"location_id": input.LocationID,
		"status":      string(result.Status),
		"total":       result.Total,
	})
	if result.Status == StatusCompleted {
		s.requestRefresh(ctx, input.LocationID)
	}
	return result, nil
}

func (s *Service) validateCheckout(input CheckoutInput) error {
	if input.ReceiptNo == "" {
		return ErrEmptyReceipt
	}
	if len(input.Lines) == 0 {
		return ErrEmptyCart
	}
	for _, line := range input.Lines {
		if line.Qty <= 0 {
			return ErrInvalidQuantity
		}
	}
	if input.Discount < 0 {
		return ErrInvalidDiscount
	}
	if input.AmountTendered < 0 {
		return ErrTenderOutOfRange
	}
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("sales: invalid checkout input: %w", err)
	}
	return nil
}

// resolveLines checks membership and availability for every non-custom line
// against stock read inside the transaction. Nothing has been written yet when
// a line fails, so the whole checkout aborts clean.
func (s *Service) resolveLines(ctx context.Context, tx Tx, input CheckoutInput) ([]resolvedLine, error) {
	resolved := make([]resolvedLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		switch line.Kind {
		case LineProduct:
			offered, err := s.catalog.IsOfferedAt(ctx, line.ItemID, catalog.ItemKindProduct, input.LocationID)
			if err != nil {
				return nil, err
			}
			if !offered {
				return nil, ErrNotOffered
			}
			product, err := s.catalog.GetProduct(ctx, line.ItemID)
			if err != nil {
				return nil, err
			}
			onHand, err := tx.Stock().Get(ctx, line.ItemID, input.LocationID)
			if err != nil {
				return nil, err
			}
			if line.Qty > onHand {
				return nil, stock.ErrInsufficientStock
			}
			id := line.ItemID
			resolved = append(resolved, resolvedLine{
				input:     line,
				unitPrice: linePrice(line, product.EffectivePrice()),
				name:      lineName(line, product.Name),
				productID: &id,
			})
		case LineKit:
			offered, err := s.catalog.IsOfferedAt(ctx, line.ItemID, catalog.ItemKindKit, input.LocationID)
			if err != nil {
				return nil, err
			}
			if !offered {
				return nil, ErrNotOffered
			}
			kit, err := s.catalog.GetKit(ctx, line.ItemID)
			if err != nil {
				return nil, err
			}
			components, err := s.catalog.GetKitComponents(ctx, line.ItemID)
			if err != nil {
				return nil, err
			}
			stockMap := make(map[int64]int, len(components))
			for _, c := range components {
				onHand, err := tx.Stock().Get(ctx, c.ProductID, input.LocationID)
				if err != nil {
					return nil, err
				}
				stockMap[c.ProductID] = onHand
			}
			if line.Qty > kits.MaxBuildable(components, stockMap) {
				return nil, stock.ErrInsufficientStock
			}
			resolved = append(resolved, resolvedLine{
				input:      line,
				unitPrice:  linePrice(line, kit.EffectivePrice()),
				name:       lineName(line, kit.Name),
				components: components,
			})
		case LineCustom:
			resolved = append(resolved, resolvedLine{
				input:     line,
				unitPrice: line.UnitPrice,
				name:      lineName(line, "custom item"),
			})
		default:
			return nil, fmt.Errorf("sales: unknown line kind %q", line.Kind)
		}
	}
	return resolved, nil
}

// linePrice honours an explicit price from the till; otherwise the effective
// catalog price applies.
func linePrice(line CartLine, catalogPrice float64) float64 {
	if line.UnitPrice > 0 {
		return line.UnitPrice
	}
	return catalogPrice
}

func lineName(line CartLine, fallback string) string {
	if line.DisplayName != "" {
		return line.DisplayName
	}
	return fallback
}

// expandLines turns resolved cart lines into persisted SaleLines. A kit becomes
// one line per component with quantity scaled by the kit quantity and a zero
// unit price; the kit's price is already reflected in the sale totals.
func expandLines(resolved []resolvedLine, currency string) []SaleLine {
	var lines []SaleLine
	for _, r := range resolved {
		if len(r.components) > 0 {
			for _, c := range r.components {
				id := c.ProductID
				lines = append(lines, SaleLine{
					ProductID:   &id,
					DisplayName: r.name,
					Qty:         c.QtyRequired * r.input.Qty,
					UnitPrice:   0,
					Currency:    currency,
				})
			}
			continue
		}
		lines = append(lines, SaleLine{
			ProductID:   r.productID,
			DisplayName: r.name,
			Qty:         r.input.Qty,
			UnitPrice:   r.unitPrice,
			Currency:    currency,
		})
	}
	return lines
}

// debitResolved releases stock for a settled sale, using the same component
// math as the SaleLine expansion.
func debitResolved(ctx context.Context, store stock.TxStore, resolved []resolvedLine, locationID int64, ref stock.Ref) error {
	for _, r := range resolved {
		switch {
		case len(r.components) > 0:
			for _, c := range r.components {
				if err := store.Debit(ctx, c.ProductID, locationID, c.QtyRequired*r.input.Qty, ref); err != nil {
					return err
				}
			}
		case r.productID != nil:
			if err := store.Debit(ctx, *r.productID, locationID, r.input.Qty, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPayment applies one instalment to an open layby. When the instalment
// settles the remaining balance the layby and sale both transition to
// completed and the recorded sale lines are debited, exactly once.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (*Sale, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("sales: invalid payment input: %w", err)
	}

	var settledLocation int64
	var out *Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusLayby {
			return ErrNotLayby
		}
		layby, err := tx.GetLaybyBySale(ctx, sale.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrPartialState
			}
			return err
		}
		if layby.Status != LaybyActive {
			return ErrNotLayby
		}
		outstanding := layby.TotalAmount - layby.PaidAmount
		if input.Amount > outstanding {
			return ErrTenderOutOfRange
		}

		if _, err := tx.InsertPayment(ctx, Payment{
			SaleID:   sale.ID,
			Amount:   input.Amount,
			Currency: sale.Currency,
			PaidAt:   time.Now(),
			Kind:     PaymentLayby,
		}); err != nil {
			return err
		}

		paid := layby.PaidAmount + input.Amount
		if paid < layby.TotalAmount {
			if err := tx.UpdateLaybyPaid(ctx, layby.ID, paid, LaybyActive); err != nil {
				return err
			}
			out = sale
			return nil
		}

		if err := tx.UpdateLaybyPaid(ctx, layby.ID, paid, LaybyCompleted); err != nil {
			return err
		}
		if err := tx.UpdateSaleStatus(ctx, sale.ID, StatusCompleted); err != nil {
			return err
		}
		lines, err := tx.GetSaleLines(ctx, sale.ID)
		if err != nil {
			return err
		}
		ref := stockRef(sale.ReceiptNo)
		for _, line := range lines {
			if line.ProductID == nil {
				continue
			}
			if err := tx.Stock().Debit(ctx, *line.ProductID, sale.LocationID, line.Qty, ref); err != nil {
				return err
			}
		}
		settledLocation = sale.LocationID
		sale.Status = StatusCompleted
		out = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentRecorded()
	}
	s.recordAudit(ctx, input.ActorID, "sales:payment", "sale", input.SaleID, map[string]any{
		"amount": input.Amount,
		"status": string(out.Status),
	})
	if settledLocation != 0 {
		s.requestRefresh(ctx, settledLocation)
	}
	return out, nil
}

// GetSale loads a sale header.
func (s *Service) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// GetSaleLines loads the recorded lines of a sale.
func (s *Service) GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	return s.repo.GetSaleLines(ctx, saleID)
}

// GetLayby loads a layby.
func (s *Service) GetLayby(ctx context.Context, id int64) (*Layby, error) {
	return s.repo.GetLayby(ctx, id)
}

// ListPayments lists the payment ledger of a sale.
func (s *Service) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, saleID)
}

func stockRef(receiptNo string) stock.Ref {
	return stock.Ref{Module: "sales", ID: receiptNo}
}

func (s *Service) requestRefresh(ctx context.Context, locationID int64) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.EnqueueLocationRefresh(ctx, locationID); err != nil {
		s.logger.Warn("enqueue kit availability refresh", slog.Int64("location_id", locationID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
