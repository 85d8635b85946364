package sales

import (
	"context"
	"errors"

	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// DeleteSale reverses one committed sale: stock is restored from the recorded
// sale lines and all dependent rows are removed in dependency order. Calling
// it again for an already-deleted sale is a no-op, never a double credit.
func (s *Service) DeleteSale(ctx context.Context, saleID, actorID int64) error {
	var location int64
	var reversed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if err := reverseSale(ctx, tx, sale); err != nil {
			return err
		}
		location = sale.LocationID
		reversed = sale.Status == StatusCompleted
		return nil
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SaleReversed()
	}
	s.recordAudit(ctx, actorID, "sales:delete_sale", "sale", saleID, nil)
	if reversed {
		s.requestRefresh(ctx, location)
	}
	return nil
}

// DeleteLayby reverses the sale linked to a layby. A layby row without its
// sale is a partially deleted record and aborts with ErrPartialState.
func (s *Service) DeleteLayby(ctx context.Context, laybyID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		layby, err := tx.GetLayby(ctx, laybyID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		sale, err := tx.GetSaleForUpdate(ctx, layby.SaleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrPartialState
			}
			return err
		}
		return reverseSale(ctx, tx, sale)
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SaleReversed()
	}
	s.recordAudit(ctx, actorID, "sales:delete_layby", "layby", laybyID, nil)
	return nil
}

// DeleteCustomer reverses every layby and sale owned by the customer, then
// removes the customer row, all inside one transaction.
func (s *Service) DeleteCustomer(ctx context.Context, customerID, actorID int64) error {
	touched := map[int64]struct{}{}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetCustomerForUpdate(ctx, customerID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		laybyIDs, err := tx.ListLaybyIDsByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		for _, laybyID := range laybyIDs {
			layby, err := tx.GetLayby(ctx, laybyID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			sale, err := tx.GetSaleForUpdate(ctx, layby.SaleID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return ErrPartialState
				}
				return err
			}
			if err := reverseSale(ctx, tx, sale); err != nil {
				return err
			}
			touched[sale.LocationID] = struct{}{}
		}
		saleIDs, err := tx.ListSaleIDsByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		for _, saleID := range saleIDs {
			sale, err := tx.GetSaleForUpdate(ctx, saleID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			if err := reverseSale(ctx, tx, sale); err != nil {
				return err
			}
			touched[sale.LocationID] = struct{}{}
		}
		return tx.DeleteCustomerRow(ctx, customerID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "sales:delete_customer", "customer", customerID, nil)
	for locationID := range touched {
		s.requestRefresh(ctx, locationID)
	}
	return nil
}

// reverseSale restores stock from the recorded lines and deletes the sale's
// rows. Quantities come from the lines as written at checkout, never from the
// current kit definition, so a kit redesigned since the sale still reverses
// exactly. Only completed sales credit stock back; a layby never debited it.
func reverseSale(ctx context.Context, tx Tx, sale *Sale) error {
	lines, err := tx.GetSaleLines(ctx, sale.ID)
	if err != nil {
		return err
	}
	if sale.Status == StatusCompleted {
		ref := stock.Ref{Module: "sales", ID: sale.ReceiptNo, Note: "reversal"}
		for _, line := range lines {
			if line.ProductID == nil {
				continue
			}
			if err := tx.Stock().Credit(ctx, *line.ProductID, sale.LocationID, line.Qty, ref); err != nil {
				return err
			}
		}
	}
	if err := tx.DeletePayments(ctx, sale.ID); err != nil {
		return err
	}
	if err := tx.DeleteSaleLines(ctx, sale.ID); err != nil {
		return err
	}
	if err := tx.DeleteLaybyBySale(ctx, sale.ID); err != nil {
		return err
	}
	return tx.DeleteSaleRow(ctx, sale.ID)
}
