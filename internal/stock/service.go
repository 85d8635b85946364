package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-retail/meridian-retail/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock operations outside of checkout.
type Service struct {
	store Store
	audit AuditPort
}

// NewService builds Service.
func NewService(store Store, audit AuditPort) *Service {
	return &Service{store: store, audit: audit}
}

// Available returns the on-hand quantity for a product at a location.
func (s *Service) Available(ctx context.Context, productID, locationID int64) (int, error) {
	if productID == 0 || locationID == 0 {
		return 0, errors.New("stock: product and location required")
	}
	return s.store.Get(ctx, productID, locationID)
}

// ReceiveInput describes an inbound credit (goods received, returns).
type ReceiveInput struct {
	ProductID  int64
	LocationID int64
	Qty        int
	Note       string
	ActorID    int64
}

// Receive credits stock at a location.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) error {
	if input.ProductID == 0 || input.LocationID == 0 {
		return errors.New("stock: product and location required")
	}
	if input.Qty <= 0 {
		return ErrInvalidQuantity
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return tx.Credit(ctx, input.ProductID, input.LocationID, input.Qty, Ref{Module: "stock", Note: input.Note})
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, input.ActorID, "stock:receive", input.ProductID, map[string]any{
		"location_id": input.LocationID,
		"qty":         input.Qty,
		"note":        input.Note,
	})
	return nil
}

// TransferInput describes a stock move between two locations.
type TransferInput struct {
	ProductID   int64
	SrcLocation int64
	DstLocation int64
	Qty         int
	Note        string
	ActorID     int64
}

// Transfer moves stock between locations as one atomic debit/credit pair.
func (s *Service) Transfer(ctx context.Context, input TransferInput) error {
	if input.ProductID == 0 || input.SrcLocation == 0 || input.DstLocation == 0 {
		return errors.New("stock: product and locations required")
	}
	if input.SrcLocation == input.DstLocation {
		return errors.New("stock: source and destination location must differ")
	}
	if input.Qty <= 0 {
		return ErrInvalidQuantity
	}
	ref := Ref{Module: "transfer", Note: input.Note}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		out := ref
		out.Note = fmt.Sprintf("transfer to %d: %s", input.DstLocation, input.Note)
		if err := tx.Debit(ctx, input.ProductID, input.SrcLocation, input.Qty, out); err != nil {
			return err
		}
		in := ref
		in.Note = fmt.Sprintf("transfer from %d: %s", input.SrcLocation, input.Note)
		return tx.Credit(ctx, input.ProductID, input.DstLocation, input.Qty, in)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, input.ActorID, "stock:transfer", input.ProductID, map[string]any{
		"src_location": input.SrcLocation,
		"dst_location": input.DstLocation,
		"qty":          input.Qty,
	})
	return nil
}

// Movements lists the ledger for one product at one location.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID == 0 || filter.LocationID == 0 {
		return nil, errors.New("stock: product and location required")
	}
	return s.store.Movements(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_entry",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
	})
}
