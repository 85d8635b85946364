package stocktake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// AvailabilityPort recomputes the materialized kit availability for a location
// after its stock has been overwritten.
type AvailabilityPort interface {
	RefreshLocation(ctx context.Context, locationID int64) error
}

// Service runs the count session lifecycle and the submit reconciliation.
type Service struct {
	repo         Repository
	availability AvailabilityPort
	logger       *slog.Logger
}

// NewService builds Service.
func NewService(repo Repository, availability AvailabilityPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, availability: availability, logger: logger}
}

// StartSession opens a new count for one location.
func (s *Service) StartSession(ctx context.Context, locationID int64) (*Session, error) {
	if locationID == 0 {
		return nil, errors.New("stocktake: location required")
	}
	session := Session{
		ID:         uuid.New(),
		LocationID: locationID,
		Status:     StatusOpen,
		StartedAt:  time.Now(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("stocktake: create session: %w", err)
	}
	return &session, nil
}

// RecordEntry stores one counted quantity. Re-counting a product replaces the
// earlier figure.
func (s *Service) RecordEntry(ctx context.Context, sessionID uuid.UUID, productID int64, qty int) error {
	if productID == 0 {
		return errors.New("stocktake: product required")
	}
	if qty < 0 {
		return ErrInvalidQuantity
	}
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != StatusOpen {
		return ErrSessionState
	}
	return s.repo.UpsertEntry(ctx, Entry{SessionID: sessionID, ProductID: productID, Qty: qty})
}

// Pause suspends an open session.
func (s *Service) Pause(ctx context.Context, sessionID uuid.UUID) error {
	return s.transition(ctx, sessionID, StatusPaused, nil)
}

// Resume reopens a paused session.
func (s *Service) Resume(ctx context.Context, sessionID uuid.UUID) error {
	return s.transition(ctx, sessionID, StatusOpen, nil)
}

// Close abandons the session. Stock stays as it was.
func (s *Service) Close(ctx context.Context, sessionID uuid.UUID) error {
	now := time.Now()
	return s.transition(ctx, sessionID, StatusClosed, &now)
}

func (s *Service) transition(ctx context.Context, sessionID uuid.UUID, to SessionStatus, finishedAt *time.Time) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !canTransition(session.Status, to) {
		return ErrSessionState
	}
	return s.repo.SetSessionStatus(ctx, sessionID, to, finishedAt)
}

// Submit reconciles the location against the count: every counted product is
// set to its counted quantity and every other product previously known at the
// location is set to zero. An unlisted product was counted as absent, not
// skipped. The overwrite and the session transition commit together; the kit
// availability cache is recomputed before Submit returns so no stale figure
// survives the reconciliation.
func (s *Service) Submit(ctx context.Context, sessionID uuid.UUID) error {
	var locationID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !canTransition(session.Status, StatusSubmitted) {
			return ErrSessionState
		}
		entries, err := tx.ListEntries(ctx, sessionID)
		if err != nil {
			return err
		}
		ref := stock.Ref{Module: "stocktake", ID: sessionID.String()}
		counted := make(map[int64]struct{}, len(entries))
		for _, entry := range entries {
			counted[entry.ProductID] = struct{}{}
			if err := tx.Stock().SetAbsolute(ctx, entry.ProductID, session.LocationID, entry.Qty, ref); err != nil {
				return err
			}
		}
		known, err := tx.Stock().KnownProductIDs(ctx, session.LocationID)
		if err != nil {
			return err
		}
		for _, productID := range known {
			if _, ok := counted[productID]; ok {
				continue
			}
			if err := tx.Stock().SetAbsolute(ctx, productID, session.LocationID, 0, ref); err != nil {
				return err
			}
		}
		now := time.Now()
		if err := tx.SetSessionStatus(ctx, sessionID, StatusSubmitted, &now); err != nil {
			return err
		}
		locationID = session.LocationID
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.availability.RefreshLocation(ctx, locationID); err != nil {
		return fmt.Errorf("stocktake: refresh kit availability for location %d: %w", locationID, err)
	}
	return nil
}

// GetSession loads one session with its entries.
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, []Entry, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.repo.ListEntries(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, entries, nil
}
