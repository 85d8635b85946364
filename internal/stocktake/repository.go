package stocktake

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// Tx is the unit-of-work surface for submit: the bulk stock overwrite and the
// session transition commit together or not at all.
type Tx interface {
	Stock() stock.TxStore

	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*Session, error)
	SetSessionStatus(ctx context.Context, id uuid.UUID, status SessionStatus, finishedAt *time.Time) error
	ListEntries(ctx context.Context, sessionID uuid.UUID) ([]Entry, error)
}

// Repository persists count sessions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	SetSessionStatus(ctx context.Context, id uuid.UUID, status SessionStatus, finishedAt *time.Time) error
	UpsertEntry(ctx context.Context, entry Entry) error
	ListEntries(ctx context.Context, sessionID uuid.UUID) ([]Entry, error)
}
