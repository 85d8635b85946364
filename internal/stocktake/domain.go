package stocktake

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a count session.
type SessionStatus string

const (
	// StatusOpen accepts entries.
	StatusOpen SessionStatus = "OPEN"
	// StatusPaused suspends entry recording; the session can reopen.
	StatusPaused SessionStatus = "PAUSED"
	// StatusClosed abandons the session without touching stock. Terminal.
	StatusClosed SessionStatus = "CLOSED"
	// StatusSubmitted means the count has overwritten stock. Terminal.
	StatusSubmitted SessionStatus = "SUBMITTED"
)

// Session is one physical count of a single location.
type Session struct {
	ID         uuid.UUID     `json:"id"`
	LocationID int64         `json:"location_id"`
	Status     SessionStatus `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Entry is one counted quantity. The last count recorded for a product wins.
type Entry struct {
	SessionID uuid.UUID `json:"session_id"`
	ProductID int64     `json:"product_id"`
	Qty       int       `json:"qty"`
}

var (
	// ErrNotFound indicates a missing session.
	ErrNotFound = errors.New("stocktake: session not found")
	// ErrSessionState rejects an operation the session's state does not allow.
	ErrSessionState = errors.New("stocktake: operation not allowed in current session state")
	// ErrInvalidQuantity rejects negative counted quantities.
	ErrInvalidQuantity = errors.New("stocktake: counted quantity must be >= 0")
)

// canTransition encodes open -> (paused <-> open) -> closed|submitted.
func canTransition(from, to SessionStatus) bool {
	switch from {
	case StatusOpen:
		return to == StatusPaused || to == StatusClosed || to == StatusSubmitted
	case StatusPaused:
		return to == StatusOpen || to == StatusClosed || to == StatusSubmitted
	default:
		return false
	}
}
