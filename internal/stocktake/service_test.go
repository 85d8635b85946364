package stocktake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian-retail/internal/stock"
)

// memoryRepo rides on stock.MemoryStore so a failed submit rolls back the
// session transition and the stock overwrite together.
type memoryRepo struct {
	mu       sync.Mutex
	stock    *stock.MemoryStore
	sessions map[uuid.UUID]Session
	entries  map[uuid.UUID][]Entry
}

func newMemoryRepo(stockStore *stock.MemoryStore) *memoryRepo {
	return &memoryRepo{
		stock:    stockStore,
		sessions: make(map[uuid.UUID]Session),
		entries:  make(map[uuid.UUID][]Entry),
	}
}

type memTx struct {
	repo  *memoryRepo
	stock stock.TxStore
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[uuid.UUID]Session, len(m.sessions))
	for k, v := range m.sessions {
		snapshot[k] = v
	}
	err := m.stock.WithTx(ctx, func(ctx context.Context, st stock.TxStore) error {
		return fn(ctx, &memTx{repo: m, stock: st})
	})
	if err != nil {
		m.sessions = snapshot
	}
	return err
}

func (m *memoryRepo) CreateSession(ctx context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memoryRepo) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (m *memoryRepo) SetSessionStatus(ctx context.Context, id uuid.UUID, status SessionStatus, finishedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.Status = status
	session.FinishedAt = finishedAt
	m.sessions[id] = session
	return nil
}

func (m *memoryRepo) UpsertEntry(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[entry.SessionID]
	for i, existing := range list {
		if existing.ProductID == entry.ProductID {
			list[i] = entry
			return nil
		}
	}
	m.entries[entry.SessionID] = append(list, entry)
	return nil
}

func (m *memoryRepo) ListEntries(ctx context.Context, sessionID uuid.UUID) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries[sessionID]...), nil
}

func (t *memTx) Stock() stock.TxStore { return t.stock }

func (t *memTx) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*Session, error) {
	session, ok := t.repo.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (t *memTx) SetSessionStatus(ctx context.Context, id uuid.UUID, status SessionStatus, finishedAt *time.Time) error {
	session := t.repo.sessions[id]
	session.Status = status
	session.FinishedAt = finishedAt
	t.repo.sessions[id] = session
	return nil
}

func (t *memTx) ListEntries(ctx context.Context, sessionID uuid.UUID) ([]Entry, error) {
	return append([]Entry(nil), t.repo.entries[sessionID]...), nil
}

// recordingRefresher notes which locations were recomputed.
type recordingRefresher struct {
	locations []int64
	fail      error
}

func (r *recordingRefresher) RefreshLocation(ctx context.Context, locationID int64) error {
	if r.fail != nil {
		return r.fail
	}
	r.locations = append(r.locations, locationID)
	return nil
}

const testLocation = int64(3)

func setup(t *testing.T) (*Service, *memoryRepo, *stock.MemoryStore, *recordingRefresher) {
	t.Helper()
	stockStore := stock.NewMemoryStore()
	repo := newMemoryRepo(stockStore)
	refresher := &recordingRefresher{}
	return NewService(repo, refresher, nil), repo, stockStore, refresher
}

func seed(t *testing.T, store *stock.MemoryStore, productID int64, qty int) {
	t.Helper()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx stock.TxStore) error {
		return tx.Credit(ctx, productID, testLocation, qty, stock.Ref{Module: "test"})
	})
	require.NoError(t, err)
}

func onHand(t *testing.T, store *stock.MemoryStore, productID int64) int {
	t.Helper()
	qty, err := store.Get(context.Background(), productID, testLocation)
	require.NoError(t, err)
	return qty
}

func TestSessionLifecycle(t *testing.T) {
	svc, _, _, _ := setup(t)
	session, err := svc.StartSession(context.Background(), testLocation)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, session.Status)

	require.NoError(t, svc.Pause(context.Background(), session.ID))
	// Entries are rejected while paused.
	require.ErrorIs(t, svc.RecordEntry(context.Background(), session.ID, 1, 5), ErrSessionState)

	require.NoError(t, svc.Resume(context.Background(), session.ID))
	require.NoError(t, svc.RecordEntry(context.Background(), session.ID, 1, 5))

	require.NoError(t, svc.Close(context.Background(), session.ID))
	require.ErrorIs(t, svc.Resume(context.Background(), session.ID), ErrSessionState)
	require.ErrorIs(t, svc.Submit(context.Background(), session.ID), ErrSessionState)
}

func TestRecordEntryValidation(t *testing.T) {
	svc, _, _, _ := setup(t)
	session, err := svc.StartSession(context.Background(), testLocation)
	require.NoError(t, err)

	require.ErrorIs(t, svc.RecordEntry(context.Background(), session.ID, 1, -1), ErrInvalidQuantity)
	require.Error(t, svc.RecordEntry(context.Background(), session.ID, 0, 1))
	require.ErrorIs(t, svc.RecordEntry(context.Background(), uuid.New(), 1, 1), ErrNotFound)
}

func TestRecordEntryLastCountWins(t *testing.T) {
	svc, repo, store, _ := setup(t)
	seed(t, store, 1, 10)
	session, err := svc.StartSession(context.Background(), testLocation)
	require.NoError(t, err)

	require.NoError(t, svc.RecordEntry(context.Background(), session.ID, 1, 4))
	require.NoError(t, svc.RecordEntry(context.Background(), session.ID, 1, 6))
	entries, err := repo.ListEntries(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 6, entries[0].Qty)

	require.NoError(t, svc.Submit(context.Background(), session.ID))
	require.Equal(t, 6, onHand(t, store, 1))
}

func TestSubmitZeroesUnlistedProducts(t *testing.T) {
	svc, _, store, refresher := setup(t)
	seed(t, store, 1, 10)
	seed(t, store, 2, 4)
	seed(t, store, 3, 7)

	session, err := svc.StartSession(context.Background(), testLocation)
	require.NoError(t, err)
	require.NoError(t, svc.RecordEntry(context.Background(), session.ID, 1, 8))

	require.NoError(t, svc.Submit(context.Background(), session.ID))

	// Counted product takes its counted quantity; everything else known at the
	// location was counted as absent.
	require.Equal(t, 8, onHand(t, store, 1))
	require.Equal(t, 0, onHand(t, store, 2))
	require.Equal(t, 0, onHand(t, store, 3))
	require.Equal(t, []int64{testLocation}, refresher.locations)

	// A submitted session is terminal.
	require.ErrorIs(t, svc.Submit(context.Background(), session.ID), ErrSessionState)
	require.ErrorIs(t, svc.RecordEntry(context.Background(), session.ID, 1, 2), ErrSessionState)
}

func TestSubmitFromPaused(t *testing.T) {
	svc, _, store, _ := setup(t)
	seed(t, store, 1, 10)
	session, err := svc.StartSession(context.Background(), testLocation)
	require.NoError(t, err)
	require.NoError(t, svc.RecordEntry(context.Background(), session.ID, 1, 2))
	require.NoError(t, svc.Pause(context.Background(), session.ID))

	require.NoError(t, svc.Submit(context.Background(), session.ID))
	require.Equal(t, 2, onHand(t, store, 1))
}
