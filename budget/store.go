package budget

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoRecord is returned by Store.Load when no ledger has been persisted.
var ErrNoRecord = errors.New("budget: no ledger record")

// Store is the ledger persistence hook. The gate writes the running daily
// total through after every recorded cost and reads it back once at
// startup. Persistence across restarts and timezone policy are the
// store's concern; the gate only hands it a day and a total.
type Store interface {
	// Load returns the persisted day and spend total.
	// Returns ErrNoRecord when nothing has been saved yet.
	Load(ctx context.Context) (day time.Time, spend float64, err error)

	// Save persists the spend total for the given day, replacing any
	// previous record.
	Save(ctx context.Context, day time.Time, spend float64) error
}

// MemoryStore is an in-process Store for tests and single-process use.
type MemoryStore struct {
	mu    sync.Mutex
	day   time.Time
	spend float64
	saved bool
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (time.Time, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return time.Time{}, 0, ErrNoRecord
	}
	return m.day, m.spend, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, day time.Time, spend float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.day = day
	m.spend = spend
	m.saved = true
	return nil
}
