package profile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordStore defines the storage operations the Manager needs.
// Implemented by storage.Store and storage.PostgresStore.
type RecordStore interface {
	SaveProfile(r Record) error
	GetProfile(id string) (Record, error)
	ListProfiles(limit, offset int) ([]Record, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager creates and reads creator profiles.
type Manager struct {
	store RecordStore
	clock Clock
	newID func() string
}

// NewManager creates a Manager that assigns random UUIDs.
func NewManager(store RecordStore) *Manager {
	return &Manager{
		store: store,
		clock: realClock{},
		newID: uuid.NewString,
	}
}

// NewManagerWithClock creates a Manager with a custom clock and id source (for testing).
func NewManagerWithClock(store RecordStore, clock Clock, newID func() string) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		newID: newID,
	}
}

// Create validates d, assigns an id and persists the record.
// Validation failures are returned as *InvalidRecordError.
func (m *Manager) Create(d Draft) (Record, error) {
	r, err := NewRecord(d, m.newID(), m.clock.Now())
	if err != nil {
		return Record{}, err
	}
	if err := m.store.SaveProfile(r); err != nil {
		return Record{}, fmt.Errorf("saving profile: %w", err)
	}
	return r, nil
}

// Get returns a single stored profile.
func (m *Manager) Get(id string) (Record, error) {
	return m.store.GetProfile(id)
}

// List returns stored profiles in creation order.
func (m *Manager) List(limit, offset int) ([]Record, error) {
	rs, err := m.store.ListProfiles(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return rs, nil
}

// Local builds in-memory records from drafts without persisting them.
// Used for session-scoped profiles that only live in one feed.
func (m *Manager) Local(drafts []Draft) ([]Record, error) {
	out := make([]Record, 0, len(drafts))
	for i, d := range drafts {
		r, err := NewRecord(d, m.newID(), m.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
