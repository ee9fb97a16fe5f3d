// Package session keeps one swipe engine per browsing client.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/creatorswipe/internal/feed"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/swipe"
)

const (
	DefaultTTL = 30 * time.Minute
	DefaultMax = 1000
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrLimitReached = errors.New("session limit reached")
)

// Loader builds a feed from a session's local records.
type Loader interface {
	Load(ctx context.Context, local []profile.Record) feed.Feed
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	TTL    time.Duration
	Max    int
	Engine []swipe.Option
	// Sink returns the decision sink for a new session. nil discards decisions.
	Sink func(sessionID string) swipe.Sink
	Now  func() time.Time
}

type entry struct {
	mu       sync.Mutex
	engine   *swipe.Engine
	local    []profile.Record
	lastUsed time.Time
	// gen counts feed rebuilds; a load is applied only if no later
	// rebuild started while it ran.
	gen uint64
}

// Manager owns all live sessions. Each session's engine is only touched
// while holding that session's lock.
type Manager struct {
	loader Loader
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(loader Loader, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		loader:   loader,
		opts:     opts,
		logger:   slog.Default(),
		sessions: make(map[string]*entry),
	}
}

func (m *Manager) WithLogger(l *slog.Logger) *Manager {
	m.logger = l
	return m
}

// Create loads a feed for local and starts a session on it. Local records
// come first in the feed.
func (m *Manager) Create(ctx context.Context, local []profile.Record) (string, swipe.Snapshot, error) {
	if !m.reserve() {
		return "", swipe.Snapshot{}, ErrLimitReached
	}

	f := m.loader.Load(ctx, local)
	id := uuid.NewString()
	var sink swipe.Sink
	if m.opts.Sink != nil {
		sink = m.opts.Sink(id)
	}
	e := &entry{
		engine:   swipe.New(f, sink, m.opts.Engine...),
		local:    cloneRecords(local),
		lastUsed: m.opts.Now(),
	}

	m.mu.Lock()
	if len(m.sessions) >= m.opts.Max {
		m.mu.Unlock()
		return "", swipe.Snapshot{}, ErrLimitReached
	}
	m.sessions[id] = e
	m.mu.Unlock()

	m.logger.Debug("session created", "session_id", id, "feed_size", len(f), "local_count", len(local))
	return id, e.engine.Snapshot(), nil
}

// reserve reports whether there is room for one more session, evicting
// expired sessions first when the table is full.
func (m *Manager) reserve() bool {
	m.mu.Lock()
	full := len(m.sessions) >= m.opts.Max
	m.mu.Unlock()
	if !full {
		return true
	}
	m.Sweep()
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions) < m.opts.Max
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Do runs fn with exclusive access to the session's engine.
func (m *Manager) Do(id string, fn func(e *swipe.Engine) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsed = m.opts.Now()
	return fn(e.engine)
}

// Get returns the current snapshot of a session.
func (m *Manager) Get(id string) (swipe.Snapshot, error) {
	var snap swipe.Snapshot
	err := m.Do(id, func(e *swipe.Engine) error {
		snap = e.Snapshot()
		return nil
	})
	return snap, err
}

// Refresh re-fetches the listing and rebuilds the session's feed. The fetch
// runs without holding the session lock.
func (m *Manager) Refresh(ctx context.Context, id string) (swipe.Snapshot, error) {
	return m.rebuild(ctx, id, nil)
}

// AddLocal appends a record to the session's local set and rebuilds the feed.
func (m *Manager) AddLocal(ctx context.Context, id string, r profile.Record) (swipe.Snapshot, error) {
	return m.rebuild(ctx, id, &r)
}

// rebuild loads a fresh feed for the session, optionally adding a local
// record first. When rebuilds overlap only the most recently started one
// replaces the feed; older loads return the session's current snapshot.
func (m *Manager) rebuild(ctx context.Context, id string, add *profile.Record) (swipe.Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return swipe.Snapshot{}, err
	}
	e.mu.Lock()
	if add != nil {
		e.local = append(e.local, add.Clone())
	}
	e.gen++
	gen := e.gen
	local := cloneRecords(e.local)
	e.mu.Unlock()

	f := m.loader.Load(ctx, local)

	if _, err := m.lookup(id); err != nil {
		return swipe.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsed = m.opts.Now()
	if e.gen != gen {
		m.logger.Debug("stale feed load dropped", "session_id", id, "feed_size", len(f))
		return e.engine.Snapshot(), nil
	}
	e.engine.SetFeed(f)
	return e.engine.Snapshot(), nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	cutoff := m.opts.Now().Add(-m.opts.TTL)

	m.mu.Lock()
	candidates := make(map[string]*entry, len(m.sessions))
	for id, e := range m.sessions {
		candidates[id] = e
	}
	m.mu.Unlock()

	var expired []string
	for id, e := range candidates {
		e.mu.Lock()
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}
	if len(expired) == 0 {
		return 0
	}

	m.mu.Lock()
	for _, id := range expired {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	m.logger.Debug("sessions expired", "count", len(expired))
	return len(expired)
}

// Run evicts idle sessions periodically until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := min(m.opts.TTL/2, time.Minute)
	ticker := time.NewTicker(max(interval, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func cloneRecords(rs []profile.Record) []profile.Record {
	out := make([]profile.Record, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
