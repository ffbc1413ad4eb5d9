package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps the full Store contract, version bookkeeping included,
// in process memory. It backs the test suites and local development.
type MemoryStore struct {
	mu      sync.Mutex
	players map[string]PlayerState
	audit   []auditRecord
}

type auditRecord struct {
	PlayerID string
	Entry    AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{players: make(map[string]PlayerState)}
}

func (m *MemoryStore) Load(_ context.Context, playerID string) (PlayerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.players[playerID]
	if !ok {
		return PlayerState{}, ErrNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Create(_ context.Context, state PlayerState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[state.PlayerID]; ok {
		return false, nil
	}
	st := state.Clone()
	if st.Version == 0 {
		st.Version = 1
	}
	m.players[state.PlayerID] = st
	return true, nil
}

func (m *MemoryStore) Save(_ context.Context, state PlayerState, expectedVersion int64, audit ...AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.players[state.PlayerID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	st := state.Clone()
	st.Version = expectedVersion + 1
	m.players[state.PlayerID] = st
	for _, e := range audit {
		m.audit = append(m.audit, auditRecord{PlayerID: state.PlayerID, Entry: e})
	}
	return nil
}

func (m *MemoryStore) ForEach(_ context.Context, fn func(PlayerState) error) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.players))
	for id := range m.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snapshot := make([]PlayerState, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, m.players[id].Clone())
	}
	m.mu.Unlock()

	for _, st := range snapshot {
		if err := fn(st); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[playerID]; !ok {
		return ErrNotFound
	}
	delete(m.players, playerID)
	return nil
}

// AuditEntries returns journal rows for a player in append order.
func (m *MemoryStore) AuditEntries(playerID string) []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEntry
	for _, rec := range m.audit {
		if rec.PlayerID == playerID {
			out = append(out, rec.Entry)
		}
	}
	return out
}
