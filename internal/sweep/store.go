package sweep

import (
	"sort"
	"sync"
)

// Store is the thread-safe results table keyed by identity. Rows are
// never deleted.
type Store struct {
	mu   sync.RWMutex
	rows map[string]Row
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{rows: make(map[string]Row)}
}

// Upsert inserts row or replaces the existing row with the same identity
// in full.
func (s *Store) Upsert(row Row) {
	c := row.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[c.Identity.Key()] = c
}

// Load hydrates the store from persisted rows, upserting each one under a
// single critical section.
func (s *Store) Load(rows []Row) {
	clones := make([]Row, len(rows))
	for i, r := range rows {
		clones[i] = r.Clone()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range clones {
		s.rows[c.Identity.Key()] = c
	}
}

// Get returns a copy of the row for id.
func (s *Store) Get(id Identity) (Row, bool) {
	s.mu.RLock()
	r, ok := s.rows[id.Key()]
	s.mu.RUnlock()
	if !ok {
		return Row{}, false
	}
	return r.Clone(), true
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Snapshot returns a point-in-time copy of every row ordered by
// enumeration sequence, then identity.
func (s *Store) Snapshot() []Row {
	s.mu.RLock()
	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()
	sortRows(out)
	return out
}

// Counts returns the number of rows per status.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, len(Statuses))
	for _, r := range s.rows {
		counts[r.Status]++
	}
	return counts
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Seq != rows[j].Seq {
			return rows[i].Seq < rows[j].Seq
		}
		return rows[i].Identity.Key() < rows[j].Identity.Key()
	})
}
