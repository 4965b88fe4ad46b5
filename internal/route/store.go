package route

import "sync/atomic"

// Store publishes the current routing table to concurrent readers. Sessions
// load a snapshot per resolution; a reload swaps in a fresh table without
// blocking in-flight resolutions.
type Store struct {
	table atomic.Pointer[Table]
}

// NewStore creates a Store publishing the given table.
func NewStore(t *Table) *Store {
	s := &Store{}
	s.table.Store(t)
	return s
}

// Load returns the current table snapshot.
func (s *Store) Load() *Table {
	return s.table.Load()
}

// Swap atomically replaces the published table.
func (s *Store) Swap(t *Table) {
	s.table.Store(t)
}
