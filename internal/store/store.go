// Package store implements the per-node share store (C2): an in-memory
// ClientId -> ShareRecord mapping guarded by a single reader/writer
// lock, plus a refresh-in-progress flag with release/acquire semantics
// so phase transitions are visible to readers without taking the
// mapping lock.
package store

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shareward/shareward/internal/sharing"
)

// ErrNotFound is returned by Get when no record exists for a ClientId.
var ErrNotFound = errors.New("store: client id not found")

// Store is a process-local container for this node's share records. The
// mapping is written only from the local replicated log's apply loop
// (see package cluster), so contention is bounded to one writer at a
// time; reads may come from many concurrent ingress handlers.
type Store struct {
	mu   sync.RWMutex
	data map[sharing.ClientId]sharing.ShareRecord

	refreshing atomic.Bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data: make(map[sharing.ClientId]sharing.ShareRecord),
	}
}

// Get returns the record for id, or ErrNotFound if none is present.
func (s *Store) Get(id sharing.ClientId) (sharing.ShareRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return sharing.ShareRecord{}, ErrNotFound
	}
	return rec, nil
}

// Insert overwrites the record for id. Callers are responsible for
// invoking this only from the log adapter's apply loop so that writes
// remain serialized cluster-wide.
func (s *Store) Insert(id sharing.ClientId, rec sharing.ShareRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = rec
}

// Record pairs a ClientId with its record, for use by Iter.
type Record struct {
	ClientId sharing.ClientId
	ShareRecord sharing.ShareRecord
}

// Iter returns a point-in-time copy of every record in the store, sorted
// by ClientId. It is used by Snapshot and by the refresh coordinator on
// the leader, which needs a consistent view to drive one refresh round; copying
// under the read lock avoids holding it for the duration of the round.
func (s *Store) Iter() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.data))
	for id, rec := range s.data {
		out = append(out, Record{ClientId: id, ShareRecord: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientId < out[j].ClientId })
	return out
}

// Len reports the number of records currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// SetRefreshing sets the refresh-in-progress flag. It uses an atomic
// rather than the mapping lock so that readers on the ingress path can
// check refresh phase without contending with writers.
func (s *Store) SetRefreshing(v bool) {
	s.refreshing.Store(v)
}

// Refreshing reports whether this node is currently in a refresh window.
func (s *Store) Refreshing() bool {
	return s.refreshing.Load()
}
