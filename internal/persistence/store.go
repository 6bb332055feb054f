// Package persistence defines the cache's pluggable write-behind
// durability boundary and ships a no-op and an in-memory implementation.
// No durable backend (disk, database, object store) is provided here —
// wiring one in is left to the embedding application.
package persistence

import (
	"sync"

	"github.com/abdoElHodaky/algotrade/pkg/clock"
)

// Entry is one durable cache record: the keyed payload written through
// from a cache mutation, along with bookkeeping the store may use for
// eviction or diagnostics.
type Entry struct {
	Key         string
	DataType    string
	Data        []byte
	Timestamp   clock.UnixNanos
	AccessCount uint64
}

// Store is the durability boundary a cache writes through to. All
// methods must be safe for concurrent use.
type Store interface {
	// WriteBatch persists entries, replacing any existing record sharing
	// a key.
	WriteBatch(entries []Entry) error
	// ReadByKey returns the persisted entry for key, or ok=false if none
	// exists.
	ReadByKey(key string) (entry Entry, ok bool, err error)
	// Flush forces any buffered writes to be durable before returning.
	Flush() error
}

// NoopStore discards every write. It is the default Store for
// deployments that want the cache's in-process behavior without a
// durability backend.
type NoopStore struct{}

var _ Store = NoopStore{}

func (NoopStore) WriteBatch([]Entry) error                  { return nil }
func (NoopStore) ReadByKey(string) (Entry, bool, error)      { return Entry{}, false, nil }
func (NoopStore) Flush() error                               { return nil }

// MemoryStore is an in-process Store backed by a map, useful for tests
// and for single-process deployments that want write-through
// durability without an external dependency.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) WriteBatch(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.Key] = e
	}
	return nil
}

func (s *MemoryStore) ReadByKey(key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

// Flush is a no-op: MemoryStore's writes are already durable the
// instant WriteBatch returns.
func (s *MemoryStore) Flush() error { return nil }

// Len reports how many entries are currently stored, for tests and
// diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
