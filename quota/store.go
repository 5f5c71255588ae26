/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"hash/fnv"
	"sync"
)

// Store keeps caller records.
//
// Update must run fn atomically with respect to the key: no other operation on the same key
// may interleave between reading the record and storing the result.
// fn receives the stored record (or a zero Record if found is false) and mutates it in place.
// If fn returns false, the record is not stored (and an existing one is deleted).
// A shared backend would implement Update as a single server-side atomic operation.
type Store interface {
	Get(key string) (Record, bool)
	Update(key string, fn func(rec *Record, found bool) bool)
	Delete(key string) bool
	Len() int
}

// DefaultMapStoreShards is the number of shards used by NewMapStore.
const DefaultMapStoreShards = 32

type mapStoreShard struct {
	mu      sync.Mutex
	records map[string]*Record
}

// MapStore is an unbounded in-memory Store.
// Keys are distributed over a fixed number of shards, each guarded by its own mutex.
// Records are never evicted, so the memory grows with the number of distinct callers.
type MapStore struct {
	shards []*mapStoreShard
}

var _ Store = (*MapStore)(nil)

// NewMapStore creates a new MapStore with DefaultMapStoreShards shards.
func NewMapStore() *MapStore {
	return NewMapStoreWithShards(DefaultMapStoreShards)
}

// NewMapStoreWithShards creates a new MapStore with the given number of shards (at least 1).
func NewMapStoreWithShards(shards int) *MapStore {
	if shards < 1 {
		shards = 1
	}
	s := &MapStore{shards: make([]*mapStoreShard, shards)}
	for i := range s.shards {
		s.shards[i] = &mapStoreShard{records: make(map[string]*Record)}
	}
	return s
}

func (s *MapStore) shard(key string) *mapStoreShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get returns a copy of the record stored for the key.
func (s *MapStore) Get(key string) (Record, bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if rec, ok := sh.records[key]; ok {
		return *rec, true
	}
	return Record{}, false
}

// Update atomically reads, modifies and stores the record for the key.
func (s *MapStore) Update(key string, fn func(rec *Record, found bool) bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, found := sh.records[key]
	if !found {
		rec = &Record{}
	}
	keep := fn(rec, found)
	switch {
	case keep && !found:
		sh.records[key] = rec
	case !keep && found:
		delete(sh.records, key)
	}
}

// Delete removes the record for the key.
func (s *MapStore) Delete(key string) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.records[key]; !ok {
		return false
	}
	delete(sh.records, key)
	return true
}

// Len returns the number of stored records.
func (s *MapStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}
