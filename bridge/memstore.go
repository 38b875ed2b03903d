package bridge

import (
	"sort"
	"sync"
)

// MemStore is an in-memory Store. Writes made inside Update are staged and
// applied only when the closure succeeds.
type MemStore struct {
	mtx     sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	s := &MemStore{buckets: make(map[string]map[string][]byte, len(allBuckets))}
	for _, b := range allBuckets {
		s.buckets[string(b)] = make(map[string][]byte)
	}
	return s
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// View implements Store.
func (s *MemStore) View(fn func(*Tx) error) error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return fn(&Tx{kv: &memTx{store: s}})
}

// Update implements Store.
func (s *MemStore) Update(fn func(*Tx) error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	mt := &memTx{store: s, staged: make(map[string]map[string][]byte)}
	if err := fn(&Tx{kv: mt}); err != nil {
		return err
	}
	for b, writes := range mt.staged {
		bucket := s.buckets[b]
		for k, v := range writes {
			if v == nil {
				delete(bucket, k)
			} else {
				bucket[k] = v
			}
		}
	}
	return nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

// memTx reads through staged writes to the committed maps. A nil staged
// value is a deletion.
type memTx struct {
	store  *MemStore
	staged map[string]map[string][]byte
}

func (m *memTx) get(bucket, key []byte) []byte {
	if writes, ok := m.staged[string(bucket)]; ok {
		if v, ok := writes[string(key)]; ok {
			return v
		}
	}
	return m.store.buckets[string(bucket)][string(key)]
}

func (m *memTx) put(bucket, key, value []byte) error {
	if m.staged == nil {
		return errReadOnly
	}
	writes, ok := m.staged[string(bucket)]
	if !ok {
		writes = make(map[string][]byte)
		m.staged[string(bucket)] = writes
	}
	if value != nil {
		value = append([]byte(nil), value...)
	}
	writes[string(key)] = value
	return nil
}

func (m *memTx) forEach(bucket []byte, fn func(k, v []byte) error) error {
	merged := make(map[string][]byte)
	for k, v := range m.store.buckets[string(bucket)] {
		merged[k] = v
	}
	for k, v := range m.staged[string(bucket)] {
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}
