// Package memory provides the run-scoped execution memory: a key->value
// registry of values observed in prior responses. Keys are response field
// names. The registry only grows during a run and values never expire.
package memory

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoValue is returned by Get when no value is registered under a key.
var ErrNoValue = errors.New("memory: no value registered")

// Entry is one registered value with its provenance.
type Entry struct {
	// Value is the registered primitive.
	Value any

	// Source describes where this value came from.
	Source Source

	// RecordedAt is when the value was registered.
	RecordedAt time.Time
}

// Source describes the origin of a registered value.
type Source struct {
	// Operation is the "METHOD /path" of the step whose response produced the value.
	Operation string

	// ResponseField is the response field name the value was read from.
	ResponseField string
}

// Stats holds statistics about the store.
type Stats struct {
	// Entries is the number of distinct keys.
	Entries int `json:"entries" yaml:"entries"`

	// Writes is the total number of values registered.
	Writes int64 `json:"writes" yaml:"writes"`

	// Overwrites is the number of writes that replaced an existing key.
	Overwrites int64 `json:"overwrites" yaml:"overwrites"`

	// Lookups is the total number of lookups.
	Lookups int64 `json:"lookups" yaml:"lookups"`

	// Hits is the number of lookups that found a value.
	Hits int64 `json:"hits" yaml:"hits"`

	// Misses is the number of lookups that found nothing.
	Misses int64 `json:"misses" yaml:"misses"`
}

// Store is the execution memory of one generation run.
//
// Thread Safety: Store is safe for concurrent use. Concurrent writers to the
// same key are serialized and the last write wins. Parallel sequences that
// must not see each other's values should each own a Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	writes     atomic.Int64
	overwrites atomic.Int64
	lookups    atomic.Int64
	hits       atomic.Int64
	misses     atomic.Int64

	// nowFunc for testing
	nowFunc func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]Entry),
		nowFunc: time.Now,
	}
}

// Set registers a single value under key.
func (s *Store) Set(key string, value any, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, src)
}

// Register registers every value of a captured map under its own key and
// returns the number of values written.
func (s *Store) Register(values map[string]any, operation string) int {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.setLocked(k, values[k], Source{Operation: operation, ResponseField: k})
	}
	return len(keys)
}

func (s *Store) setLocked(key string, value any, src Source) {
	if _, exists := s.entries[key]; exists {
		s.overwrites.Add(1)
	}
	s.entries[key] = Entry{
		Value:      value,
		Source:     src,
		RecordedAt: s.nowFunc(),
	}
	s.writes.Add(1)
}

// Lookup returns the value registered under key. It satisfies the memory
// view consumed by the resolution engine.
func (s *Store) Lookup(key string) (any, bool) {
	e, ok := s.entry(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Get returns the entry registered under key, or ErrNoValue.
func (s *Store) Get(key string) (*Entry, error) {
	e, ok := s.entry(key)
	if !ok {
		return nil, ErrNoValue
	}
	return &e, nil
}

func (s *Store) entry(key string) (Entry, bool) {
	s.lookups.Add(1)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return e, ok
}

// Has reports whether key is registered without counting as a lookup.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// Snapshot returns a copy of the registered values keyed by name.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.entries))
	for k, e := range s.entries {
		out[k] = e.Value
	}
	return out
}

// Keys returns the registered keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of distinct keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	return Stats{
		Entries:    s.Len(),
		Writes:     s.writes.Load(),
		Overwrites: s.overwrites.Load(),
		Lookups:    s.lookups.Load(),
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
	}
}
