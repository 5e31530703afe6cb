// Package cache provides the two cache layers shared by the NixOS client
// and the HTML documentation loaders: a bounded in-memory TTL cache for
// backend responses, and a filesystem cache for HTML bodies and
// serialised index data.
package cache

import (
	"sync"
	"time"
)

// Clock abstracts time access for reproducible tests.
type Clock interface {
	Now() time.Time
}

// RealClock uses the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// MemoryStats reports cache effectiveness counters.
type MemoryStats struct {
	Hits     int     `json:"hits"`
	Misses   int     `json:"misses"`
	Size     int     `json:"size"`
	MaxSize  int     `json:"max_size"`
	HitRatio float64 `json:"hit_ratio"`
	TTL      float64 `json:"ttl_seconds"`
}

type memoryEntry struct {
	value      any
	insertedAt time.Time
}

// Memory is a bounded TTL key/value store. Entries expire lazily on Get;
// when the cache is full and a new key arrives, the oldest entry (by
// insert time) is evicted.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	maxSize int
	clock   Clock

	hits   int
	misses int
}

// NewMemory creates a Memory cache. A maxSize of zero disables the size
// bound; a nil clock means system time.
func NewMemory(ttl time.Duration, maxSize int, clock Clock) *Memory {
	if clock == nil {
		clock = RealClock{}
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clock,
	}
}

// Get returns the cached value for key if it exists and is within TTL.
// Expired entries are dropped on access.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false
	}
	if m.clock.Now().Sub(e.insertedAt) > m.ttl {
		delete(m.entries, key)
		m.misses++
		return nil, false
	}
	m.hits++
	return e.value, true
}

// Set stores value under key, evicting the oldest entry if the cache is
// full and key is new.
func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.maxSize > 0 && len(m.entries) >= m.maxSize {
		m.evictOldestLocked()
	}
	m.entries[key] = memoryEntry{value: value, insertedAt: m.clock.Now()}
}

// evictOldestLocked removes the entry with the smallest insert time.
// Caller holds the lock.
func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range m.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.insertedAt
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}

// Clear drops all entries. Counters survive; they describe the lifetime
// of the cache, not of its contents.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
}

// Stats returns hit/miss counters and the current size.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.hits + m.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(m.hits) / float64(total)
	}
	return MemoryStats{
		Hits:     m.hits,
		Misses:   m.misses,
		Size:     len(m.entries),
		MaxSize:  m.maxSize,
		HitRatio: ratio,
		TTL:      m.ttl.Seconds(),
	}
}
