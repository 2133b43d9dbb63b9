// Package memtable implements the in-memory ordered buffer of pending
// writes and tombstones described in spec.md §4.2.
package memtable

import (
	"bytes"
	"sort"

	"github.com/arvindkrishnan/kiln/segment"
)

// DefaultCapacity is the entry count at which the engine triggers a
// flush, matching the original source's MemtableArgs default.
const DefaultCapacity = 1024

// entryValue is an Option<Value>: tombstone true marks a deletion.
type entryValue struct {
	bytes     []byte
	tombstone bool
}

// Memtable is a sorted Key -> Option<Value> map with a configured
// capacity. It is not safe for concurrent use; the engine facade owns it
// exclusively (spec.md §5).
type Memtable struct {
	byKey    map[string]entryValue
	capacity int
}

// New returns an empty memtable. A capacity <= 0 falls back to
// DefaultCapacity.
func New(capacity int) *Memtable {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memtable{byKey: make(map[string]entryValue), capacity: capacity}
}

// Set records key -> value, overwriting any prior entry or tombstone.
func (m *Memtable) Set(key, value []byte) {
	m.byKey[string(key)] = entryValue{bytes: cloneBytes(value)}
}

// Delete records a tombstone for key.
func (m *Memtable) Delete(key []byte) {
	m.byKey[string(key)] = entryValue{tombstone: true}
}

// Get returns the three-valued lookup result for key.
func (m *Memtable) Get(key []byte) segment.Lookup {
	v, ok := m.byKey[string(key)]
	if !ok {
		return segment.NotPresentLookup()
	}
	if v.tombstone {
		return segment.FoundTombstoneLookup()
	}
	return segment.FoundLookup(cloneBytes(v.bytes))
}

// Len returns the number of keys currently tracked (assignments and
// tombstones both count).
func (m *Memtable) Len() int {
	return len(m.byKey)
}

// Full reports whether the memtable has reached its configured capacity.
// The engine triggers a flush exactly when this holds after a mutation.
func (m *Memtable) Full() bool {
	return len(m.byKey) >= m.capacity
}

// Reset empties the memtable, used after a successful flush.
func (m *Memtable) Reset() {
	m.byKey = make(map[string]entryValue)
}

// Pair is a (key, value-or-tombstone) entry returned by SortedEntries, in
// the order a flush writes them to a new segment.
type Pair struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// SortedEntries returns every pair in ascending key order.
func (m *Memtable) SortedEntries() []Pair {
	keys := make([][]byte, 0, len(m.byKey))
	for k := range m.byKey {
		keys = append(keys, []byte(k))
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	out := make([]Pair, 0, len(keys))
	for _, k := range keys {
		v := m.byKey[string(k)]
		out = append(out, Pair{Key: cloneBytes(k), Value: cloneBytes(v.bytes), Tombstone: v.tombstone})
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
