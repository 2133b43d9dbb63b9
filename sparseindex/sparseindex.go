// Package sparseindex implements the per-segment ordered key-to-offset map
// described in spec.md §4.5: a sampled subset of a segment's keys, each
// paired with the byte offset it starts at, used to bound a point-lookup
// scan to a small byte range instead of reading a whole segment.
package sparseindex

import "bytes"

// entry pairs a sampled key with its byte offset in the owning segment.
type entry struct {
	key    []byte
	offset uint64
}

// Index is an ordered key-to-offset map. The zero value is an empty index.
// It is not safe for concurrent use; callers serialize access the same way
// they serialize access to the segment.Handle that owns it.
type Index struct {
	entries []entry // kept sorted ascending by key
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// Insert records (key, offset), replacing any prior entry for that key.
// Callers are expected to insert in ascending key order (matching a
// segment's sorted layout); Insert does not re-sort on out-of-order input.
func (idx *Index) Insert(key []byte, offset uint64) {
	k := append([]byte(nil), key...)
	if n := len(idx.entries); n > 0 && bytes.Equal(idx.entries[n-1].key, k) {
		idx.entries[n-1].offset = offset
		return
	}
	idx.entries = append(idx.entries, entry{key: k, offset: offset})
}

// GetByteRange returns (start, end) such that start is the offset of the
// greatest indexed key <= target (ok=false if target precedes every
// indexed key) and end is the offset of the least indexed key strictly
// greater than target (ok=false if target is >= the last indexed key).
// An empty index returns both as not-ok.
func (idx *Index) GetByteRange(target []byte) (start uint64, startOK bool, end uint64, endOK bool) {
	n := len(idx.entries)
	if n == 0 {
		return 0, false, 0, false
	}

	// lo is the first index whose key > target; everything before it has
	// key <= target.
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(idx.entries[mid].key, target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	if lo > 0 {
		start, startOK = idx.entries[lo-1].offset, true
	}
	if lo < n {
		end, endOK = idx.entries[lo].offset, true
	}
	return
}

// SampledEntry is one (key, offset) pair held by the index, exposed
// read-only for diagnostics (store.InspectSegment).
type SampledEntry struct {
	Key    []byte
	Offset uint64
}

// Entries returns every sampled (key, offset) pair in ascending key order.
func (idx *Index) Entries() []SampledEntry {
	out := make([]SampledEntry, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = SampledEntry{Key: append([]byte(nil), e.key...), Offset: e.offset}
	}
	return out
}
