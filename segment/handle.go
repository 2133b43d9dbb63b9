package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/arvindkrishnan/kiln/bloomfilter"
	"github.com/arvindkrishnan/kiln/sparseindex"
)

// SparseIndexRangeSize is N in "every Nth key joins the sparse index",
// matching the original source's SPARSE_INDEX_RANGE_SIZE constant.
const SparseIndexRangeSize = 4

// Handle is an opened segment file plus the Bloom filter and sparse index
// derived from its contents by a two-pass scan at Open time (spec.md
// §4.4). A Handle is immutable after Open: segment files are never
// mutated in place, only superseded wholesale by compaction.
type Handle struct {
	Path   string
	file   *os.File
	bloom  *bloomfilter.Filter
	index  *sparseindex.Index
}

// Open performs the two full passes spec.md §4.4 describes: a first pass
// counts entries to size the Bloom filter, a second builds the Bloom
// filter and samples every SparseIndexRangeSize'th key into the sparse
// index.
func Open(path string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}

	count, err := countEntries(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	filter := bloomfilter.New(count)
	idx := sparseindex.New()
	if err := buildFilterAndIndex(f, filter, idx); err != nil {
		f.Close()
		return nil, err
	}

	return &Handle{Path: path, file: f, bloom: filter, index: idx}, nil
}

func countEntries(f *os.File) (int, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("segment: seek: %w", err)
	}
	it := NewIterator(f, 0)
	n := 0
	for {
		_, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func buildFilterAndIndex(f *os.File, filter *bloomfilter.Filter, idx *sparseindex.Index) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("segment: seek: %w", err)
	}
	it := NewIterator(f, 0)
	i := 0
	for {
		offset := it.Offset()
		e, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		filter.Insert(e.Key)
		if i%SparseIndexRangeSize == 0 {
			idx.Insert(e.Key, uint64(offset))
		}
		i++
	}
	return nil
}

// Close releases the underlying file handle.
func (h *Handle) Close() error {
	return h.file.Close()
}

// Get performs the bounded point lookup described in spec.md §4.4:
// a Bloom filter check, a sparse-index byte-range lookup, and a scan
// bounded to that range.
func (h *Handle) Get(key []byte) (Lookup, error) {
	if !h.bloom.MayContain(key) {
		return NotPresentLookup(), nil
	}

	start, _, end, endOK := h.index.GetByteRange(key)

	if _, err := h.file.Seek(int64(start), io.SeekStart); err != nil {
		return Lookup{}, fmt.Errorf("segment: seek: %w", err)
	}
	it := NewIterator(h.file, int64(start))

	var accumulated int64
	for {
		if endOK && accumulated >= int64(end)-int64(start) {
			break
		}
		e, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Lookup{}, err
		}
		accumulated += e.Stride()

		switch bytes.Compare(e.Key, key) {
		case 0:
			if e.Tombstone {
				return FoundTombstoneLookup(), nil
			}
			return FoundLookup(e.Value), nil
		}
	}
	return NotPresentLookup(), nil
}

// Index returns the segment's sparse index entries, for diagnostics
// (store.InspectSegment).
func (h *Handle) Index() []sparseindex.SampledEntry {
	return h.index.Entries()
}

// Scan returns a fresh iterator over every entry in the segment, from the
// start, for use by engine.List.
func (h *Handle) Scan() (*Iterator, error) {
	if _, err := h.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("segment: seek: %w", err)
	}
	return NewIterator(h.file, 0), nil
}

