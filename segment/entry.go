// Package segment implements the on-disk entry codec shared by segment
// files and the WAL (spec.md §4.3), and the segment.Handle point-lookup
// abstraction (spec.md §4.4). There is no file header, checksum, or
// footer: a segment is a bare concatenation of entries, sorted strictly
// ascending by key with every key appearing at most once.
package segment

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/arvindkrishnan/kiln/kverrors"
)

// Indicator bytes for the two entry kinds.
const (
	indicatorAssignment = 0x00
	indicatorTombstone  = 0x01
)

// Entry is one record in a segment or WAL file: either a live
// key-value pair (Assignment) or a deletion marker (Tombstone).
type Entry struct {
	Key       []byte
	Value     []byte // nil for a Tombstone
	Tombstone bool
}

// NewAssignment builds a live key-value entry.
func NewAssignment(key, value []byte) Entry {
	return Entry{Key: key, Value: value}
}

// NewTombstone builds a deletion-marker entry.
func NewTombstone(key []byte) Entry {
	return Entry{Key: key, Tombstone: true}
}

// Stride is the number of bytes this entry occupies on disk: the basis
// for advancing a byte counter during a bounded scan without re-reading.
func (e Entry) Stride() int64 {
	if e.Tombstone {
		return 1 + 4 + int64(len(e.Key))
	}
	return 1 + 4 + int64(len(e.Key)) + 4 + int64(len(e.Value))
}

// CheckSize validates key/value lengths against kverrors.MaxComponentSize.
func CheckSize(key, value []byte) error {
	if len(key) > kverrors.MaxComponentSize {
		return kverrors.NewTooLarge("key", len(key))
	}
	if len(value) > kverrors.MaxComponentSize {
		return kverrors.NewTooLarge("value", len(value))
	}
	return nil
}

// Write appends e to w in the on-disk entry format.
func Write(w io.Writer, e Entry) error {
	if e.Tombstone {
		return writeTombstone(w, e.Key)
	}
	return writeAssignment(w, e.Key, e.Value)
}

func writeAssignment(w io.Writer, key, value []byte) error {
	if err := CheckSize(key, value); err != nil {
		return err
	}
	buf := make([]byte, 1+4)
	buf[0] = indicatorAssignment
	binary.BigEndian.PutUint32(buf[1:], uint32(len(key)))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("segment: write assignment header: %w", err)
	}
	if _, err := w.Write(key); err != nil {
		return fmt.Errorf("segment: write key: %w", err)
	}
	var vlen [4]byte
	binary.BigEndian.PutUint32(vlen[:], uint32(len(value)))
	if _, err := w.Write(vlen[:]); err != nil {
		return fmt.Errorf("segment: write value length: %w", err)
	}
	if _, err := w.Write(value); err != nil {
		return fmt.Errorf("segment: write value: %w", err)
	}
	return nil
}

func writeTombstone(w io.Writer, key []byte) error {
	if err := CheckSize(key, nil); err != nil {
		return err
	}
	buf := make([]byte, 1+4)
	buf[0] = indicatorTombstone
	binary.BigEndian.PutUint32(buf[1:], uint32(len(key)))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("segment: write tombstone header: %w", err)
	}
	if _, err := w.Write(key); err != nil {
		return fmt.Errorf("segment: write key: %w", err)
	}
	return nil
}

// Iterator reads a sequential stream of Entries from a segment or WAL
// file. A clean EOF between entries ends iteration (Next returns
// io.EOF); an EOF in the middle of an entry, or an unknown indicator
// byte, is reported as kverrors.ErrMalformed.
type Iterator struct {
	r   *bufio.Reader
	off int64
}

// NewIterator wraps r, which must already be positioned at the point
// iteration should start (offset 0 for "from the start").
func NewIterator(r io.Reader, startOffset int64) *Iterator {
	return &Iterator{r: bufio.NewReader(r), off: startOffset}
}

// Offset returns the byte offset the next entry (if any) begins at.
func (it *Iterator) Offset() int64 {
	return it.off
}

// Next reads the next entry. It returns io.EOF (unwrapped, checkable via
// errors.Is) when the stream ends cleanly between entries.
func (it *Iterator) Next() (Entry, error) {
	indicator, err := it.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("segment: read indicator: %w", err)
	}

	switch indicator {
	case indicatorAssignment:
		key, err := it.readLengthPrefixed()
		if err != nil {
			return Entry{}, err
		}
		value, err := it.readLengthPrefixed()
		if err != nil {
			return Entry{}, err
		}
		e := NewAssignment(key, value)
		it.off += e.Stride()
		return e, nil
	case indicatorTombstone:
		key, err := it.readLengthPrefixed()
		if err != nil {
			return Entry{}, err
		}
		e := NewTombstone(key)
		it.off += e.Stride()
		return e, nil
	default:
		return Entry{}, fmt.Errorf("%w: unknown indicator byte 0x%02x", kverrors.ErrMalformed, indicator)
	}
}

func (it *Iterator) readLengthPrefixed() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(it.r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated length prefix: %v", kverrors.ErrMalformed, err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(it.r, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated field: %v", kverrors.ErrMalformed, err)
	}
	return buf, nil
}
