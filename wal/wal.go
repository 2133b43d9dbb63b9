// Package wal implements the append-only write-ahead log described in
// spec.md §4.6: a mirror of the current memtable's unflushed writes, in
// the same entry format as a segment file (§4.3), rewritten (deleted and
// reopened) every time the memtable is flushed.
package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/arvindkrishnan/kiln/segment"
)

// WAL wraps the on-disk write-ahead log file. It is not safe for
// concurrent use; the engine facade owns it exclusively (spec.md §5).
//
// Entries are not fsynced between writes — recovery is best-effort up to
// the OS's write-back, matching spec.md §9's explicit Open Question
// decision to leave this loose rather than pay an fsync per write.
type WAL struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// Open creates path if absent, or opens it for append if present.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &WAL{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Close flushes buffered writes and closes the underlying file.
func (w *WAL) Close() error {
	if w == nil || w.f == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("wal: flush on close: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("wal: close: %w", err)
	}
	return nil
}

// Append writes e to the log and flushes it to the OS immediately, so
// that a subsequent crash observes the mutation (spec.md §4.1's
// durability guarantee: "after set/delete returns, the mutation is
// present in the WAL").
func (w *WAL) Append(e segment.Entry) error {
	if err := segment.Write(w.w, e); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	return nil
}

// Replay iterates every entry in file order and invokes fn for each,
// matching spec.md §4.6's replay_wal: Assignment -> set, Tombstone ->
// delete. It runs once at engine startup, before accepting mutations.
func (w *WAL) Replay(fn func(segment.Entry) error) error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek for replay: %w", err)
	}
	it := segment.NewIterator(w.f, 0)
	for {
		e, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	// Leave the file positioned at EOF (its append offset) for writes
	// that follow replay.
	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("wal: seek to end after replay: %w", err)
	}
	return nil
}

// Clear deletes the WAL file and reopens it empty, per spec.md §4.6's
// flush step 4: after a crash between deletion and recreation, replay
// finds no WAL, which is acceptable because the just-flushed data
// already lives in the new segment and no unflushed writes remain.
func (w *WAL) Clear() error {
	if err := w.Close(); err != nil {
		return err
	}
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("wal: remove %s: %w", w.path, err)
	}
	fresh, err := Open(w.path)
	if err != nil {
		return err
	}
	*w = *fresh
	return nil
}
