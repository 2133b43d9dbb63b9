// Package engine implements the public facade described in spec.md
// §4.1: Set/Get/Delete/Shutdown, composing a memtable and a store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/arvindkrishnan/kiln/memtable"
	"github.com/arvindkrishnan/kiln/segment"
	"github.com/arvindkrishnan/kiln/store"
	"go.uber.org/zap"
)

// Engine is single-writer: Set/Delete must be serialized by the caller
// (spec.md §5); Get is safe to call concurrently with Set/Delete from
// other goroutines only insofar as store.Get's underlying segment-list
// lock permits, but the memtable itself is not synchronized, so a caller
// that mixes concurrent writers and readers without its own
// serialization is outside this package's guarantees.
type Engine struct {
	mem    *memtable.Memtable
	store  *store.Store
	logger *zap.SugaredLogger
}

// Options configures New.
type Options struct {
	Store  store.Options
	Logger *zap.SugaredLogger
}

// New opens the store at opts.Store.Dir, replays its WAL into a fresh
// memtable, and returns a ready-to-use Engine.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	st, err := store.Open(opts.Store, logger)
	if err != nil {
		return nil, err
	}

	mt := memtable.New(opts.Store.MemtableCapacity)
	if err := st.ReplayWAL(mt); err != nil {
		return nil, err
	}
	logger.Debugw("engine started", "memtable_entries_replayed", mt.Len())

	return &Engine{mem: mt, store: st, logger: logger}, nil
}

// Set appends an Assignment to the WAL, then updates the memtable,
// flushing if that mutation filled it to capacity (spec.md §4.1).
func (e *Engine) Set(key, value []byte) error {
	if err := segment.CheckSize(key, value); err != nil {
		return err
	}
	if err := e.store.AppendWAL(segment.NewAssignment(key, value)); err != nil {
		return err
	}
	e.mem.Set(key, value)
	return e.maybeFlush()
}

// Delete appends a Tombstone to the WAL, then updates the memtable.
// Does not fail if the key is absent, matching spec.md §4.1.
func (e *Engine) Delete(key []byte) error {
	if err := segment.CheckSize(key, nil); err != nil {
		return err
	}
	if err := e.store.AppendWAL(segment.NewTombstone(key)); err != nil {
		return err
	}
	e.mem.Delete(key)
	return e.maybeFlush()
}

func (e *Engine) maybeFlush() error {
	if !e.mem.Full() {
		return nil
	}
	if err := e.store.Flush(e.mem); err != nil {
		return err
	}
	e.mem.Reset()
	return nil
}

// Get returns the live value for key, or ok=false if it is absent or
// tombstoned. Lookup order: memtable first (an explicit tombstone there
// short-circuits immediately); otherwise the store's segments,
// newest-to-oldest.
func (e *Engine) Get(key []byte) (value []byte, ok bool, err error) {
	lookup := e.mem.Get(key)
	switch lookup.Outcome {
	case segment.Found:
		return lookup.Value, true, nil
	case segment.FoundTombstone:
		return nil, false, nil
	}

	storeLookup, err := e.store.Get(key)
	if err != nil {
		return nil, false, err
	}
	if storeLookup.Outcome == segment.Found {
		return storeLookup.Value, true, nil
	}
	return nil, false, nil
}

// List enumerates every live key visible through the memtable and all
// segments, newest precedence, matching the original source's
// Command::List. This is a supplemented feature (spec.md is silent on
// it); it is O(total entries) and intended for interactive/diagnostic
// use, not a hot path.
func (e *Engine) List() ([]string, error) {
	seen := make(map[string]bool)
	var live []string

	for _, pair := range e.mem.SortedEntries() {
		k := string(pair.Key)
		seen[k] = true
		if !pair.Tombstone {
			live = append(live, k)
		}
	}

	paths, err := e.store.ListSegments()
	if err != nil {
		return nil, err
	}
	for i := len(paths) - 1; i >= 0; i-- { // newest first, so tombstones shadow correctly
		h, err := segment.Open(paths[i])
		if err != nil {
			return nil, err
		}
		entries, err := segmentEntries(h)
		closeErr := h.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, fmt.Errorf("engine: close segment %s: %w", paths[i], closeErr)
		}
		for _, e := range entries {
			k := string(e.Key)
			if seen[k] {
				continue
			}
			seen[k] = true
			if !e.Tombstone {
				live = append(live, k)
			}
		}
	}
	return live, nil
}

func segmentEntries(h *segment.Handle) ([]segment.Entry, error) {
	it, err := h.Scan()
	if err != nil {
		return nil, err
	}
	var out []segment.Entry
	for {
		e, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ListSegments exposes the store's current segment path list, oldest
// first, for the REPL's SEGMENT-LIST command.
func (e *Engine) ListSegments() ([]string, error) {
	return e.store.ListSegments()
}

// InspectSegment exposes a segment's sparse index contents, for the
// REPL's SEGMENT-INSPECT command.
func (e *Engine) InspectSegment(name string) ([]store.InspectedEntry, error) {
	return e.store.InspectSegment(name)
}

// Shutdown signals the compactor to stop and waits for it, then closes
// the WAL. Idempotent is the caller's responsibility: calling Shutdown
// twice closes an already-closed WAL, which the standard library
// reports as an error on the second call.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.store.Shutdown(ctx)
}
