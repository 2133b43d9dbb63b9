// Package seglist implements the segment list shared between store and
// compaction: an ordered sequence of segment file paths, oldest first,
// guarded by a readers-writer lock (spec.md §3/§5). It is a standalone
// package, rather than a method set on store.Store, so that compaction
// can hold a reference to the list without importing store (which in
// turn owns and spawns the compactor), mirroring the original source's
// free-standing `Arc<RwLock<VecDeque<PathBuf>>>`.
package seglist

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/arvindkrishnan/kiln/kverrors"
)

// List is an ordered, concurrency-safe sequence of segment paths.
// The zero value is not usable; use New.
type List struct {
	mu       sync.RWMutex
	paths    []string
	poisoned atomic.Bool
}

// New returns a list seeded with paths, in the order given (callers are
// expected to pass them already sorted oldest-first by segment id).
func New(paths []string) *List {
	l := &List{paths: append([]string(nil), paths...)}
	return l
}

// poison marks the list unusable and re-raises r, mirroring Rust's
// std::sync::RwLock: if a lock holder panics while the list might be
// mid-mutation, no later caller can trust its contents, so every
// subsequent access fails with kverrors.ErrPoisoned instead of silently
// reading a partially-updated paths slice.
func (l *List) poison(r any) {
	l.poisoned.Store(true)
	panic(r)
}

// Snapshot returns a copy of the current path list, oldest first. Safe
// to call while a writer holds the write lock elsewhere: it blocks until
// that writer releases it.
func (l *List) Snapshot() ([]string, error) {
	if l.poisoned.Load() {
		return nil, kverrors.ErrPoisoned
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.paths...), nil
}

// Len reports the current segment count.
func (l *List) Len() (int, error) {
	if l.poisoned.Load() {
		return 0, kverrors.ErrPoisoned
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.paths), nil
}

// Append adds a new segment path to the end of the list (the newest
// segment), used by a flush.
func (l *List) Append(path string) (err error) {
	if l.poisoned.Load() {
		return kverrors.ErrPoisoned
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			l.poison(r)
		}
	}()
	l.paths = append(l.paths, path)
	return nil
}

// OldestTwo returns the first two paths (A, B) and ok=true if at least
// two segments exist. Used by the compactor to pick a compaction step's
// inputs under a shared (read) lock.
func (l *List) OldestTwo() (a, b string, ok bool, err error) {
	if l.poisoned.Load() {
		return "", "", false, kverrors.ErrPoisoned
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.paths) < 2 {
		return "", "", false, nil
	}
	return l.paths[0], l.paths[1], true, nil
}

// SwapOldest completes a compaction step as a single critical section:
// remove expectA, remove expectB, rename newPath onto expectB's former
// path, and drop expectA's now-stale entry from the front of the list
// (B's slot is left in place, since the merged file is renamed onto it).
//
// All four operations happen under one write-lock hold, matching
// original_source/crates/engine/src/compaction.rs's compaction_loop,
// which holds its segments_write lock across both remove_files, the
// rename, and pop_front for exactly this reason: a reader that took a
// Snapshot between a separate delete-step and a separate swap-step
// could observe A already gone from the list while B's file was
// mid-rename on disk, and wrongly treat a live key as absent. expectA
// and expectB guard against the front of the list having changed
// since the read-locked OldestTwo call that picked this step's inputs;
// an error here means the merge's output is abandoned without being
// applied, and the caller is responsible for cleaning it up.
func (l *List) SwapOldest(expectA, expectB, newPath string) (err error) {
	if l.poisoned.Load() {
		return kverrors.ErrPoisoned
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			l.poison(r)
		}
	}()

	if len(l.paths) < 2 || l.paths[0] != expectA || l.paths[1] != expectB {
		return fmt.Errorf("seglist: segment list changed during swap of %s/%s", expectA, expectB)
	}
	if err := os.Remove(expectA); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("seglist: remove old segment %s: %w", expectA, err)
	}
	if err := os.Remove(expectB); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("seglist: remove old segment %s: %w", expectB, err)
	}
	if err := os.Rename(newPath, expectB); err != nil {
		return fmt.Errorf("seglist: rename merged segment onto %s: %w", expectB, err)
	}
	l.paths = l.paths[1:]
	return nil
}
