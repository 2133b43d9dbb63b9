// Package store implements the LSM engine's on-disk ownership layer
// described in spec.md §4.6: the data directory, the segment list, the
// WAL file handle, and the compactor lifetime.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/arvindkrishnan/kiln/compaction"
	"github.com/arvindkrishnan/kiln/memtable"
	"github.com/arvindkrishnan/kiln/seglist"
	"github.com/arvindkrishnan/kiln/segment"
	"github.com/arvindkrishnan/kiln/wal"
	"go.uber.org/zap"
)

const walFilename = "wal.dat"

// Store owns the data directory, the segment list, the WAL, and the
// compactor's lifetime. It is safe for one writer and many concurrent
// readers (spec.md §5): Get only ever takes the segment list's read
// lock; Flush and the compactor's swap take its write lock.
type Store struct {
	dir      string
	segments *seglist.List
	wal      *wal.WAL
	logger   *zap.SugaredLogger

	compactor *compaction.Loop
}

// Open initializes a Store at opts.Dir per spec.md §4.6's numbered
// steps: create the directory if absent, otherwise enumerate existing
// segment-<id>.dat files sorted by id; open the WAL for create-or-append;
// spawn the compactor if enabled.
func Open(opts Options, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	paths, err := initializeDir(dir)
	if err != nil {
		return nil, err
	}

	w, err := wal.Open(filepath.Join(dir, walFilename))
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:      dir,
		segments: seglist.New(paths),
		wal:      w,
		logger:   logger,
	}

	if opts.CompactionEnabled {
		s.compactor = compaction.New(dir, s.segments, opts.CompactionInterval, logger)
		s.compactor.Start()
		logger.Debugw("compactor started", "interval", opts.CompactionInterval)
	}

	return s, nil
}

// initializeDir performs spec.md §4.6 steps 1-2: create the directory if
// absent, or enumerate its direct children for segment-<id>.dat files,
// sorted by id ascending.
func initializeDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
				return nil, fmt.Errorf("store: create data dir %s: %w", dir, mkErr)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("store: read data dir %s: %w", dir, err)
	}

	type idPath struct {
		id   uint32
		path string
	}
	var found []idPath
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := segment.ParseID(e.Name())
		if !ok {
			continue
		}
		found = append(found, idPath{id: id, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].id < found[j].id })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// AppendWAL mirrors a mutation to the write-ahead log before it is
// applied to the memtable, giving the durability guarantee of spec.md
// §4.1: once Append returns, a crash-and-restart replay will observe it.
func (s *Store) AppendWAL(e segment.Entry) error {
	return s.wal.Append(e)
}

// ReplayWAL iterates the WAL in file order and applies each entry to mt,
// matching spec.md §4.6's replay_wal. Callers run this exactly once at
// startup, before accepting mutations.
func (s *Store) ReplayWAL(mt *memtable.Memtable) error {
	return s.wal.Replay(func(e segment.Entry) error {
		if e.Tombstone {
			mt.Delete(e.Key)
		} else {
			mt.Set(e.Key, e.Value)
		}
		return nil
	})
}

// Flush writes mt's contents to a new segment file, appends it to the
// segment list, and clears the WAL, per spec.md §4.6's flush steps.
func (s *Store) Flush(mt *memtable.Memtable) error {
	nextID, err := s.nextSegmentID()
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, segment.Filename(nextID))
	if err := writeSegmentFile(path, mt); err != nil {
		return err
	}

	if err := s.segments.Append(path); err != nil {
		return err
	}
	s.logger.Debugw("flushed memtable to segment", "path", path, "entries", mt.Len())

	if err := s.wal.Clear(); err != nil {
		return err
	}
	return nil
}

func (s *Store) nextSegmentID() (uint32, error) {
	paths, err := s.segments.Snapshot()
	if err != nil {
		return 0, err
	}
	var max uint32
	hasAny := false
	for _, p := range paths {
		id, ok := segment.ParseID(filepath.Base(p))
		if !ok {
			continue
		}
		hasAny = true
		if id > max {
			max = id
		}
	}
	if !hasAny {
		return 0, nil
	}
	return max + 1, nil
}

func writeSegmentFile(path string, mt *memtable.Memtable) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("store: create segment %s: %w", path, err)
	}
	defer f.Close()

	for _, pair := range mt.SortedEntries() {
		var e segment.Entry
		if pair.Tombstone {
			e = segment.NewTombstone(pair.Key)
		} else {
			e = segment.NewAssignment(pair.Key, pair.Value)
		}
		if err := segment.Write(f, e); err != nil {
			return err
		}
	}
	return nil
}

// Get reads the segment list under its shared lock, then scans
// newest-to-oldest, opening a fresh handle per segment (spec.md §4.6's
// "re-opening per query is acceptable") and returning the first positive
// result.
func (s *Store) Get(key []byte) (segment.Lookup, error) {
	paths, err := s.segments.Snapshot()
	if err != nil {
		return segment.Lookup{}, err
	}
	for i := len(paths) - 1; i >= 0; i-- {
		h, err := segment.Open(paths[i])
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Raced with a concurrent compaction swap; the segment
				// this path pointed to no longer exists. Skip it: the
				// merged result (now at a different list slot) carries
				// forward whatever this segment contributed.
				continue
			}
			return segment.Lookup{}, err
		}
		lookup, err := h.Get(key)
		closeErr := h.Close()
		if err != nil {
			return segment.Lookup{}, err
		}
		if closeErr != nil {
			return segment.Lookup{}, fmt.Errorf("store: close segment %s: %w", paths[i], closeErr)
		}
		if lookup.Outcome != segment.NotPresent {
			return lookup, nil
		}
	}
	return segment.NotPresentLookup(), nil
}

// ListSegments returns the current segment path list, oldest first.
func (s *Store) ListSegments() ([]string, error) {
	return s.segments.Snapshot()
}

// InspectedEntry is one sparse-index sample, returned by InspectSegment.
type InspectedEntry struct {
	Key    string
	Offset uint64
}

// InspectSegment opens the named segment (a base name, e.g.
// "segment-3.dat") and returns its sparse index contents, matching the
// original source's Store::inspect_segment.
func (s *Store) InspectSegment(name string) ([]InspectedEntry, error) {
	path := filepath.Join(s.dir, name)
	h, err := segment.Open(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	samples := h.Index()
	out := make([]InspectedEntry, len(samples))
	for i, smp := range samples {
		out[i] = InspectedEntry{Key: string(smp.Key), Offset: smp.Offset}
	}
	return out, nil
}

// Shutdown stops the compactor (if running) and closes the WAL.
// Idempotent with respect to the compactor: calling Shutdown when no
// compactor is running is a no-op for that part.
func (s *Store) Shutdown(ctx context.Context) error {
	if s.compactor != nil {
		if err := s.compactor.Stop(ctx); err != nil {
			return err
		}
	}
	return s.wal.Close()
}
