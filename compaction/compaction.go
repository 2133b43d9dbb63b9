// Package compaction implements the background merge loop described in
// spec.md §4.7: a long-lived worker that periodically merges the two
// oldest segments into one, deduplicating keys in favor of the newer
// segment.
package compaction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/arvindkrishnan/kiln/kverrors"
	"github.com/arvindkrishnan/kiln/seglist"
	"github.com/arvindkrishnan/kiln/segment"
	"go.uber.org/zap"
)

// tickInterval is the loop's polling granularity, matching spec.md §4.7's
// "sleep 1 second" step.
const tickInterval = time.Second

// Loop is a background compactor. Spawn it with Start; stop it with Stop.
type Loop struct {
	dir      string
	segments *seglist.List
	interval time.Duration
	logger   *zap.SugaredLogger

	kill atomic.Bool
	done chan struct{}
}

// New builds a Loop. interval <= 0 means a step is attempted on every
// one-second tick; callers that want compaction disabled entirely should
// simply not call Start.
func New(dir string, segments *seglist.List, interval time.Duration, logger *zap.SugaredLogger) *Loop {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loop{dir: dir, segments: segments, interval: interval, logger: logger, done: make(chan struct{})}
}

// Start spawns the compactor's background goroutine. It captures its own
// references to the segment list and kill flag at spawn time, per
// spec.md §9's "the compactor thread captures clones at spawn time".
func (l *Loop) Start() {
	go l.run()
}

// run is the loop body from spec.md §4.7:
//
//	loop:
//	  if shutdown requested: exit
//	  if elapsed since last tick >= interval:
//	    attempt one compaction step
//	    record tick time
//	  sleep 1 second
func (l *Loop) run() {
	defer close(l.done)
	lastTick := time.Now()
	for {
		if l.kill.Load() {
			return
		}
		if time.Since(lastTick) >= l.interval {
			if err := l.step(); err != nil {
				l.logger.Warnw("compaction step failed, will retry next tick", "error", err)
			}
			lastTick = time.Now()
		}
		time.Sleep(tickInterval)
	}
}

// Stop sets the kill flag and waits for the goroutine to exit, up to
// ctx's deadline. Idempotent.
func (l *Loop) Stop(ctx context.Context) error {
	l.kill.Store(true)
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return kverrors.ErrJoinFailed
	}
}

// step performs one compaction attempt, mirroring spec.md §4.7's
// numbered steps.
func (l *Loop) step() error {
	a, b, ok, err := l.segments.OldestTwo()
	if err != nil {
		return err
	}
	if !ok {
		l.logger.Warnw("compaction step skipped: fewer than two segments")
		return nil
	}

	l.logger.Debugw("compaction step starting", "a", a, "b", b)

	newPath, err := merge(l.dir, a, b)
	if err != nil {
		return err
	}

	// SwapOldest holds the segment list's write lock across the delete
	// of both old segments, the rename of the merged file onto B's
	// path, and the drop of A's entry, so a concurrent Get can never
	// observe A gone from the list while B's file is still mid-rename.
	if err := l.segments.SwapOldest(a, b, newPath); err != nil {
		// The swap never applied: clean up the merged file we just
		// produced instead of leaking it.
		_ = os.Remove(newPath)
		return fmt.Errorf("compaction: %w", err)
	}

	l.logger.Debugw("compaction step finished", "merged_into", b)
	return nil
}

// merge performs the two-way ordered merge of spec.md §4.7 step 4,
// writing the result to a fresh "new-segment.dat" in dir (failing if it
// already exists) and returning its path.
func merge(dir, aPath, bPath string) (string, error) {
	newPath := dir + string(os.PathSeparator) + "new-segment.dat"

	af, err := os.Open(aPath)
	if err != nil {
		return "", fmt.Errorf("compaction: open %s: %w", aPath, err)
	}
	defer af.Close()
	bf, err := os.Open(bPath)
	if err != nil {
		return "", fmt.Errorf("compaction: open %s: %w", bPath, err)
	}
	defer bf.Close()

	out, err := os.OpenFile(newPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("compaction: create %s: %w", newPath, err)
	}
	defer out.Close()

	aIter := segment.NewIterator(af, 0)
	bIter := segment.NewIterator(bf, 0)

	aEntry, aErr := aIter.Next()
	bEntry, bErr := bIter.Next()

	for {
		aDone := errors.Is(aErr, io.EOF)
		bDone := errors.Is(bErr, io.EOF)
		if aErr != nil && !aDone {
			return "", aErr
		}
		if bErr != nil && !bDone {
			return "", bErr
		}

		switch {
		case aDone && bDone:
			if err := out.Close(); err != nil {
				return "", fmt.Errorf("compaction: close %s: %w", newPath, err)
			}
			return newPath, nil
		case aDone:
			if err := segment.Write(out, bEntry); err != nil {
				return "", err
			}
			bEntry, bErr = bIter.Next()
		case bDone:
			if err := segment.Write(out, aEntry); err != nil {
				return "", err
			}
			aEntry, aErr = aIter.Next()
		default:
			switch bytes.Compare(aEntry.Key, bEntry.Key) {
			case -1: // A's key is smaller: write A, advance A.
				if err := segment.Write(out, aEntry); err != nil {
					return "", err
				}
				aEntry, aErr = aIter.Next()
			case 1: // B's key is smaller: write B, advance B.
				if err := segment.Write(out, bEntry); err != nil {
					return "", err
				}
				bEntry, bErr = bIter.Next()
			default: // Equal keys: B is newer, write B, advance both.
				if err := segment.Write(out, bEntry); err != nil {
					return "", err
				}
				aEntry, aErr = aIter.Next()
				bEntry, bErr = bIter.Next()
			}
		}
	}
}
