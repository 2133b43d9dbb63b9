package compaction

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arvindkrishnan/kiln/seglist"
	"github.com/arvindkrishnan/kiln/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSegmentFile(t *testing.T, path string, pairs [][2]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, kv := range pairs {
		require.NoError(t, segment.Write(f, segment.NewAssignment([]byte(kv[0]), []byte(kv[1]))))
	}
}

func readAllAssignments(t *testing.T, path string) [][2]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	it := segment.NewIterator(f, 0)
	var out [][2]string
	for {
		e, err := it.Next()
		if err != nil {
			break
		}
		out = append(out, [2]string{string(e.Key), string(e.Value)})
	}
	return out
}

// TestMerge_TwoSegmentMerge reproduces spec.md §8 scenario 2.
func TestMerge_TwoSegmentMerge(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "segment-0.dat")
	bPath := filepath.Join(dir, "segment-1.dat")
	writeSegmentFile(t, aPath, [][2]string{{"a", "1"}, {"c", "3"}, {"e", "5"}})
	writeSegmentFile(t, bPath, [][2]string{{"b", "2"}, {"d", "4"}, {"f", "6"}})

	newPath, err := merge(dir, aPath, bPath)
	require.NoError(t, err)

	got := readAllAssignments(t, newPath)
	want := [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"}, {"f", "6"}}
	assert.Equal(t, want, got)
}

// TestMerge_OverwriteViaMerge reproduces spec.md §8 scenario 3: segment1
// and segment2 merge, then the result merges with segment3, with each
// step's newer segment winning on key collision.
func TestMerge_OverwriteViaMerge(t *testing.T) {
	dir := t.TempDir()
	seg1 := filepath.Join(dir, "segment-0.dat")
	seg2 := filepath.Join(dir, "segment-1.dat")
	seg3 := filepath.Join(dir, "segment-2.dat")
	writeSegmentFile(t, seg1, [][2]string{{"a", "1"}, {"c", "3"}, {"e", "5"}})
	writeSegmentFile(t, seg2, [][2]string{{"b", "2"}, {"d", "4"}, {"f", "6"}})
	writeSegmentFile(t, seg3, [][2]string{{"a", "7"}, {"d", "9"}, {"e", "8"}})

	step1, err := merge(dir, seg1, seg2)
	require.NoError(t, err)
	got1 := readAllAssignments(t, step1)
	assert.Equal(t, [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"}, {"f", "6"}}, got1)

	// Rename step1's output out of the way of "new-segment.dat" before
	// the second merge creates another one.
	step1Final := filepath.Join(dir, "step1.dat")
	require.NoError(t, os.Rename(step1, step1Final))

	step2, err := merge(dir, step1Final, seg3)
	require.NoError(t, err)
	got2 := readAllAssignments(t, step2)
	want := [][2]string{{"a", "7"}, {"b", "2"}, {"c", "3"}, {"d", "9"}, {"e", "8"}, {"f", "6"}}
	assert.Equal(t, want, got2)
}

func TestLoop_StepMergesAndSwapsSegmentList(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "segment-0.dat")
	bPath := filepath.Join(dir, "segment-1.dat")
	writeSegmentFile(t, aPath, [][2]string{{"a", "1"}})
	writeSegmentFile(t, bPath, [][2]string{{"b", "2"}})

	list := seglist.New([]string{aPath, bPath})
	loop := New(dir, list, time.Hour, nil)

	require.NoError(t, loop.step())

	snapshot, err := list.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{bPath}, snapshot)
	_, statErr := os.Stat(aPath)
	assert.True(t, os.IsNotExist(statErr))

	got := readAllAssignments(t, bPath)
	assert.Equal(t, [][2]string{{"a", "1"}, {"b", "2"}}, got)
}

func TestLoop_StepSkipsWhenFewerThanTwoSegments(t *testing.T) {
	dir := t.TempDir()
	list := seglist.New(nil)
	loop := New(dir, list, time.Hour, nil)
	require.NoError(t, loop.step())
}

func TestLoop_StartAndStop(t *testing.T) {
	dir := t.TempDir()
	list := seglist.New(nil)
	loop := New(dir, list, time.Hour, nil)
	loop.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, loop.Stop(ctx))
}
