package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSegment(t *testing.T, path string, entries []Entry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, e := range entries {
		require.NoError(t, Write(f, e))
	}
}

func TestHandle_GetFindsAssignment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(0))
	writeSegment(t, path, []Entry{
		NewAssignment([]byte("a"), []byte("1")),
		NewAssignment([]byte("b"), []byte("2")),
		NewAssignment([]byte("c"), []byte("3")),
	})

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	lookup, err := h.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, Found, lookup.Outcome)
	require.Equal(t, []byte("2"), lookup.Value)
}

func TestHandle_GetReturnsTombstone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(0))
	writeSegment(t, path, []Entry{
		NewAssignment([]byte("k"), []byte("v")),
		NewTombstone([]byte("k2")),
	})

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	lookup, err := h.Get([]byte("k2"))
	require.NoError(t, err)
	require.Equal(t, FoundTombstone, lookup.Outcome)
}

func TestHandle_GetAbsentKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(0))
	writeSegment(t, path, []Entry{
		NewAssignment([]byte("a"), []byte("1")),
		NewAssignment([]byte("z"), []byte("26")),
	})

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	lookup, err := h.Get([]byte("missing"))
	require.NoError(t, err)
	require.Equal(t, NotPresent, lookup.Outcome)
}

func TestHandle_GetManyKeysExercisesSparseIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(0))
	var entries []Entry
	alphabet := "abcdefghijklmnopqrstuvwxyz"
	for i, c := range alphabet {
		entries = append(entries, NewAssignment([]byte(string(c)), []byte{byte(i)}))
	}
	writeSegment(t, path, entries)

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	for i, c := range alphabet {
		lookup, err := h.Get([]byte(string(c)))
		require.NoError(t, err)
		require.Equal(t, Found, lookup.Outcome, "key %q", string(c))
		require.Equal(t, byte(i), lookup.Value[0])
	}
}

func TestFilenameAndParseID_RoundTrip(t *testing.T) {
	name := Filename(42)
	require.Equal(t, "segment-42.dat", name)

	id, ok := ParseID(name)
	require.True(t, ok)
	require.Equal(t, uint32(42), id)
}

func TestParseID_RejectsNonMatchingNames(t *testing.T) {
	for _, name := range []string{"wal.dat", "new-segment.dat", "segment-abc.dat", "segment-1.txt"} {
		_, ok := ParseID(name)
		require.False(t, ok, "name %q should not parse", name)
	}
}
