package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arvindkrishnan/kiln/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendThenReplay_ReproducesEntriesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.dat")
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(segment.NewAssignment([]byte("a"), []byte("1"))))
	require.NoError(t, w.Append(segment.NewTombstone([]byte("b"))))
	require.NoError(t, w.Append(segment.NewAssignment([]byte("c"), []byte("3"))))

	var got []segment.Entry
	require.NoError(t, w.Replay(func(e segment.Entry) error {
		got = append(got, e)
		return nil
	}))

	require.Len(t, got, 3)
	assert.Equal(t, []byte("a"), got[0].Key)
	assert.True(t, got[1].Tombstone)
	assert.Equal(t, []byte("c"), got[2].Key)
}

func TestClear_RemovesEntriesAndLeavesLogAppendable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.dat")
	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(segment.NewAssignment([]byte("k"), []byte("v"))))
	require.NoError(t, w.Clear())

	var got []segment.Entry
	require.NoError(t, w.Replay(func(e segment.Entry) error {
		got = append(got, e)
		return nil
	}))
	assert.Empty(t, got)

	require.NoError(t, w.Append(segment.NewAssignment([]byte("k2"), []byte("v2"))))
	got = nil
	require.NoError(t, w.Replay(func(e segment.Entry) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, []byte("k2"), got[0].Key)
}

func TestOpen_CreatesFileIfAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.dat")
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)
}
