package segment

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/arvindkrishnan/kiln/kverrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead_AssignmentRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewAssignment([]byte("a"), []byte("1"))))

	it := NewIterator(&buf, 0)
	e, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), e.Key)
	assert.Equal(t, []byte("1"), e.Value)
	assert.False(t, e.Tombstone)

	_, err = it.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteRead_TombstoneRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewTombstone([]byte("k"))))

	it := NewIterator(&buf, 0)
	e, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), e.Key)
	assert.True(t, e.Tombstone)
	assert.Nil(t, e.Value)
}

func TestIterator_MultipleEntriesInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewAssignment([]byte("a"), []byte("1"))))
	require.NoError(t, Write(&buf, NewTombstone([]byte("b"))))
	require.NoError(t, Write(&buf, NewAssignment([]byte("c"), []byte("3"))))

	it := NewIterator(&buf, 0)
	var keys []string
	for {
		e, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		keys = append(keys, string(e.Key))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestIterator_UnknownIndicator(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x7f, 0, 0, 0, 1, 'x'})
	it := NewIterator(buf, 0)
	_, err := it.Next()
	assert.ErrorIs(t, err, kverrors.ErrMalformed)
}

func TestIterator_TruncatedMidEntry(t *testing.T) {
	// Indicator says Assignment, key length says 5, but only 2 bytes follow.
	buf := bytes.NewBuffer([]byte{0x00, 0, 0, 0, 5, 'a', 'b'})
	it := NewIterator(buf, 0)
	_, err := it.Next()
	assert.ErrorIs(t, err, kverrors.ErrMalformed)
}

func TestCheckSize_SmallInputsPass(t *testing.T) {
	require.NoError(t, CheckSize([]byte("key"), []byte("value")))
}

func TestNewTooLarge_ReportsWhichComponent(t *testing.T) {
	err := kverrors.NewTooLarge("value", kverrors.MaxComponentSize+1)
	var tle *kverrors.TooLargeError
	require.ErrorAs(t, err, &tle)
	assert.Equal(t, "value", tle.Which)
	assert.Equal(t, kverrors.MaxComponentSize+1, tle.Actual)
}

func TestStride_MatchesWireSize(t *testing.T) {
	a := NewAssignment([]byte("key"), []byte("value"))
	assert.Equal(t, int64(1+4+3+4+5), a.Stride())

	ts := NewTombstone([]byte("key"))
	assert.Equal(t, int64(1+4+3), ts.Stride())
}
