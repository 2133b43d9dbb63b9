package bloomfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_NoFalseNegatives(t *testing.T) {
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("hello world")}
	f := New(len(keys))
	for _, k := range keys {
		f.Insert(k)
	}
	for _, k := range keys {
		assert.True(t, f.MayContain(k), "no false negatives allowed for inserted key %q", k)
	}
}

func TestFilter_AbsentKeyUsuallyRejected(t *testing.T) {
	f := New(3)
	f.Insert([]byte("present"))
	assert.False(t, f.MayContain([]byte("definitely-not-inserted-xyz")))
}

func TestNew_ZeroSize(t *testing.T) {
	f := New(0)
	assert.NotPanics(t, func() {
		f.MayContain([]byte("anything"))
	})
}
