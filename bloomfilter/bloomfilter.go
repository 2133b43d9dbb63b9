// Package bloomfilter adapts github.com/bits-and-blooms/bloom/v3 to the
// narrow insert/contains interface a segment needs, sized at segment build
// time from the entry count and a fixed false-positive target.
package bloomfilter

import (
	bloom "github.com/bits-and-blooms/bloom/v3"
)

// FalsePositiveRate is the target rate a filter is sized for, matching the
// original source's BLOOM_FILTER_FALSE_POSITIVE_RATE constant.
const FalsePositiveRate = 0.0001

// Filter answers approximate set-membership queries over a segment's keys.
// A negative answer is certain; a positive answer may be a false positive.
type Filter struct {
	f *bloom.BloomFilter
}

// New sizes a filter for n expected keys at FalsePositiveRate. n == 0 is
// valid (an empty segment); bloom.NewWithEstimates tolerates it by building
// a minimal-size filter that MayContain always reports false against.
func New(n int) *Filter {
	if n < 0 {
		n = 0
	}
	return &Filter{f: bloom.NewWithEstimates(uint(n), FalsePositiveRate)}
}

// Insert adds key to the filter.
func (f *Filter) Insert(key []byte) {
	f.f.Add(key)
}

// MayContain reports whether key might be in the filter. false is a
// definitive "not present"; true requires a follow-up check.
func (f *Filter) MayContain(key []byte) bool {
	return f.f.Test(key)
}
