package segment

// Outcome is the three-valued result of a point lookup, avoiding the
// Option<Option<V>> ambiguity spec.md §9 calls out: Found carries a live
// value, FoundTombstone means the key is known-deleted, and NotPresent
// means no record for the key was seen at all.
type Outcome int

const (
	NotPresent Outcome = iota
	Found
	FoundTombstone
)

// Lookup bundles an Outcome with the value payload, which is only
// meaningful when Outcome == Found.
type Lookup struct {
	Outcome Outcome
	Value   []byte
}

// NotPresentLookup is the shared "no record" result.
func NotPresentLookup() Lookup { return Lookup{Outcome: NotPresent} }

// FoundLookup wraps a live value.
func FoundLookup(value []byte) Lookup { return Lookup{Outcome: Found, Value: value} }

// FoundTombstoneLookup is the shared "known deleted" result.
func FoundTombstoneLookup() Lookup { return Lookup{Outcome: FoundTombstone} }
