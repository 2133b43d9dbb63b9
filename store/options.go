package store

import "time"

// Options configures a Store, mirroring the original source's
// StoreArgs/MemtableArgs (compaction_enabled, compaction_interval_seconds)
// plus the data directory path that spec.md §6 says is environment-configured.
type Options struct {
	Dir                string
	MemtableCapacity   int
	CompactionEnabled  bool
	CompactionInterval time.Duration
}

// DefaultOptions mirrors the original source's StoreArgs::default():
// compaction on, 600 second interval.
func DefaultOptions() Options {
	return Options{
		Dir:                "./data",
		MemtableCapacity:   1024,
		CompactionEnabled:  true,
		CompactionInterval: 600 * time.Second,
	}
}
