package segment

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

var filenamePattern = regexp.MustCompile(`^segment-([0-9]+)\.dat$`)

// Filename formats a segment's file name from its id.
func Filename(id uint32) string {
	return fmt.Sprintf("segment-%d.dat", id)
}

// ParseID extracts the id from a segment file name (not a full path). ok
// is false if name does not match "segment-<id>.dat".
func ParseID(name string) (id uint32, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// IsSegmentFilename reports whether path's base name matches the segment
// naming convention.
func IsSegmentFilename(path string) bool {
	_, ok := ParseID(filepath.Base(path))
	return ok
}
