package annotation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tupleKey matches keys such as "('03','0001')" or "('3', '1')".
var tupleKey = regexp.MustCompile(`^\('(\d+)',\s*'(\d+)'\)$`)

// Key identifies one capture of one cell.
type Key struct {
	Cell        int
	Measurement int
}

// ParseKey parses the stringified tuple used by the annotation tool.
// The second result is false for any other key shape.
func ParseKey(s string) (Key, bool) {
	m := tupleKey.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Key{}, false
	}
	cell, err := strconv.Atoi(m[1])
	if err != nil {
		return Key{}, false
	}
	meas, err := strconv.Atoi(m[2])
	if err != nil {
		return Key{}, false
	}
	return Key{Cell: cell, Measurement: meas}, true
}

// String renders the key the way the annotation tool writes it.
func (k Key) String() string {
	return fmt.Sprintf("('%02d','%04d')", k.Cell, k.Measurement)
}

// Stem is the canonical image stem for the key, e.g. cell03meas0001.
func (k Key) Stem() string {
	return Stem(k.Cell, k.Measurement)
}

// Stem formats a cell/measurement pair as a lowercase image stem.
func Stem(cell, meas int) string {
	return fmt.Sprintf("cell%02dmeas%04d", cell, meas)
}
