// Package buildrange selects the builds between two range markers and collects
// per-build lookups for that window.
package buildrange

import (
	"fmt"
	"strings"

	"github.com/pweiskircher/build-changes/internal/ci"
)

// Comparator decides whether a build is the one a range marker names.
type Comparator string

const (
	// ComparatorByID matches the marker against the build identifier.
	ComparatorByID Comparator = "id"
	// ComparatorByNumber matches the marker against the display number, falling
	// back to the identifier for builds numbered "None".
	ComparatorByNumber Comparator = "number"
)

// Comparators lists the supported strategies in flag-help order.
var Comparators = []Comparator{ComparatorByNumber, ComparatorByID}

func ParseComparator(value string) (Comparator, error) {
	normalized := Comparator(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Comparators {
		if normalized == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown range comparator %q (expected one of: number, id)", value)
}

// Matches reports whether build is the build marker refers to. Comparison is
// case-insensitive string equality; numbers are never parsed or ordered.
func (c Comparator) Matches(build ci.Build, marker string) bool {
	switch c {
	case ComparatorByID:
		return strings.EqualFold(build.ID, marker)
	case ComparatorByNumber:
		if build.Number == "" || strings.EqualFold(build.Number, ci.NumberNone) {
			return strings.EqualFold(build.ID, marker)
		}
		return strings.EqualFold(build.Number, marker)
	default:
		return false
	}
}

func (c Comparator) String() string {
	return string(c)
}
