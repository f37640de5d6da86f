package ci

import (
	"sort"
	"strings"
)

// CompareIDs orders build identifiers. Unsigned decimal identifiers compare by
// magnitude so "99" sorts before "100"; anything else compares as plain strings.
func CompareIDs(a, b string) int {
	if isDecimal(a) && isDecimal(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

// SortBuilds returns a copy of builds ordered ascending by identifier.
func SortBuilds(builds []Build) []Build {
	sorted := append([]Build(nil), builds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareIDs(sorted[i].ID, sorted[j].ID) < 0
	})
	return sorted
}

// LatestWithStatus returns the build with the highest identifier whose status
// equals status (case-insensitive), or nil.
func LatestWithStatus(builds []Build, status string) *Build {
	var latest *Build
	for i := range builds {
		if !strings.EqualFold(builds[i].Status, status) {
			continue
		}
		if latest == nil || CompareIDs(builds[i].ID, latest.ID) > 0 {
			candidate := builds[i]
			latest = &candidate
		}
	}
	return latest
}

func isDecimal(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
