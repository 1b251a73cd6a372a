package domain

import (
	"sort"
	"strconv"
	"strings"
)

// CompareMachineIDs orders numeric identifiers numerically and everything
// else lexically; numeric ids sort before non-numeric ones.
func CompareMachineIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return strings.Compare(a, b)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func SortMachineIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return CompareMachineIDs(ids[i], ids[j]) < 0 })
}
