// Package versionx compares dotted numeric version strings for update gating.
package versionx

import (
	"strconv"
	"strings"
)

// IsNewer reports whether candidate is strictly newer than current. Versions
// are compared component-wise as unsigned integers; a leading "v" and any
// non-numeric components are ignored, and missing components count as zero,
// so "1.2" equals "1.2.0".
func IsNewer(candidate, current string) bool {
	cand := parse(candidate)
	curr := parse(current)

	n := len(cand)
	if len(curr) > n {
		n = len(curr)
	}
	for i := 0; i < n; i++ {
		a, b := at(cand, i), at(curr, i)
		if a > b {
			return true
		}
		if a < b {
			return false
		}
	}
	return false
}

func parse(v string) []uint64 {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	var parts []uint64
	for _, s := range strings.Split(v, ".") {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			continue
		}
		parts = append(parts, n)
	}
	return parts
}

func at(parts []uint64, i int) uint64 {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}
