// Package version orders documentation version strings. Versions are
// compared as semantic versions when possible, with the sentinel "latest"
// acting as a wildcard that compares equal to everything.
package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Latest is the sentinel version used when a caller supplies no explicit
// version. It is never ranked against real versions; Compare treats it as
// equal to any input.
const Latest = "latest"

// Ordering is the result of comparing two version strings.
type Ordering int

const (
	Lt Ordering = -1
	Eq Ordering = 0
	Gt Ordering = 1
)

// Normalize returns v with the Latest sentinel substituted for an empty
// string. Stored records always carry a non-empty version.
func Normalize(v string) string {
	if v == "" {
		return Latest
	}
	return v
}

// Compare orders two version strings. The Latest sentinel compares equal to
// anything. Both inputs are parsed as semantic versions; pre-release versions
// rank below their corresponding release (1.0.0-rc.1 < 1.0.0). Strings that
// do not parse fall back to a retry with any "-suffix" stripped, and finally
// to raw lexicographic comparison. The lexicographic fallback is deliberately
// permissive and makes no correctness guarantee for exotic version schemes.
func Compare(a, b string) Ordering {
	if a == Latest || b == Latest {
		return Eq
	}

	va, okA := parseLoose(a)
	vb, okB := parseLoose(b)
	if okA && okB {
		switch c := va.Compare(vb); {
		case c < 0:
			return Lt
		case c > 0:
			return Gt
		default:
			return Eq
		}
	}

	switch c := strings.Compare(a, b); {
	case c < 0:
		return Lt
	case c > 0:
		return Gt
	default:
		return Eq
	}
}

// parseLoose parses a semantic version, retrying with anything after the
// first dash stripped. Some registries publish versions like "1.2.0-otp-27"
// whose suffixes are not valid semver pre-release identifiers.
func parseLoose(s string) (*semver.Version, bool) {
	if v, err := semver.NewVersion(s); err == nil {
		return v, true
	}
	if i := strings.Index(s, "-"); i > 0 {
		if v, err := semver.NewVersion(s[:i]); err == nil {
			return v, true
		}
	}
	return nil, false
}

// FindLatest returns the highest version in the slice by Compare. The Latest
// sentinel is filtered out before ranking unless it is the only value
// present. The second return is false for an empty input. Ties keep the
// first maximal element encountered.
func FindLatest(versions []string) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}

	best := ""
	for _, v := range versions {
		if v == Latest {
			continue
		}
		if best == "" || Compare(v, best) == Gt {
			best = v
		}
	}
	if best == "" {
		// Every entry was the sentinel.
		return Latest, true
	}
	return best, true
}

// FilterLatest groups items by package, finds each package's latest version,
// and keeps every item belonging to that version. Input order is preserved.
func FilterLatest[T any](items []T, pkg func(T) string, ver func(T) string) []T {
	if len(items) == 0 {
		return items
	}

	byPackage := make(map[string][]string)
	for _, item := range items {
		p := pkg(item)
		byPackage[p] = append(byPackage[p], ver(item))
	}

	latest := make(map[string]string, len(byPackage))
	for p, versions := range byPackage {
		if v, ok := FindLatest(versions); ok {
			latest[p] = v
		}
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		if ver(item) == latest[pkg(item)] {
			kept = append(kept, item)
		}
	}
	return kept
}
