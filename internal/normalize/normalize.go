// Package normalize holds canonical string forms used across stores.
package normalize

import (
	"sort"
	"strings"
)

// Phone returns a normalized phone-like identifier suitable for storage
// and comparisons. Normalization currently trims surrounding whitespace
// and removes interior spaces.
func Phone(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), " ", "")
}

// Handle returns the canonical form of a user handle used for @-mention
// lookups: trimmed and lower-cased.
func Handle(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// MemberKey builds the canonical key identifying a direct chat between two
// users: the two ids sorted lexicographically and joined with '_'. The key
// is symmetric, MemberKey(a, b) == MemberKey(b, a).
func MemberKey(a, b string) string {
	members := []string{a, b}
	sort.Strings(members)
	return strings.Join(members, "_")
}
