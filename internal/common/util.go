package common

import "strings"

// NormalizeIdentifier trims and lowercases a username or email so that
// uniqueness checks are case-insensitive.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
