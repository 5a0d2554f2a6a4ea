package util

import "strings"

// Truthy reports whether s spells an affirmative value. Matching is
// case-insensitive and ignores surrounding whitespace.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
